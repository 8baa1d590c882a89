package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/km-arc/go-ioc/framework/app"
	"github.com/km-arc/go-ioc/framework/config"
	"github.com/km-arc/go-ioc/framework/container"
	"github.com/km-arc/go-ioc/framework/descriptor"
	"github.com/km-arc/go-ioc/framework/scanner"
)

// ── Demo components ──────────────────────────────────────────────────────────

// Notifier is implemented by every delivery channel.
type Notifier interface {
	Notify(msg string) string
}

type EmailNotifier struct{}

func (*EmailNotifier) Notify(msg string) string { return "email: " + msg }

type ChatNotifier struct{ Channel string }

func (n *ChatNotifier) Notify(msg string) string { return "chat#" + n.Channel + ": " + msg }

// PhotoStore keeps uploaded photo names under a root path.
type PhotoStore struct {
	Root   string
	log    *zap.Logger
	photos []string
}

func NewPhotoStore(root string, log *zap.Logger) *PhotoStore {
	return &PhotoStore{Root: root, log: log}
}

func (s *PhotoStore) Open() error {
	s.log.Info("photo store opened", zap.String("root", s.Root))
	return nil
}

func (s *PhotoStore) Close() error {
	s.log.Info("photo store closed", zap.Int("photos", len(s.photos)))
	return nil
}

// Index is a factory product of the store.
func (s *PhotoStore) Index() *PhotoIndex { return &PhotoIndex{store: s} }

type PhotoIndex struct{ store *PhotoStore }

func (i *PhotoIndex) Count() int { return len(i.store.photos) }

// Uploader depends on the store and on every Notifier registered, including
// ones registered after it.
type Uploader struct {
	Store     *PhotoStore
	Notifiers *descriptor.Collection[Notifier]
	Log       *zap.Logger `inject:""`
}

func NewUploader(store *PhotoStore, notifiers *descriptor.Collection[Notifier]) *Uploader {
	return &Uploader{Store: store, Notifiers: notifiers}
}

func (u *Uploader) Upload(name string) []string {
	u.Store.photos = append(u.Store.photos, name)
	var sent []string
	for _, n := range u.Notifiers.All() {
		sent = append(sent, n.Notify("uploaded "+name))
	}
	return sent
}

// Welcome runs once the container is booted.
func (u *Uploader) Welcome(index *PhotoIndex) {
	sent := u.Upload("welcome.jpg")
	u.Log.Info("startup upload",
		zap.Int("indexed", index.Count()),
		zap.String("notified", strings.Join(sent, "; ")),
	)
}

// ── Provider ─────────────────────────────────────────────────────────────────

type PhotoServiceProvider struct {
	container.BaseProvider
}

func (p *PhotoServiceProvider) Register(t *scanner.Table) {
	t.Component(NewUploader, scanner.OnStartup("Welcome"))
	t.Component(NewPhotoStore,
		scanner.Params("storagePath"),
		scanner.PostInit("Open"),
		scanner.PreDestroy("Close"),
		scanner.Produces("Index"),
	)
	t.Component(func() *EmailNotifier { return &EmailNotifier{} }, scanner.As[Notifier]())
	t.Component(func() *ChatNotifier { return &ChatNotifier{Channel: "photos"} },
		scanner.As[Notifier](), scanner.Tag("notifier"))
}

func main() {
	cfg := config.Load()
	cfg.Container.Aliases["notifier"] = "service"
	cfg.Container.Use = append(cfg.Container.Use,
		container.Needs[string](container.NewSupplier(), "storagePath").
			GiveValue(config.Get("PHOTO_ROOT", "/tmp/photos")))

	application, err := app.New(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := application.Register(&PhotoServiceProvider{}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		application.Logger().Error("application stopped", zap.Error(err))
		os.Exit(1)
	}
}
