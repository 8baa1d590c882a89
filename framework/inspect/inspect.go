// Package inspect serves a read-only JSON view of a booted container.
//
//	GET /components            every registered component
//	GET /components/{type}     components of one type, ?qualifier= narrows
//	GET /tags/{tag}            components carrying a role tag
//	GET /graph                 vertices, edges and dependency order
//	GET /metrics               Prometheus exposition
package inspect

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/km-arc/go-ioc/framework/container"
	"github.com/km-arc/go-ioc/framework/descriptor"
	gohttp "github.com/km-arc/go-ioc/framework/http"
	"github.com/km-arc/go-ioc/framework/http/validation"
	"github.com/km-arc/go-ioc/framework/routing"
)

// Component is the JSON view of one descriptor.
type Component struct {
	ID         string   `json:"id"`
	Type       string   `json:"type"`
	Qualifier  string   `json:"qualifier,omitempty"`
	Scope      string   `json:"scope"`
	State      string   `json:"state"`
	Tags       []string `json:"tags,omitempty"`
	Provided   bool     `json:"provided,omitempty"`
	ProductOf  string   `json:"product_of,omitempty"`
	Dependents []string `json:"dependents,omitempty"`
}

// Graph is the JSON view of the dependency graph. Edges point from consumer
// to provider; Order lists providers first.
type Graph struct {
	Vertices []string    `json:"vertices"`
	Edges    [][2]string `json:"edges"`
	Order    []string    `json:"order"`
}

type handler struct {
	c *container.Container
}

// Option configures the handler.
type Option func(*options)

type options struct {
	log      *zap.Logger
	gatherer prometheus.Gatherer
}

// WithLogger logs each request at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithGatherer exposes the gatherer's metrics on /metrics. Without it the
// route is not mounted.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(o *options) { o.gatherer = g }
}

// New returns the inspection handler for c.
func New(c *container.Container, opts ...Option) http.Handler {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	h := &handler{c: c}

	r := routing.New(o.log)
	r.Group(func(api *routing.Router) {
		// Reload and Update change the answers.
		api.Middleware(middleware.NoCache)
		api.Prefix("/components", func(cr *routing.Router) {
			cr.Get("/", h.components)
			cr.Get("/{type}", h.componentsOfType)
		})
		api.Get("/tags/{tag}", h.tagged)
		api.Get("/graph", h.graph)
	})
	if o.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(o.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (h *handler) components(w http.ResponseWriter, r *http.Request) {
	gohttp.NewResponse(w).Success(h.views(h.c.Components()))
}

func (h *handler) componentsOfType(w http.ResponseWriter, r *http.Request) {
	req, res := gohttp.NewRequest(r), gohttp.NewResponse(w)
	if v := req.Validate(validation.Rules{"qualifier": "sometimes|alpha_dash"}); v.Fails() {
		res.ValidationError(v.Errors())
		return
	}

	name := strings.TrimPrefix(req.RouteParam("type"), "*")
	qualifier := req.Query("qualifier")
	var found []*descriptor.Descriptor
	for _, d := range h.c.Components() {
		if strings.TrimPrefix(descriptor.TypeName(d.Type), "*") != name {
			continue
		}
		if qualifier != "" && d.Qualifier != qualifier {
			continue
		}
		found = append(found, d)
	}
	if len(found) == 0 {
		res.NotFound("no component of type " + req.RouteParam("type"))
		return
	}
	res.Success(h.views(found))
}

func (h *handler) tagged(w http.ResponseWriter, r *http.Request) {
	tag := routing.Param(r, "tag")
	gohttp.NewResponse(w).Success(h.views(h.c.TaggedComponents(tag)))
}

func (h *handler) graph(w http.ResponseWriter, r *http.Request) {
	res := gohttp.NewResponse(w)
	order, err := h.c.DependencyOrder()
	if err != nil {
		res.ServerError(err.Error())
		return
	}
	g := h.c.Graph()
	out := Graph{
		Vertices: g.GetVertices(),
		Edges:    g.GetEdges(),
		Order:    make([]string, 0, len(order)),
	}
	if out.Edges == nil {
		out.Edges = [][2]string{}
	}
	for _, d := range order {
		out.Order = append(out.Order, h.id(d))
	}
	res.Success(out)
}

func (h *handler) views(ds []*descriptor.Descriptor) []Component {
	out := make([]Component, 0, len(ds))
	for _, d := range ds {
		v := Component{
			ID:        h.id(d),
			Type:      descriptor.TypeName(d.Type),
			Qualifier: d.Qualifier,
			Scope:     d.Scope.String(),
			State:     d.State().String(),
			Tags:      d.Tags,
			Provided:  d.Provided,
		}
		if d.IsProduct() {
			v.ProductOf = h.id(d.Parent)
		}
		for _, dep := range d.Dependents() {
			v.Dependents = append(v.Dependents, h.id(dep))
		}
		out = append(out, v)
	}
	return out
}

func (h *handler) id(d *descriptor.Descriptor) string {
	if id, ok := h.c.GraphID(d); ok {
		return id
	}
	return d.String()
}
