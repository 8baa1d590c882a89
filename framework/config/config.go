package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/km-arc/go-ioc/framework/descriptor"
	"github.com/km-arc/go-ioc/framework/http/validation"
)

// DefaultMaxIterations bounds how many times the boot queue may rotate
// without progress before resolution gives up.
const DefaultMaxIterations = 10000

// Config is the central typed configuration struct.
type Config struct {
	App       AppConfig       `yaml:"app"`
	Container ContainerConfig `yaml:"container"`
	Log       LogConfig       `yaml:"log"`
	Inspect   InspectConfig   `yaml:"inspect"`
}

type AppConfig struct {
	Name  string `yaml:"name"`
	Env   string `yaml:"env"` // local | production | testing
	Debug bool   `yaml:"debug"`
}

// ContainerConfig drives discovery and resolution.
type ContainerConfig struct {
	MaxIterations int               `yaml:"max_iterations"`
	ComponentTags []string          `yaml:"component_tags"`
	ProductTags   []string          `yaml:"product_tags"`
	Aliases       map[string]string `yaml:"aliases"` // alias → canonical tag

	// Provide holds instances registered before any component is built.
	Provide []any `yaml:"-"`
	// Use holds resolvers consulted for requirements no component satisfies.
	Use []descriptor.Resolver `yaml:"-"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // json | console
}

type InspectConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		App: AppConfig{
			Name:  "go-ioc",
			Env:   "local",
			Debug: true,
		},
		Container: ContainerConfig{
			MaxIterations: DefaultMaxIterations,
			ComponentTags: []string{"service"},
			ProductTags:   []string{"bean"},
			Aliases:       map[string]string{},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Inspect: InspectConfig{
			Enabled: false,
			Addr:    ":9090",
		},
	}
}

// Load reads .env (if present) and populates a Config from environment variables.
// Call once at bootstrap: cfg := config.Load()
func Load(envFiles ...string) *Config {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	// Non-fatal: .env may not exist in production
	_ = godotenv.Load(files...)

	d := Defaults()
	return &Config{
		App: AppConfig{
			Name:  env("APP_NAME", d.App.Name),
			Env:   env("APP_ENV", d.App.Env),
			Debug: envBool("APP_DEBUG", d.App.Debug),
		},
		Container: ContainerConfig{
			MaxIterations: GetInt("IOC_MAX_ITERATIONS", d.Container.MaxIterations),
			ComponentTags: envList("IOC_COMPONENT_TAGS", d.Container.ComponentTags),
			ProductTags:   envList("IOC_PRODUCT_TAGS", d.Container.ProductTags),
			Aliases:       envPairs("IOC_TAG_ALIASES"),
		},
		Log: LogConfig{
			Level:  env("LOG_LEVEL", d.Log.Level),
			Format: env("LOG_FORMAT", d.Log.Format),
		},
		Inspect: InspectConfig{
			Enabled: envBool("INSPECT_ENABLED", d.Inspect.Enabled),
			Addr:    env("INSPECT_ADDR", d.Inspect.Addr),
		},
	}
}

// LoadFile reads a YAML file over the defaults. Keys missing from the file
// keep their default value.
func LoadFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg := Defaults()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.Container.Aliases == nil {
		cfg.Container.Aliases = map[string]string{}
	}
	return cfg, nil
}

// Validate checks every setting and returns a *validation.Errors describing
// each invalid one.
func (c *Config) Validate() error {
	data := map[string]string{
		"app.name":                 c.App.Name,
		"app.env":                  c.App.Env,
		"container.max_iterations": strconv.Itoa(c.Container.MaxIterations),
		"container.component_tags": strings.Join(c.Container.ComponentTags, ","),
		"container.product_tags":   strings.Join(c.Container.ProductTags, ","),
		"log.level":                c.Log.Level,
		"log.format":               c.Log.Format,
	}
	rules := validation.Rules{
		"app.name":                 "required|max:64",
		"app.env":                  "required|in:local,production,testing",
		"container.max_iterations": "required|integer|gte:1",
		"container.component_tags": "required|list",
		"container.product_tags":   "required|list",
		"log.level":                "required|in:debug,info,warn,error",
		"log.format":               "required|in:json,console",
	}
	if c.Inspect.Enabled {
		data["inspect.addr"] = c.Inspect.Addr
		rules["inspect.addr"] = "required|hostport"
	}
	for alias, canonical := range c.Container.Aliases {
		key := "container.aliases." + alias
		data[key] = canonical
		rules[key] = "required|alpha_dash"
	}
	return validation.Make(data, rules).Err()
}

// AliasPairs returns the tag aliases sorted by alias name.
func (c *ContainerConfig) AliasPairs() [][2]string {
	keys := make([]string, 0, len(c.Aliases))
	for k := range c.Aliases {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	pairs := make([][2]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, [2]string{k, c.Aliases[k]})
	}
	return pairs
}

// Get returns a raw env value, falling back to defaultVal.
func Get(key, defaultVal string) string {
	return env(key, defaultVal)
}

// GetInt returns an int env value.
func GetInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

// GetBool returns a bool env value.
func GetBool(key string, defaultVal bool) bool {
	return envBool(key, defaultVal)
}

// ── helpers ─────────────────────────────────────────────────────────────────

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// envList splits "a, b,c" into [a b c]. Empty items are kept so Validate
// can reject them.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return slices.Clone(fallback)
	}
	parts := strings.Split(v, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// envPairs parses "alias:canonical,alias2:canonical2".
func envPairs(key string) map[string]string {
	out := map[string]string{}
	for _, item := range strings.Split(os.Getenv(key), ",") {
		alias, canonical, ok := strings.Cut(strings.TrimSpace(item), ":")
		if !ok || alias == "" {
			continue
		}
		out[strings.TrimSpace(alias)] = strings.TrimSpace(canonical)
	}
	return out
}
