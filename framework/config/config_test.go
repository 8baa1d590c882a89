package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-ioc/framework/config"
	"github.com/km-arc/go-ioc/framework/http/validation"
)

// ── helpers ──────────────────────────────────────────────────────────────────

var keys = []string{
	"APP_NAME", "APP_ENV", "APP_DEBUG",
	"IOC_MAX_ITERATIONS", "IOC_COMPONENT_TAGS", "IOC_PRODUCT_TAGS", "IOC_TAG_ALIASES",
	"LOG_LEVEL", "LOG_FORMAT", "INSPECT_ENABLED", "INSPECT_ADDR",
}

// clearEnv blanks every key Load reads; env() treats blank as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// ── Load ─────────────────────────────────────────────────────────────────────

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg := config.Load("testdata/missing.env")

	assert.Equal(t, "go-ioc", cfg.App.Name)
	assert.Equal(t, "local", cfg.App.Env)
	assert.True(t, cfg.App.Debug)
	assert.Equal(t, config.DefaultMaxIterations, cfg.Container.MaxIterations)
	assert.Equal(t, []string{"service"}, cfg.Container.ComponentTags)
	assert.Equal(t, []string{"bean"}, cfg.Container.ProductTags)
	assert.Empty(t, cfg.Container.Aliases)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.False(t, cfg.Inspect.Enabled)
	assert.Equal(t, ":9090", cfg.Inspect.Addr)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("APP_DEBUG", "false")
	t.Setenv("IOC_MAX_ITERATIONS", "250")
	t.Setenv("IOC_COMPONENT_TAGS", "service, component")
	t.Setenv("IOC_TAG_ALIASES", "repository:service, controller:service,broken")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("INSPECT_ENABLED", "true")
	t.Setenv("INSPECT_ADDR", "127.0.0.1:8081")

	cfg := config.Load("testdata/missing.env")

	assert.Equal(t, "production", cfg.App.Env)
	assert.False(t, cfg.App.Debug)
	assert.Equal(t, 250, cfg.Container.MaxIterations)
	assert.Equal(t, []string{"service", "component"}, cfg.Container.ComponentTags)
	assert.Equal(t, map[string]string{"repository": "service", "controller": "service"}, cfg.Container.Aliases)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Inspect.Enabled)
	assert.Equal(t, "127.0.0.1:8081", cfg.Inspect.Addr)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_ReadsDotEnvFile(t *testing.T) {
	clearEnv(t)
	// godotenv never overrides a variable that is already set, even blank.
	require.NoError(t, os.Unsetenv("IOC_PRODUCT_TAGS"))
	t.Cleanup(func() { _ = os.Unsetenv("IOC_PRODUCT_TAGS") })

	path := writeFile(t, "test.env", "IOC_PRODUCT_TAGS=bean,factory\n")
	cfg := config.Load(path)

	assert.Equal(t, []string{"bean", "factory"}, cfg.Container.ProductTags)
}

// ── LoadFile ─────────────────────────────────────────────────────────────────

func TestLoadFile_OverlaysDefaults(t *testing.T) {
	path := writeFile(t, "ioc.yaml", `
app:
  name: photos
container:
  max_iterations: 42
  aliases:
    repository: service
log:
  level: debug
`)
	cfg, err := config.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "photos", cfg.App.Name)
	assert.Equal(t, "local", cfg.App.Env, "unset keys keep defaults")
	assert.Equal(t, 42, cfg.Container.MaxIterations)
	assert.Equal(t, []string{"service"}, cfg.Container.ComponentTags)
	assert.Equal(t, [][2]string{{"repository", "service"}}, cfg.Container.AliasPairs())
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := config.LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = config.LoadFile(writeFile(t, "bad.yaml", "container: [1, 2"))
	assert.ErrorContains(t, err, "parse")
}

// ── Validate ─────────────────────────────────────────────────────────────────

func TestValidate_RejectsBadSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		field  string
	}{
		{"zero iterations", func(c *config.Config) { c.Container.MaxIterations = 0 }, "container.max_iterations"},
		{"no component tags", func(c *config.Config) { c.Container.ComponentTags = nil }, "container.component_tags"},
		{"blank product tag", func(c *config.Config) { c.Container.ProductTags = []string{"bean", ""} }, "container.product_tags"},
		{"unknown level", func(c *config.Config) { c.Log.Level = "trace" }, "log.level"},
		{"unknown format", func(c *config.Config) { c.Log.Format = "xml" }, "log.format"},
		{"unknown env", func(c *config.Config) { c.App.Env = "staging" }, "app.env"},
		{"bad inspect addr", func(c *config.Config) {
			c.Inspect.Enabled = true
			c.Inspect.Addr = "nowhere"
		}, "inspect.addr"},
		{"blank alias target", func(c *config.Config) { c.Container.Aliases["repository"] = "" }, "container.aliases.repository"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			var bag *validation.Errors
			require.ErrorAs(t, err, &bag)
			assert.NotEmpty(t, bag.First(tt.field))
		})
	}
}

func TestValidate_DisabledInspectSkipsAddr(t *testing.T) {
	cfg := config.Defaults()
	cfg.Inspect.Addr = "nowhere"
	assert.NoError(t, cfg.Validate())
}

// ── Get / GetInt / GetBool ───────────────────────────────────────────────────

func TestGet_Helpers(t *testing.T) {
	t.Setenv("CUSTOM_KEY", "hello")
	t.Setenv("SOME_INT", "42")
	t.Setenv("BAD_INT", "notanint")
	t.Setenv("BOOL_KEY", "TRUE")
	t.Setenv("BAD_BOOL", "notabool")

	assert.Equal(t, "hello", config.Get("CUSTOM_KEY", "default"))
	assert.Equal(t, "fallback", config.Get("MISSING_KEY_FOR_TEST", "fallback"))
	assert.Equal(t, 42, config.GetInt("SOME_INT", 0))
	assert.Equal(t, 99, config.GetInt("BAD_INT", 99))
	assert.True(t, config.GetBool("BOOL_KEY", false))
	assert.True(t, config.GetBool("BAD_BOOL", true))
}
