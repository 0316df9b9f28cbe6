package core

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	APIConfig struct {
		BaseURL string        `json:"base_url" validate:"required,url"`
		Token   string        `json:"token"`
		Timeout time.Duration `json:"timeout" validate:"gte=0"`
	}

	DashboardConfig struct {
		DebounceDelay    time.Duration `json:"debounce_delay" validate:"gte=0"`
		PageSize         int           `json:"page_size" validate:"min=1"`
		PreservedFields  []string      `json:"preserved_fields"`
		ClearRowsOnError bool          `json:"clear_rows_on_error"`
	}

	ServerConfig struct {
		Host            string        `json:"host"`
		Address         string        `json:"address" validate:"required"`
		DebugHost       string        `json:"debug_host"`
		ShutdownTimeout time.Duration `json:"shutdown_timeout" validate:"gte=0"`
		FixtureLatency  time.Duration `json:"fixture_latency" validate:"gte=0"`
	}

	Config struct {
		Env          string          `json:"env"`
		Build        string          `json:"build"`
		Debug        bool            `json:"debug"`
		TestMode     bool            `json:"test_mode"`
		AppName      string          `json:"app_name" validate:"required"`
		RollbarToken string          `json:"rollbar_token"`
		API          APIConfig       `json:"api"`
		Dashboard    DashboardConfig `json:"dashboard"`
		Server       ServerConfig    `json:"server"`
	}
)

// NewConfig loads the configuration from defaults, the optional `config/.env.<env>` file and the environment.
// Environment variables are prefixed with the upper-cased env name, e.g. `DEV_API_BASEURL`.
func NewConfig() (*Config, error) {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Ushauri")
	v.SetDefault("build", "develop")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("api.baseURL", "http://localhost:8000/v1")
	v.SetDefault("api.token", "")
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("dashboard.debounceDelay", 400*time.Millisecond)
	v.SetDefault("dashboard.pageSize", 10)
	v.SetDefault("dashboard.preservedFields", []string{"year", "month"})
	v.SetDefault("dashboard.clearRowsOnError", false)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.fixtureLatency", time.Duration(0))

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	if root, err := Getwd(); err == nil {
		dotEnvPath := filepath.Join(root, "config", ".env."+strings.ToLower(env))
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
			}
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
		}
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:          env,
		Build:        v.GetString("build"),
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		AppName:      v.GetString("appName"),
		RollbarToken: v.GetString("rollbarToken"),
		API: APIConfig{
			BaseURL: strings.TrimRight(v.GetString("api.baseURL"), "/"),
			Token:   v.GetString("api.token"),
			Timeout: v.GetDuration("api.timeout"),
		},
		Dashboard: DashboardConfig{
			DebounceDelay:    v.GetDuration("dashboard.debounceDelay"),
			PageSize:         v.GetInt("dashboard.pageSize"),
			PreservedFields:  cleanList(v.GetStringSlice("dashboard.preservedFields")),
			ClearRowsOnError: v.GetBool("dashboard.clearRowsOnError"),
		},
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Address:         v.GetString("server.address"),
			DebugHost:       v.GetString("server.debugHost"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
			FixtureLatency:  v.GetDuration("server.fixtureLatency"),
		},
	}

	validate, translator := NewValidator()
	if err := validate.Struct(conf); err != nil {
		if vErrs, ok := err.(validator.ValidationErrors); ok {
			return nil, TranslateValidation(vErrs, translator)
		}
		return nil, errors.Wrap(err, "validating config")
	}
	return conf, nil
}

// cleanList drops blank entries; env vars hold lists as a single comma separated value.
func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = CleanString(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
