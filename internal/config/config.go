// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/homepage-tone/internal/classify"
	"github.com/JakeFAU/homepage-tone/internal/logging"
	"github.com/JakeFAU/homepage-tone/internal/render"
	"github.com/JakeFAU/homepage-tone/internal/sanitize"
)

// EnvPrefix namespaces environment overrides, e.g. HARVEST_CLASSIFIER_MODEL.
const EnvPrefix = "HARVEST"

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Logging    logging.Config   `mapstructure:"logging"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Renderer   RendererConfig   `mapstructure:"renderer"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// FetchConfig drives the fetch command.
type FetchConfig struct {
	Out   string        `mapstructure:"out"`
	Sleep time.Duration `mapstructure:"sleep"`
}

// RendererConfig selects and tunes the page renderer.
type RendererConfig struct {
	Engine     string        `mapstructure:"engine"`
	NavTimeout time.Duration `mapstructure:"nav_timeout"`
	Settle     time.Duration `mapstructure:"settle"`
	UserAgent  string        `mapstructure:"user_agent"`
	Headless   bool          `mapstructure:"headless"`
	// InstallDriver lets the playwright engine download its driver on start.
	InstallDriver bool `mapstructure:"install_driver"`
}

// ClassifierConfig drives the classify command and the model endpoint.
type ClassifierConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	Model           string        `mapstructure:"model"`
	APIKey          string        `mapstructure:"api_key"`
	Temperature     float64       `mapstructure:"temperature"`
	TopP            float64       `mapstructure:"top_p"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxChars        int           `mapstructure:"max_chars"`
	MaxRPS          float64       `mapstructure:"max_rps"`
	ContinueOnError bool          `mapstructure:"continue_on_error"`
	In              string        `mapstructure:"in"`
	Out             string        `mapstructure:"out"`
}

// MetricsConfig controls the end-of-run metrics export.
type MetricsConfig struct {
	// Textfile is a node-exporter textfile path; empty disables the export.
	Textfile string `mapstructure:"textfile"`
}

// Load builds a Config from defaults, an optional file and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("fetch.out", "out/homepages.jsonl")
	v.SetDefault("fetch.sleep", time.Second)
	v.SetDefault("renderer.engine", render.EngineChromedp)
	v.SetDefault("renderer.nav_timeout", render.DefaultNavTimeout)
	v.SetDefault("renderer.settle", render.DefaultSettle)
	v.SetDefault("renderer.user_agent", "Mozilla/5.0 (compatible; HomepageHarvester/1.0)")
	v.SetDefault("renderer.headless", true)
	v.SetDefault("renderer.install_driver", false)
	v.SetDefault("classifier.base_url", classify.DefaultBaseURL)
	v.SetDefault("classifier.model", classify.DefaultModel)
	v.SetDefault("classifier.api_key", "")
	v.SetDefault("classifier.temperature", classify.DefaultTemperature)
	v.SetDefault("classifier.top_p", classify.DefaultTopP)
	v.SetDefault("classifier.max_tokens", classify.DefaultMaxTokens)
	v.SetDefault("classifier.timeout", classify.DefaultTimeout)
	v.SetDefault("classifier.max_chars", sanitize.DefaultMaxChars)
	v.SetDefault("classifier.max_rps", 0.0)
	v.SetDefault("classifier.continue_on_error", false)
	v.SetDefault("classifier.in", "out/homepages.jsonl")
	v.SetDefault("classifier.out", "out/homepages_with_sentiment.jsonl")
	v.SetDefault("metrics.textfile", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Fetch.Sleep < 0 {
		return fmt.Errorf("fetch.sleep must be >= 0")
	}
	switch strings.ToLower(c.Renderer.Engine) {
	case render.EngineChromedp, render.EnginePlaywright, render.EngineStatic:
	default:
		return fmt.Errorf("renderer.engine must be one of chromedp, playwright, static; got %q", c.Renderer.Engine)
	}
	if c.Renderer.NavTimeout <= 0 {
		return fmt.Errorf("renderer.nav_timeout must be > 0")
	}
	if c.Renderer.Settle < 0 {
		return fmt.Errorf("renderer.settle must be >= 0")
	}
	if strings.TrimSpace(c.Classifier.BaseURL) == "" {
		return fmt.Errorf("classifier.base_url must be set")
	}
	if strings.TrimSpace(c.Classifier.Model) == "" {
		return fmt.Errorf("classifier.model must be set")
	}
	if c.Classifier.MaxTokens <= 0 {
		return fmt.Errorf("classifier.max_tokens must be > 0")
	}
	if c.Classifier.Timeout <= 0 {
		return fmt.Errorf("classifier.timeout must be > 0")
	}
	if c.Classifier.MaxChars <= 0 {
		return fmt.Errorf("classifier.max_chars must be > 0")
	}
	if c.Classifier.MaxRPS < 0 {
		return fmt.Errorf("classifier.max_rps must be >= 0")
	}
	return nil
}
