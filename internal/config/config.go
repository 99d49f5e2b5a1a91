package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	DefaultModel       = "openai/gpt-4o-mini"
	DefaultMaxRounds   = 10
	DefaultTimeout     = 120 * time.Second
	DefaultToolTimeout = 30 * time.Second
	DefaultBaseURL     = "https://openrouter.ai/api/v1"
	DefaultSessionTTL  = 30 * time.Minute
	DefaultMaxParallel = 5
	DefaultResultBytes = 20 * 1024
	DefaultWebBytes    = 30 * 1024
	DefaultPreviewLine = 5
)

// ToolLimits controls max output sizes for tool results.
type ToolLimits struct {
	ResultMaxBytes int `mapstructure:"result_max_bytes"`
	WebMaxBytes    int `mapstructure:"web_max_bytes"`
	PreviewLines   int `mapstructure:"preview_lines"`
}

// Config holds runtime configuration values.
type Config struct {
	Model            string
	MaxRounds        int
	Timeout          time.Duration
	ToolTimeout      time.Duration
	Stream           bool
	Quiet            bool
	JSON             bool
	Verbose          bool
	LogFile          string
	BaseURL          string
	HTTPReferer      string
	Title            string
	SessionTTL       time.Duration
	MaxParallelTools int
	NoWeb            bool
	ToolLimits       ToolLimits
}

type rawConfig struct {
	Model            string     `mapstructure:"model"`
	MaxRounds        int        `mapstructure:"max_rounds"`
	Timeout          string     `mapstructure:"timeout"`
	ToolTimeout      string     `mapstructure:"tool_timeout"`
	Stream           bool       `mapstructure:"stream"`
	Quiet            bool       `mapstructure:"quiet"`
	JSON             bool       `mapstructure:"json"`
	Verbose          bool       `mapstructure:"verbose"`
	LogFile          string     `mapstructure:"log_file"`
	BaseURL          string     `mapstructure:"base_url"`
	HTTPReferer      string     `mapstructure:"http_referer"`
	Title            string     `mapstructure:"title"`
	SessionTTL       string     `mapstructure:"session_ttl"`
	MaxParallelTools int        `mapstructure:"max_parallel_tools"`
	NoWeb            bool       `mapstructure:"no_web"`
	ToolLimits       ToolLimits `mapstructure:"tool_limits"`
}

// Load resolves configuration from defaults, config files, env, and flags.
func Load(cmd *cobra.Command) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TOOLFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("model", DefaultModel)
	v.SetDefault("max_rounds", DefaultMaxRounds)
	v.SetDefault("timeout", DefaultTimeout.String())
	v.SetDefault("tool_timeout", DefaultToolTimeout.String())
	v.SetDefault("stream", false)
	v.SetDefault("quiet", false)
	v.SetDefault("json", false)
	v.SetDefault("verbose", false)
	v.SetDefault("log_file", "")
	v.SetDefault("base_url", DefaultBaseURL)
	v.SetDefault("session_ttl", DefaultSessionTTL.String())
	v.SetDefault("max_parallel_tools", DefaultMaxParallel)
	v.SetDefault("no_web", false)
	v.SetDefault("tool_limits.result_max_bytes", DefaultResultBytes)
	v.SetDefault("tool_limits.web_max_bytes", DefaultWebBytes)
	v.SetDefault("tool_limits.preview_lines", DefaultPreviewLine)

	if cmd != nil {
		_ = v.BindPFlag("model", cmd.Flags().Lookup("model"))
		_ = v.BindPFlag("max_rounds", cmd.Flags().Lookup("max-rounds"))
		_ = v.BindPFlag("timeout", cmd.Flags().Lookup("timeout"))
		_ = v.BindPFlag("stream", cmd.Flags().Lookup("stream"))
		_ = v.BindPFlag("quiet", cmd.Flags().Lookup("quiet"))
		_ = v.BindPFlag("json", cmd.Flags().Lookup("json"))
		_ = v.BindPFlag("verbose", cmd.Flags().Lookup("verbose"))
		_ = v.BindPFlag("log_file", cmd.Flags().Lookup("log-file"))
		_ = v.BindPFlag("no_web", cmd.Flags().Lookup("no-web"))
	}

	if model := os.Getenv("OPENAI_MODEL"); model != "" && os.Getenv("TOOLFLOW_MODEL") == "" {
		v.Set("model", model)
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" && os.Getenv("TOOLFLOW_BASE_URL") == "" {
		v.Set("base_url", baseURL)
	}
	if seconds := os.Getenv("TOOLFLOW_TIMEOUT_SECONDS"); seconds != "" {
		v.Set("timeout", seconds+"s")
	}

	if err := loadConfigFile(v); err != nil {
		return Config{}, err
	}

	var raw rawConfig
	decoder, _ := mapstructure.NewDecoder(&mapstructure.DecoderConfig{TagName: "mapstructure", Result: &raw})
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return Config{}, err
	}

	timeout, err := parseDuration(raw.Timeout, DefaultTimeout)
	if err != nil {
		return Config{}, fmt.Errorf("invalid timeout duration: %w", err)
	}
	toolTimeout, err := parseDuration(raw.ToolTimeout, DefaultToolTimeout)
	if err != nil {
		return Config{}, fmt.Errorf("invalid tool_timeout duration: %w", err)
	}
	sessionTTL, err := parseDuration(raw.SessionTTL, DefaultSessionTTL)
	if err != nil {
		return Config{}, fmt.Errorf("invalid session_ttl duration: %w", err)
	}

	cfg := Config{
		Model:            raw.Model,
		MaxRounds:        raw.MaxRounds,
		Timeout:          timeout,
		ToolTimeout:      toolTimeout,
		Stream:           raw.Stream,
		Quiet:            raw.Quiet,
		JSON:             raw.JSON,
		Verbose:          raw.Verbose,
		LogFile:          raw.LogFile,
		BaseURL:          raw.BaseURL,
		HTTPReferer:      raw.HTTPReferer,
		Title:            raw.Title,
		SessionTTL:       sessionTTL,
		MaxParallelTools: raw.MaxParallelTools,
		NoWeb:            raw.NoWeb,
		ToolLimits:       raw.ToolLimits,
	}

	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = DefaultToolTimeout
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxParallelTools <= 0 {
		cfg.MaxParallelTools = DefaultMaxParallel
	}
	if cfg.ToolLimits.ResultMaxBytes <= 0 {
		cfg.ToolLimits.ResultMaxBytes = DefaultResultBytes
	}
	if cfg.ToolLimits.WebMaxBytes <= 0 {
		cfg.ToolLimits.WebMaxBytes = DefaultWebBytes
	}
	if cfg.ToolLimits.PreviewLines <= 0 {
		cfg.ToolLimits.PreviewLines = DefaultPreviewLine
	}

	return cfg, nil
}

func parseDuration(value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	return time.ParseDuration(value)
}

func loadConfigFile(v *viper.Viper) error {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil
	}
	base := filepath.Join(configDir, "toolflow")
	candidates := []string{
		filepath.Join(base, "config.yaml"),
		filepath.Join(base, "config.yml"),
		filepath.Join(base, "config.json"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return err
			}
			return nil
		}
	}
	return nil
}
