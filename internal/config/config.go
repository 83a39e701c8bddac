package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// EnvPrefix prefixes environment overrides, e.g. ESGLENS_SERVER_PORT.
const EnvPrefix = "ESGLENS"

type Config struct {
	Sources       Sources       `yaml:"sources"`
	Classifier    Classifier    `yaml:"classifier"`
	Analysis      Analysis      `yaml:"analysis"`
	Disclosure    Disclosure    `yaml:"disclosure"`
	Assistant     Assistant     `yaml:"assistant"`
	ArticleAPI    ArticleAPI    `yaml:"article_api"`
	Notifications Notifications `yaml:"notifications"`
	Schedule      Schedule      `yaml:"schedule"`
	Output        Output        `yaml:"output"`
	Server        Server        `yaml:"server"`
	Logging       Logging       `yaml:"logging"`
}

type Sources struct {
	Feeds []Feed     `yaml:"feeds"`
	APIs  APIsConfig `yaml:"apis"`
}

// Feed is an RSS/Atom feed whose items all belong to one company.
type Feed struct {
	URL       string `yaml:"url"`
	Name      string `yaml:"name"`
	StockCode string `yaml:"stock_code"`
}

type APIsConfig struct {
	NewsAPI NewsAPIConfig `yaml:"newsapi"`
}

// NewsAPIConfig searches NewsAPI by company name for every tracked company.
type NewsAPIConfig struct {
	Enabled   bool   `yaml:"enabled"`
	APIKeyEnv string `yaml:"api_key_env"`
	Language  string `yaml:"language"`
	PageSize  int    `yaml:"page_size"`
	Days      int    `yaml:"days"`
}

type Classifier struct {
	Provider       string            `yaml:"provider"` // huggingface or sidecar
	HuggingFaceURL string            `yaml:"huggingface_url"`
	APIKeyEnv      string            `yaml:"api_key_env"`
	SidecarURL     string            `yaml:"sidecar_url"`
	MaxInputChars  int               `yaml:"max_input_chars"`
	TimeoutSeconds int               `yaml:"timeout_seconds"`
	Models         map[string]string `yaml:"models"`
}

type Analysis struct {
	Workers int `yaml:"workers"`
}

// Disclosure configures the DART OpenAPI client.
type Disclosure struct {
	BaseURL        string `yaml:"base_url"`
	APIKeyEnv      string `yaml:"api_key_env"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Assistant configures the CLOVA Studio skill-set relay.
type Assistant struct {
	Host          string `yaml:"host"`
	SkillsetPath  string `yaml:"skillset_path"`
	APIKeyEnv     string `yaml:"api_key_env"`
	GatewayKeyEnv string `yaml:"gateway_key_env"`
}

// ArticleAPI is the default external article source for single-article analysis.
type ArticleAPI struct {
	URL       string `yaml:"url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

type Notifications struct {
	Telegram Telegram `yaml:"telegram"`
}

type Telegram struct {
	Enabled     bool   `yaml:"enabled"`
	BotTokenEnv string `yaml:"bot_token_env"`
	ChatID      int64  `yaml:"chat_id"`
	MinScore    int    `yaml:"min_score"`
}

type Schedule struct {
	Enabled  bool   `yaml:"enabled"`
	Cron     string `yaml:"cron"`
	Timezone string `yaml:"timezone"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for esglens.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "esglens")
}

// DataDir returns the XDG data directory for esglens.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "esglens")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/esglens/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'esglens init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Sources: Sources{
			APIs: APIsConfig{
				NewsAPI: NewsAPIConfig{
					APIKeyEnv: "NEWSAPI_KEY",
					Language:  "en",
					PageSize:  20,
					Days:      7,
				},
			},
		},
		Classifier: Classifier{
			Provider:       "huggingface",
			HuggingFaceURL: "https://router.huggingface.co/hf-inference/models",
			APIKeyEnv:      "HF_API_TOKEN",
			SidecarURL:     "http://localhost:8090",
			MaxInputChars:  2000,
			TimeoutSeconds: 60,
		},
		Analysis: Analysis{Workers: 4},
		Disclosure: Disclosure{
			BaseURL:        "https://opendart.fss.or.kr/api",
			APIKeyEnv:      "DART_API_KEY",
			TimeoutSeconds: 30,
		},
		Assistant: Assistant{
			Host:          "https://clovastudio.stream.ntruss.com",
			APIKeyEnv:     "CLOVA_API_KEY",
			GatewayKeyEnv: "CLOVA_GATEWAY_KEY",
		},
		ArticleAPI: ArticleAPI{APIKeyEnv: "ARTICLE_API_KEY"},
		Notifications: Notifications{
			Telegram: Telegram{BotTokenEnv: "TELEGRAM_BOT_TOKEN", MinScore: 100},
		},
		Schedule: Schedule{Cron: "0 7 * * *", Timezone: "Asia/Seoul"},
		Server:   Server{Port: 5002, AllowedOrigins: []string{"*"}},
		Logging:  Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Classifier.Provider) {
	case "huggingface", "sidecar":
	default:
		return fmt.Errorf("classifier.provider must be huggingface or sidecar, got %q", c.Classifier.Provider)
	}
	if c.Analysis.Workers < 1 {
		return fmt.Errorf("analysis.workers must be at least 1, got %d", c.Analysis.Workers)
	}
	for i, f := range c.Sources.Feeds {
		if f.URL == "" || f.StockCode == "" {
			return fmt.Errorf("sources.feeds[%d]: url and stock_code are required", i)
		}
	}
	return nil
}

// NewViper returns a viper instance reading ESGLENS_* environment variables,
// with dots in keys mapped to underscores.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Overlay copies values set in v (environment or bound flags) over cfg.
func Overlay(cfg *Config, v *viper.Viper) {
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	num := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}

	str("logging.level", &cfg.Logging.Level)
	str("output.data_dir", &cfg.Output.DataDir)
	num("server.port", &cfg.Server.Port)
	str("classifier.provider", &cfg.Classifier.Provider)
	str("classifier.huggingface_url", &cfg.Classifier.HuggingFaceURL)
	str("classifier.sidecar_url", &cfg.Classifier.SidecarURL)
	num("analysis.workers", &cfg.Analysis.Workers)
	str("disclosure.base_url", &cfg.Disclosure.BaseURL)
	str("article_api.url", &cfg.ArticleAPI.URL)
	str("schedule.cron", &cfg.Schedule.Cron)
	str("schedule.timezone", &cfg.Schedule.Timezone)
	num("notifications.telegram.min_score", &cfg.Notifications.Telegram.MinScore)
	if v.IsSet("schedule.enabled") {
		cfg.Schedule.Enabled = v.GetBool("schedule.enabled")
	}
	if v.IsSet("notifications.telegram.enabled") {
		cfg.Notifications.Telegram.Enabled = v.GetBool("notifications.telegram.enabled")
	}
	if v.IsSet("notifications.telegram.chat_id") {
		cfg.Notifications.Telegram.ChatID = v.GetInt64("notifications.telegram.chat_id")
	}
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// Secret reads the environment variable named by envName.
func Secret(envName string) string {
	if envName == "" {
		return ""
	}
	return os.Getenv(envName)
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
