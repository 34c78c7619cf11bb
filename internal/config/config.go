package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// ProviderOpenAI OpenAI Chat Completions API
	ProviderOpenAI = "openai"
	// ProviderAnthropic Anthropic Messages API
	ProviderAnthropic = "anthropic"
)

// Config アプリケーション全体の設定
type Config struct {
	Provider  string      `yaml:"provider"`
	OpenAI    ModelConfig `yaml:"openai"`
	Anthropic ModelConfig `yaml:"anthropic"`
	Redis     RedisConfig `yaml:"redis"`
	MySQL     MySQLConfig `yaml:"mysql"`
	Menu      MenuConfig  `yaml:"menu"`
}

// ModelConfig マルチモーダルモデルAPIの設定
type ModelConfig struct {
	APIKey         string  `yaml:"api_key"`
	Model          string  `yaml:"model"`
	MaxTokens      int     `yaml:"max_tokens"`
	Temperature    float64 `yaml:"temperature"`
	Endpoint       string  `yaml:"endpoint"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// Timeout HTTPクライアントのタイムアウトを返す（0以下なら60秒）
func (c ModelConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RedisConfig Redisの設定
type RedisConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	TTLMinutes int    `yaml:"ttl_minutes"`
	KeyPrefix  string `yaml:"key_prefix"`
}

// TTL キャッシュの有効期限を返す
func (c RedisConfig) TTL() time.Duration {
	if c.TTLMinutes <= 0 {
		return 60 * time.Minute
	}
	return time.Duration(c.TTLMinutes) * time.Minute
}

// MySQLConfig MySQLの設定
type MySQLConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// MenuConfig メニュー解析の入力制限
type MenuConfig struct {
	MaxImageBytes int64 `yaml:"max_image_bytes"`
	MaxImages     int   `yaml:"max_images"`
}

// Load 設定ファイルを読み込む
func Load(configPath string) (*Config, error) {
	// .envがあれば環境変数に読み込む（無くてもエラーにしない）
	_ = godotenv.Load()

	// 設定ファイルが存在しない場合はデフォルト設定を返す
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// 環境変数の展開
	dataStr := os.ExpandEnv(string(data))

	// 未指定の項目はデフォルト値のまま残す
	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(dataStr), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig デフォルト設定を返す
func DefaultConfig() *Config {
	// Redis/MySQLのホストはテスト環境では localhost を使用
	redisHost := "redis"
	mysqlHost := "mysql"
	if os.Getenv("GO_ENV") == "test" {
		redisHost = "localhost"
		mysqlHost = "localhost"
	}

	provider := os.Getenv("MENU_PROVIDER")
	if provider == "" {
		provider = ProviderOpenAI
	}

	return &Config{
		Provider: provider,
		OpenAI: ModelConfig{
			APIKey:         os.Getenv("OPENAI_API_KEY"),
			Model:          "gpt-4o-mini",
			MaxTokens:      4096,
			Temperature:    0.2,
			Endpoint:       "https://api.openai.com/v1/chat/completions",
			TimeoutSeconds: 60,
		},
		Anthropic: ModelConfig{
			APIKey:         os.Getenv("ANTHROPIC_API_KEY"),
			Model:          "claude-haiku-4-5-20251001",
			MaxTokens:      4096,
			Temperature:    0.2,
			Endpoint:       "https://api.anthropic.com/v1/messages",
			TimeoutSeconds: 60,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Host:       redisHost,
			Port:       6379,
			Password:   "",
			DB:         0,
			TTLMinutes: 60,
			KeyPrefix:  "menu-analyzer:",
		},
		MySQL: MySQLConfig{
			Enabled:  false,
			Host:     mysqlHost,
			Port:     3306,
			User:     "root",
			Password: os.Getenv("MYSQL_ROOT_PASSWORD"),
			Database: "menu",
		},
		Menu: MenuConfig{
			MaxImageBytes: 10 << 20,
			MaxImages:     10,
		},
	}
}

// DefaultTemplate 保存用のデフォルト設定（秘密情報は環境変数の参照にする）
func DefaultTemplate() *Config {
	cfg := DefaultConfig()
	cfg.Provider = ProviderOpenAI
	cfg.OpenAI.APIKey = "${OPENAI_API_KEY}"
	cfg.Anthropic.APIKey = "${ANTHROPIC_API_KEY}"
	cfg.MySQL.Password = "${MYSQL_ROOT_PASSWORD}"
	return cfg
}

// Validate 設定値を検証する
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("unknown provider: %q", c.Provider)
	}

	model := c.ActiveModel()
	if model.Model == "" {
		return fmt.Errorf("%s.model is required", c.Provider)
	}
	if model.MaxTokens <= 0 {
		return fmt.Errorf("%s.max_tokens must be positive", c.Provider)
	}
	if model.Temperature < 0 || model.Temperature > 2 {
		return fmt.Errorf("%s.temperature must be between 0 and 2", c.Provider)
	}
	if c.Menu.MaxImageBytes <= 0 {
		return fmt.Errorf("menu.max_image_bytes must be positive")
	}
	if c.Menu.MaxImages <= 0 {
		return fmt.Errorf("menu.max_images must be positive")
	}
	return nil
}

// ActiveModel 選択中プロバイダーのモデル設定を返す
func (c *Config) ActiveModel() ModelConfig {
	if c.Provider == ProviderAnthropic {
		return c.Anthropic
	}
	return c.OpenAI
}

// Save 設定をファイルに保存する
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
