package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the sourcing agent.
type Config struct {
	General GeneralConfig `mapstructure:"general"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Search  SearchConfig  `mapstructure:"search"`
	Scrape  ScrapeConfig  `mapstructure:"scrape"`
	Storage StorageConfig `mapstructure:"storage"`
	Cache   CacheConfig   `mapstructure:"cache"`
}

// GeneralConfig contains server and auth settings.
type GeneralConfig struct {
	Listen    string `mapstructure:"listen"`
	JWTSecret string `mapstructure:"jwt_secret"`
	Debug     bool   `mapstructure:"debug"`
	LogLevel  string `mapstructure:"log_level"`
}

// LLMConfig contains the language-model gateway settings.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"` // groq
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// SearchConfig contains keys for the web-search adapters. DuckDuckGo needs no
// key and is always on.
type SearchConfig struct {
	TavilyAPIKey string `mapstructure:"tavily_api_key"`
	SerperAPIKey string `mapstructure:"serper_api_key"`
	MaxResults   int    `mapstructure:"max_results"`
}

// ScrapeConfig tunes the aggregator and the directory adapters.
type ScrapeConfig struct {
	Deadline       time.Duration `mapstructure:"deadline"`        // overall gather deadline
	AdapterTimeout time.Duration `mapstructure:"adapter_timeout"` // per adapter
	Fetcher        string        `mapstructure:"fetcher"`         // http or chromedp
	MaxChars       int           `mapstructure:"max_chars"`
	Directories    []string      `mapstructure:"directories"` // empty = all known
}

// StorageConfig contains Postgres and Redis settings.
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN builds a Postgres DSN from the explicit URL or the host fields.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (storage.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

type RedisConfig struct {
	Host       string        `mapstructure:"host"`
	Port       string        `mapstructure:"port"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	HistoryTTL time.Duration `mapstructure:"history_ttl"`
}

// CacheConfig bounds the in-process session/report cache.
type CacheConfig struct {
	ReportCapacity int `mapstructure:"report_capacity"`
}

// LoadConfig reads configuration from file and MFGAGENT_* environment
// variables. A missing config file is fine; env and defaults carry the day.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.listen", ":10010")
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("llm.provider", "groq")
	viper.SetDefault("llm.model", "llama-3.3-70b-versatile")
	viper.SetDefault("llm.temperature", 0.3)
	viper.SetDefault("llm.max_tokens", 4096)
	viper.SetDefault("llm.timeout", 60*time.Second)
	viper.SetDefault("search.max_results", 10)
	viper.SetDefault("scrape.deadline", 30*time.Second)
	viper.SetDefault("scrape.adapter_timeout", 12*time.Second)
	viper.SetDefault("scrape.fetcher", "http")
	viper.SetDefault("scrape.max_chars", 8000)
	viper.SetDefault("storage.redis.history_ttl", time.Hour)
	viper.SetDefault("cache.report_capacity", 50)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("MFGAGENT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	return &config
}
