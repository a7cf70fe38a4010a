package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr        string `mapstructure:"listen_addr"`
	Port              string `mapstructure:"port"`
	DatabaseDriver    string `mapstructure:"database_driver"`
	DatabasePath      string `mapstructure:"database_path"`
	DatabaseDSN       string `mapstructure:"database_dsn"`
	SessionSecret     string `mapstructure:"session_secret"`
	GinMode           string `mapstructure:"gin_mode"`
	UploadDir         string `mapstructure:"upload_dir"`
	UploadURLPath     string `mapstructure:"upload_url_path"`
	LogLevel          string `mapstructure:"log_level"`
	LogPretty         bool   `mapstructure:"log_pretty"`
	FeedCategoryLimit int    `mapstructure:"feed_category_limit"`
	FeedPostLimit     int    `mapstructure:"feed_post_limit"`
	FeedImagesPerPost int    `mapstructure:"feed_images_per_post"`
	SuperRootUserName string `mapstructure:"super_root_user_name"`
	SuperRootPassword string `mapstructure:"super_root_password"`

	// MetricsRefreshInterval 为 0 时不启动时间窗口汇总的后台刷新。
	MetricsRefreshInterval time.Duration `mapstructure:"metrics_refresh_interval"`
}

var defaults = map[string]interface{}{
	"port":                 "8080",
	"listen_addr":          "",
	"database_driver":      "sqlite",
	"database_path":        "tagfeed.db",
	"database_dsn":         "",
	"session_secret":       "tagfeed-dev-secret",
	"gin_mode":             "release",
	"upload_dir":           "web/static/uploads",
	"upload_url_path":      "/static/uploads",
	"log_level":            "info",
	"log_pretty":           false,
	"feed_category_limit":  10,
	"feed_post_limit":      10,
	"feed_images_per_post": 1,
	"super_root_user_name": "",
	"super_root_password":  "",

	"metrics_refresh_interval": "10m",
}

// Load 读取 .env、可选的配置文件与环境变量，并为缺失项提供默认值。
// 优先级：环境变量 > 配置文件 > 默认值。
func Load(configFile string) (AppConfig, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return AppConfig{}, fmt.Errorf("load .env: %w", err)
		}
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
		// 显式绑定后 Unmarshal 才能读到环境变量。
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return AppConfig{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return AppConfig{}, fmt.Errorf("read config %s: %w", configFile, err)
			}
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return AppConfig{}, fmt.Errorf("decode config: %w", err)
	}
	return normalize(cfg), nil
}

func normalize(cfg AppConfig) AppConfig {
	cfg.Port = strings.TrimSpace(cfg.Port)
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	cfg.ListenAddr = strings.TrimSpace(cfg.ListenAddr)
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = fmt.Sprintf(":%s", cfg.Port)
	}
	cfg.DatabaseDriver = strings.ToLower(strings.TrimSpace(cfg.DatabaseDriver))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.SuperRootUserName = strings.TrimSpace(cfg.SuperRootUserName)
	cfg.SuperRootPassword = strings.TrimSpace(cfg.SuperRootPassword)
	if cfg.FeedImagesPerPost <= 0 {
		cfg.FeedImagesPerPost = 1
	}
	if cfg.MetricsRefreshInterval < 0 {
		cfg.MetricsRefreshInterval = 0
	}
	return cfg
}

// DSN 返回当前驱动对应的连接串。
func (c AppConfig) DSN() string {
	if c.DatabaseDriver == "postgres" {
		return c.DatabaseDSN
	}
	return c.DatabasePath
}
