package config

import (
	"strings"

	"github.com/spf13/viper"
)

// FeedConfig 一个上游 feed 的声明
type FeedConfig struct {
	// Type: mastodon / rss（server 二进制内置这两种抓取器，其余平台由宿主注入）
	Type       string `mapstructure:"type"`
	Host       string `mapstructure:"host"`
	URL        string `mapstructure:"url"`
	AccountKey string `mapstructure:"account_key"`
	PagingKey  string `mapstructure:"paging_key"`
	// RPS 每秒请求预算，0 用默认值
	RPS float64 `mapstructure:"rps"`
}

// Config 应用配置
type Config struct {
	DBPath   string       `mapstructure:"db_path"`
	Port     string       `mapstructure:"port"`
	Debug    bool         `mapstructure:"debug"`
	PageSize int          `mapstructure:"page_size"`
	Feeds    []FeedConfig `mapstructure:"feeds"`

	Cache struct {
		RedisAddr  string `mapstructure:"redis_addr"`
		TTLSeconds int    `mapstructure:"ttl_seconds"`
	} `mapstructure:"cache"`
}

// Load 读取配置：./config.yaml（可选）+ 环境变量（TLC_ 前缀）覆盖
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix("TLC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("db_path", "timeline-cache.db")
	v.SetDefault("port", "8080")
	v.SetDefault("debug", false)
	v.SetDefault("page_size", 20)
	v.SetDefault("cache.ttl_seconds", 60)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
