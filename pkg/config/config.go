package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"katydid-mvc-binding/pkg/binding/validate"
	"katydid-mvc-binding/pkg/logger"
)

// EnvPrefix 环境变量前缀，如 MVC_SERVER_ADDR、MVC_LOG_LEVEL
const EnvPrefix = "MVC"

// Config 应用配置
type Config struct {
	Server ServerConfig  `mapstructure:"server"`
	Log    logger.Config `mapstructure:"log"`
	// Tags 注解使用的 tag 键
	Tags validate.TagConfig `mapstructure:"tags"`
	// TypeCacheSize 类型信息缓存容量
	TypeCacheSize int `mapstructure:"type_cache_size"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// MetricsPath Prometheus 指标路径，为空时不暴露
	MetricsPath string `mapstructure:"metrics_path"`
}

// Load 读取配置：默认值 < 配置文件（path 为空时跳过）< 环境变量
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查配置的合法性
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr must not be empty")
	}
	if c.TypeCacheSize < 0 {
		return fmt.Errorf("type_cache_size must not be negative, got %d", c.TypeCacheSize)
	}
	return nil
}

// setDefaults 所有键都需要默认值，AutomaticEnv 只对已知的键生效
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.metrics_path", "/metrics")

	logCfg := logger.DefaultConfig()
	v.SetDefault("log.level", logCfg.Level)
	v.SetDefault("log.encoding", logCfg.Encoding)
	v.SetDefault("log.file.path", logCfg.File.Path)
	v.SetDefault("log.file.max_size_mb", logCfg.File.MaxSizeMB)
	v.SetDefault("log.file.max_backups", logCfg.File.MaxBackups)
	v.SetDefault("log.file.max_age_days", logCfg.File.MaxAgeDays)
	v.SetDefault("log.file.compress", logCfg.File.Compress)

	tags := validate.DefaultTagConfig()
	v.SetDefault("tags.query", tags.Query)
	v.SetDefault("tags.path", tags.Path)
	v.SetDefault("tags.form", tags.Form)
	v.SetDefault("tags.matrix", tags.Matrix)
	v.SetDefault("tags.cookie", tags.Cookie)
	v.SetDefault("tags.mvc_binding", tags.MvcBinding)
	v.SetDefault("tags.validated", tags.Validated)

	v.SetDefault("type_cache_size", validate.DefaultTypeCacheSize)
}
