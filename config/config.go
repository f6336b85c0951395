package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server   ServerConfig     `mapstructure:"server"`
	Log      LogConfig        `mapstructure:"log"`
	Backend  BackendConfig    `mapstructure:"backend"`
	Orders   OrdersConfig     `mapstructure:"orders"`
	Stats    StatsConfig      `mapstructure:"stats"`
	Database DatabaseConfig   `mapstructure:"database"`
	Redis    RedisConfig      `mapstructure:"redis"`
	Inflight InflightConfig   `mapstructure:"inflight"`
	Tracing  TracingConfig    `mapstructure:"tracing"`
	Sentry   SentryConfig     `mapstructure:"sentry"`
	Menu     []MenuItemConfig `mapstructure:"menu"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// BackendConfig 远端订单脚本服务
type BackendConfig struct {
	Endpoint  string        `mapstructure:"endpoint"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"` // requests per second, 0 = unlimited
	Burst     int           `mapstructure:"burst"`
	Retries   int           `mapstructure:"retries"` // only for getOrders
}

type OrdersConfig struct {
	TransitionPolicy string `mapstructure:"transition_policy"` // any | forward
	LoadOnStart      bool   `mapstructure:"load_on_start"`
}

type StatsConfig struct {
	RevenuePolicy string `mapstructure:"revenue_policy"` // completed_only | non_cancelled
	Timezone      string `mapstructure:"timezone"`
	TopItems      int    `mapstructure:"top_items"`
	RecentLimit   int    `mapstructure:"recent_limit"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // sqlite | postgres
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	LogSQL       bool   `mapstructure:"log_sql"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// InflightConfig 单订单并发更新保护
type InflightConfig struct {
	Driver string        `mapstructure:"driver"` // memory | redis
	TTL    time.Duration `mapstructure:"ttl"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

type MenuItemConfig struct {
	Name  string  `mapstructure:"name"`
	Price float64 `mapstructure:"price"`
	Icon  string  `mapstructure:"icon"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("backend.endpoint", "http://localhost:8081/exec")
	v.SetDefault("backend.timeout", 15*time.Second)
	v.SetDefault("backend.rate_limit", 5.0)
	v.SetDefault("backend.burst", 5)
	v.SetDefault("backend.retries", 1)

	v.SetDefault("orders.transition_policy", "any")
	v.SetDefault("orders.load_on_start", true)

	v.SetDefault("stats.revenue_policy", "completed_only")
	v.SetDefault("stats.timezone", "Local")
	v.SetDefault("stats.top_items", 10)
	v.SetDefault("stats.recent_limit", 20)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "dashboard.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.log_sql", false)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("inflight.driver", "memory")
	v.SetDefault("inflight.ttl", 30*time.Second)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.service_name", "order-dashboard")
	v.SetDefault("tracing.sample_ratio", 1.0)

	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "development")
}

// Load 读取 config.yaml (可用 DASHBOARD_CONFIG 指定路径), 环境变量 DASHBOARD_* 覆盖
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path := os.Getenv("DASHBOARD_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("DASHBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验枚举类配置
func (c *Config) Validate() error {
	if c.Backend.Endpoint == "" {
		return errors.New("config: backend.endpoint is required")
	}
	if c.Backend.Timeout <= 0 {
		return errors.New("config: backend.timeout must be positive")
	}
	switch c.Orders.TransitionPolicy {
	case "any", "forward":
	default:
		return fmt.Errorf("config: unknown orders.transition_policy %q", c.Orders.TransitionPolicy)
	}
	switch c.Stats.RevenuePolicy {
	case "completed_only", "non_cancelled":
	default:
		return fmt.Errorf("config: unknown stats.revenue_policy %q", c.Stats.RevenuePolicy)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unknown database.driver %q", c.Database.Driver)
	}
	switch c.Inflight.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: unknown inflight.driver %q", c.Inflight.Driver)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("config: stats.timezone: %w", err)
	}
	for i, m := range c.Menu {
		if m.Name == "" || m.Price < 0 {
			return fmt.Errorf("config: menu[%d] needs a name and a non-negative price", i)
		}
	}
	return nil
}

// Location 统计分桶使用的本地时区
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Stats.Timezone)
}
