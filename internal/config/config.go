package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Resolver  ResolverConfig  `mapstructure:"resolver"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite or postgres
	Path            string        `mapstructure:"path"`   // sqlite file path
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN builds the driver-specific connection string.
// Parameters: none.
// Returns:
//   - string: DSN for the configured driver.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
	}
	return c.Path
}

type ProvidersConfig struct {
	Community  CommunityConfig  `mapstructure:"community"`
	Commercial CommercialConfig `mapstructure:"commercial"`
	AI         AIConfig         `mapstructure:"ai"`
}

type CommunityConfig struct {
	Endpoint      string `mapstructure:"endpoint"`
	MinIntervalMs int    `mapstructure:"min_interval_ms"`
	TimeoutS      int    `mapstructure:"timeout_s"`
}

type CommercialConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	SearchCost  float64 `mapstructure:"search_cost"`
	DetailsCost float64 `mapstructure:"details_cost"`
	MaxDetails  int     `mapstructure:"max_details"`
	TimeoutS    int     `mapstructure:"timeout_s"`
}

type AIConfig struct {
	APIKey    string  `mapstructure:"api_key"`
	Model     string  `mapstructure:"model"`
	BaseURL   string  `mapstructure:"base_url"`
	FixedCost float64 `mapstructure:"fixed_cost"`
	TimeoutS  int     `mapstructure:"timeout_s"`
}

type ResolverConfig struct {
	SufficiencyThreshold int     `mapstructure:"sufficiency_threshold"`
	CacheTTLDays         int     `mapstructure:"cache_ttl_days"`
	CoordGridDegrees     float64 `mapstructure:"coord_grid_degrees"`
	RadiusBucketKm       float64 `mapstructure:"radius_bucket_km"`
}

type QueueConfig struct {
	BatchSize         int `mapstructure:"batch_size"`
	MaxAttempts       int `mapstructure:"max_attempts"`
	JobDelayMs        int `mapstructure:"job_delay_ms"`
	StaleAfterMinutes int `mapstructure:"stale_after_minutes"`
}

type SchedulerConfig struct {
	TriggerToken string `mapstructure:"trigger_token"`
	Cron         string `mapstructure:"cron"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	// Set config file path
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/cardoncue.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "cardoncue")
	v.SetDefault("database.name", "cardoncue")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("providers.community.endpoint", "https://overpass-api.de/api/interpreter")
	v.SetDefault("providers.community.min_interval_ms", 1000)
	v.SetDefault("providers.community.timeout_s", 25)
	v.SetDefault("providers.commercial.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("providers.commercial.search_cost", 0.032)
	v.SetDefault("providers.commercial.details_cost", 0.017)
	v.SetDefault("providers.commercial.max_details", 10)
	v.SetDefault("providers.commercial.timeout_s", 15)
	v.SetDefault("providers.ai.model", "gpt-4o-mini")
	v.SetDefault("providers.ai.base_url", "https://api.openai.com/v1")
	v.SetDefault("providers.ai.fixed_cost", 0.05)
	v.SetDefault("providers.ai.timeout_s", 60)
	v.SetDefault("resolver.sufficiency_threshold", 3)
	v.SetDefault("resolver.cache_ttl_days", 30)
	v.SetDefault("resolver.coord_grid_degrees", 0.5)
	v.SetDefault("resolver.radius_bucket_km", 25)
	v.SetDefault("queue.batch_size", 10)
	v.SetDefault("queue.max_attempts", 3)
	v.SetDefault("queue.job_delay_ms", 2000)
	v.SetDefault("queue.stale_after_minutes", 15)
	v.SetDefault("scheduler.trigger_token", "")
	v.SetDefault("scheduler.cron", "0 3 * * *")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("providers.commercial.api_key", "PLACES_API_KEY")
	v.BindEnv("providers.ai.api_key", "OPENAI_API_KEY")
	v.BindEnv("providers.ai.base_url", "OPENAI_BASE_URL")
	v.BindEnv("scheduler.trigger_token", "IMPORT_TRIGGER_TOKEN")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
