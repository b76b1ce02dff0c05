// Package config provides utilities to load environment variables & set config structs, it includes app, node inventory, estimator, db, redis, queue and metrics settings.
package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// AppConfig contains everything a run needs: the node inventory, the cost
// model coefficients, the scheduler knobs and the adapter settings
type (
	AppConfig struct {
		App       *App       `mapstructure:"app"`
		Scheduler *Scheduler `mapstructure:"scheduler"`
		Nodes     []Node     `mapstructure:"nodes"`
		Estimator *Estimator `mapstructure:"estimator"`
		Source    *Source    `mapstructure:"source"`
		Redis     *Redis     `mapstructure:"redis"`
		Queue     *Queue     `mapstructure:"queue"`
		Metrics   *Metrics   `mapstructure:"metrics"`
		Logger    *Logger    `mapstructure:"logger"`
		DB        *DB        `mapstructure:"db"`
	}

	// App contains all the environment variables for the application
	App struct {
		Name  string `mapstructure:"name"`
		Env   string `mapstructure:"env"`
		Owner string `mapstructure:"owner"`
	}

	// Scheduler contains the dispatcher knobs: the fallback origin for tasks
	// without a location, how long the run waits for completions ("0" waits
	// forever) and how often node snapshots go to the status registry
	Scheduler struct {
		DefaultLat     float64 `mapstructure:"default_lat"`
		DefaultLon     float64 `mapstructure:"default_lon"`
		WaitTimeout    string  `mapstructure:"wait_timeout"`
		StatusInterval string  `mapstructure:"status_interval"`
	}

	// Node describes one offload target in the inventory
	Node struct {
		Name          string  `mapstructure:"name"`
		MIPS          float64 `mapstructure:"mips"`
		MemoryMB      float64 `mapstructure:"memory_mb"`
		BandwidthMbps float64 `mapstructure:"bandwidth_mbps"`
		StorageGB     float64 `mapstructure:"storage_gb"`
		Lat           float64 `mapstructure:"lat"`
		Lon           float64 `mapstructure:"lon"`
	}

	// Estimator carries the cost model coefficients
	Estimator struct {
		LinkMbps           float64 `mapstructure:"link_mbps"`
		PropagationKmPerS  float64 `mapstructure:"propagation_km_per_s"`
		ProcessingOverhead float64 `mapstructure:"processing_overhead"`
		LoadPenalty        float64 `mapstructure:"load_penalty"`
		IdleWatts          float64 `mapstructure:"idle_watts"`
		BusyWatts          float64 `mapstructure:"busy_watts"`
		NetworkWatts       float64 `mapstructure:"network_watts"`
		Jitter             float64 `mapstructure:"jitter"`
		Seed               int64   `mapstructure:"seed"`
	}

	// Source selects where tasks come from
	Source struct {
		Driver string `mapstructure:"driver"` // "postgres" or "file"
		Path   string `mapstructure:"path"`   // Task file for the file driver
	}

	// Redis contains all the environment variables for the status registry
	Redis struct {
		Enabled  bool   `mapstructure:"enabled"`
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
	}

	// Queue contains all the environment variables for the message broker
	Queue struct {
		Enabled bool   `mapstructure:"enabled"`
		URL     string `mapstructure:"url"`
	}

	// Metrics contains the exporter settings
	Metrics struct {
		Enabled bool   `mapstructure:"enabled"`
		Addr    string `mapstructure:"addr"`
	}

	// DB contains all the environment variables for the database
	DB struct {
		Enabled    bool   `mapstructure:"enabled"`
		Connection string `mapstructure:"connection"`
		Database   string `mapstructure:"database"`
		Host       string `mapstructure:"host"`
		Port       string `mapstructure:"port"`
		User       string `mapstructure:"user"`
		Password   string `mapstructure:"password"`
		Name       string `mapstructure:"name"`
	}

	// Logger contains all the environment variables for the logger
	Logger struct {
		Level             string                `mapstructure:"level"`
		Development       bool                  `mapstructure:"development"`
		DisableStacktrace bool                  `mapstructure:"disableStacktrace"`
		Encoding          string                `mapstructure:"encoding"`
		EncoderConfig     zapcore.EncoderConfig `mapstructure:"encoderConfig"`
	}
)

// addZapEncoderConfig fills encoder config with zapcore types
func addZapEncoderConfig(cfg *zapcore.EncoderConfig) {
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.SecondsDurationEncoder
	cfg.EncodeCaller = zapcore.ShortCallerEncoder
	cfg.EncodeName = func(s string, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString("[" + s + "]")
	}
}

// New creates a new AppConfig instance
func New() *AppConfig {
	// Set up viper to read the config.yaml file
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/secrets/")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("env")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read the config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Fatalf("config file not found: %v", err)
		} else {
			log.Fatalf("error reading config file: %v", err)
		}
	}

	// Bind the app.name key to the APP_NAME environment variable
	if err := viper.BindEnv("app.name", "APP_NAME"); err != nil {
		log.Fatalf("error finding APP_NAME env variable")
	}

	// Bind DB variables
	viper.BindEnv("db.host", "PG_HOST")
	viper.BindEnv("db.port", "PG_PORT")
	viper.BindEnv("db.user", "PG_USER")
	viper.BindEnv("db.password", "PG_PASS")
	viper.BindEnv("db.name", "PG_DB")

	// Bind Redis variables
	viper.BindEnv("redis.addr", "REDIS_ADDR")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// Bind broker variables
	viper.BindEnv("queue.url", "MQ_URL")

	// Bind task source variables
	viper.BindEnv("source.driver", "TASK_SOURCE")
	viper.BindEnv("source.path", "TASK_FILE")

	// Create an instance of AppConfig
	var config *AppConfig
	if err := viper.Unmarshal(&config); err != nil {
		log.Fatalf("unable to decode into struct: %v", err)
	}
	addZapEncoderConfig(&config.Logger.EncoderConfig)

	return config
}
