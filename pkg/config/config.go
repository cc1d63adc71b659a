package config

import (
	"fmt"
	"os"
	"regexp"
	"seatflow/pkg/client"
	"seatflow/pkg/logger"
	"strconv"
	"time"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port string

	RequestTimeout time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	BadgerPath       string
	BadgerInMemory   bool
	BadgerGCInterval time.Duration

	OperatingTimeZone string
	Location          *time.Location
	ExtensionStepMin  int
	RemoteSyncTimeout time.Duration
	CountdownInterval time.Duration

	KafkaEnabled          bool
	KafkaAdjustmentsTopic string
	KafkaConsumerGroup    string

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		BadgerPath:       getEnvStr(EnvBadgerPath, DefaultBadgerPath),
		BadgerInMemory:   getEnvBool(EnvBadgerInMemory, DefaultBadgerInMemory),
		BadgerGCInterval: getEnvDuration(EnvBadgerGCInterval, DefaultBadgerGCInterval),

		OperatingTimeZone: getEnvStr(EnvOperatingTimeZone, DefaultOperatingTimeZone),
		ExtensionStepMin:  getEnvNum(EnvExtensionStepMin, DefaultExtensionStepMin),
		RemoteSyncTimeout: getEnvDuration(EnvRemoteSyncTimeout, DefaultRemoteSyncTimeout),
		CountdownInterval: getEnvDuration(EnvCountdownInterval, DefaultCountdownInterval),

		KafkaEnabled:          getEnvBool(EnvKafkaEnabled, DefaultKafkaEnabled),
		KafkaAdjustmentsTopic: getEnvStr(EnvKafkaAdjustmentsTopic, DefaultKafkaAdjustmentsTopic),
		KafkaConsumerGroup:    getEnvStr(EnvKafkaConsumerGroup, DefaultKafkaConsumerGroup),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	err := cfg.Validate()
	if err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

// Validate checks every setting and resolves the operating location.
func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errors = append(errors, "MongoURI cannot be empty")
	} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", cfg.MongoURI))
	}
	if cfg.MongoDatabaseName == "" {
		errors = append(errors, "MongoDatabaseName cannot be empty")
	}

	positive := map[string]time.Duration{
		"MongoConnTimeout":  cfg.MongoConnTimeout,
		"RequestTimeout":    cfg.RequestTimeout,
		"ReadTimeout":       cfg.ReadTimeout,
		"WriteTimeout":      cfg.WriteTimeout,
		"IdleTimeout":       cfg.IdleTimeout,
		"ShutdownTimeout":   cfg.ShutdownTimeout,
		"RemoteSyncTimeout": cfg.RemoteSyncTimeout,
		"CountdownInterval": cfg.CountdownInterval,
	}
	for _, name := range []string{"MongoConnTimeout", "RequestTimeout", "ReadTimeout", "WriteTimeout", "IdleTimeout", "ShutdownTimeout", "RemoteSyncTimeout", "CountdownInterval"} {
		if positive[name] <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %s", name, positive[name]))
		}
	}
	if cfg.BadgerGCInterval < 0 {
		errors = append(errors, fmt.Sprintf("BadgerGCInterval cannot be negative, got: %s", cfg.BadgerGCInterval))
	}

	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if !cfg.BadgerInMemory && cfg.BadgerPath == "" {
		errors = append(errors, "BadgerPath cannot be empty unless BadgerInMemory is set")
	}
	if cfg.ExtensionStepMin <= 0 || cfg.ExtensionStepMin > 240 {
		errors = append(errors, fmt.Sprintf("ExtensionStepMin must be between 1 and 240, got: %d", cfg.ExtensionStepMin))
	}

	loc, err := time.LoadLocation(cfg.OperatingTimeZone)
	if err != nil {
		errors = append(errors, fmt.Sprintf("OperatingTimeZone must be an IANA zone name, got: %s", cfg.OperatingTimeZone))
	} else {
		cfg.Location = loc
	}

	if cfg.KafkaEnabled {
		if cfg.KafkaAdjustmentsTopic == "" {
			errors = append(errors, "KafkaAdjustmentsTopic cannot be empty when Kafka is enabled")
		}
		if cfg.KafkaConsumerGroup == "" {
			errors = append(errors, "KafkaConsumerGroup cannot be empty when Kafka is enabled")
		}
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"request_timeout", cfg.RequestTimeout,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"badger_path", cfg.BadgerPath,
		"badger_in_memory", cfg.BadgerInMemory,
		"badger_gc_interval", cfg.BadgerGCInterval,
		"operating_timezone", cfg.OperatingTimeZone,
		"extension_step_min", cfg.ExtensionStepMin,
		"remote_sync_timeout", cfg.RemoteSyncTimeout,
		"countdown_interval", cfg.CountdownInterval,
		"kafka_enabled", cfg.KafkaEnabled,
		"kafka_adjustments_topic", cfg.KafkaAdjustmentsTopic,
		"kafka_consumer_group", cfg.KafkaConsumerGroup,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}
