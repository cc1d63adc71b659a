package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "seatflow"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxRequestSize = 64 * 1024

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultBadgerPath       = "./data/adjustments"
	DefaultBadgerInMemory   = false
	DefaultBadgerGCInterval = 5 * time.Minute

	DefaultOperatingTimeZone = "Local"
	DefaultExtensionStepMin  = 15
	DefaultRemoteSyncTimeout = 5 * time.Second
	DefaultCountdownInterval = 1 * time.Second

	DefaultKafkaEnabled          = false
	DefaultKafkaAdjustmentsTopic = "duration-adjustments-changed"
	DefaultKafkaConsumerGroup    = "seatflow"
)
