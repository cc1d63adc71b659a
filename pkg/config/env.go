package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvBadgerPath       = "BADGER_PATH"
	EnvBadgerInMemory   = "BADGER_IN_MEMORY"
	EnvBadgerGCInterval = "BADGER_GC_INTERVAL"

	EnvOperatingTimeZone = "OPERATING_TIMEZONE"
	EnvExtensionStepMin  = "EXTENSION_STEP_MIN"
	EnvRemoteSyncTimeout = "REMOTE_SYNC_TIMEOUT"
	EnvCountdownInterval = "COUNTDOWN_INTERVAL"

	EnvKafkaEnabled          = "KAFKA_ENABLED"
	EnvKafkaAdjustmentsTopic = "KAFKA_ADJUSTMENTS_TOPIC"
	EnvKafkaConsumerGroup    = "KAFKA_CONSUMER_GROUP"
)
