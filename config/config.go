package config

import "time"

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"kanpai-api"`
	Port                          int      `env:"PORT" env-default:"3001"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,PUT,PATCH,DELETE"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// Database driver
	DatabaseDriver string `env:"DB_DRIVER" env-default:"postgres"`
	// Database host
	DatabaseHost string `env:"DB_HOST" env-default:""`
	// Database port
	DatabasePort string `env:"DB_PORT" env-default:"5432"`
	// Database user
	DatabaseUserName string `env:"DB_USER_NAME" env-default:""`
	// Database user password
	DatabasePassword string `env:"DB_PASSWORD" env-default:""`
	// Database name
	DatabaseName string `env:"DB_NAME" env-default:"kanpai"`
	// Database SSL Mode
	DatabaseSSLMode string `env:"DB_SQL_MODE" env-default:"disable"`
	// Max Open Conns
	DatabaseMaxOpenConns int `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	// Max Idle Conns
	DatabaseMaxIdleConns int `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	// Conn Max Lifetime
	DatabaseConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	// Migration Folder Path
	DatabaseMigrationFolderPath string `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	// Database Migration Version
	DatabaseMigrationVersion int `env:"DB_MIGRATION_VERSION" env-default:"0"`
	// Database Migration Force
	DatabaseMigrationForce int `env:"DB_MIGRATION_FORCE" env-default:"0"`
	// Database Migration Auto Rollback
	DatabaseMigrationAutoRollback bool `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Redis host
	RedisHost string `env:"REDIS_HOST" env-default:"localhost"`
	// Redis port
	RedisPort int `env:"REDIS_PORT" env-default:"6379"`
	// Redis password
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	// Redis database number
	RedisDB int `env:"REDIS_DB" env-default:"0"`

	// Kafka brokers (comma-separated)
	KafkaBrokers []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	// Kafka topic for reservation lifecycle events
	KafkaReservationTopic string `env:"KAFKA_RESERVATION_TOPIC" env-default:"reservation-events"`
	// Kafka producer batch size
	KafkaBatchSize int `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	// Kafka producer batch timeout in milliseconds
	KafkaBatchTimeout int `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	// Kafka producer required acks
	KafkaRequiredAcks int `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	// Kafka producer compression
	KafkaCompression string `env:"KAFKA_COMPRESSION" env-default:"snappy"`
	// Kafka producer enabled
	KafkaEnabled bool `env:"KAFKA_ENABLED" env-default:"true"`

	// Tracing
	TracingEnabled      bool   `env:"TRACING_ENABLED" env-default:"false"`
	TracingOTLPEndpoint string `env:"TRACING_OTLP_ENDPOINT" env-default:"localhost:4317"`

	// LINE Messaging API
	// Channel secret used to verify webhook signatures. Mandatory when the
	// webhook is enabled; the process refuses to start without it.
	LineChannelSecret string `env:"LINE_CHANNEL_SECRET" env-default:""`
	// Channel access token used for push notifications
	LineChannelToken string `env:"LINE_CHANNEL_ACCESS_TOKEN" env-default:""`
	// LINE webhook enabled
	LineWebhookEnabled bool `env:"LINE_WEBHOOK_ENABLED" env-default:"true"`
	// LINE API base URL (overridable for tests)
	LineAPIBaseURL string `env:"LINE_API_BASE_URL" env-default:"https://api.line.me"`
	// Push notification timeout
	NotifyTimeout time.Duration `env:"NOTIFY_TIMEOUT" env-default:"5s"`

	// Calendar collaborator
	CalendarBaseURL string        `env:"CALENDAR_BASE_URL" env-default:""`
	CalendarAPIKey  string        `env:"CALENDAR_API_KEY" env-default:""`
	CalendarTimeout time.Duration `env:"CALENDAR_TIMEOUT" env-default:"8s"`

	// Chat completion collaborator
	ChatAPIBaseURL string        `env:"CHAT_API_BASE_URL" env-default:"https://api.openai.com"`
	ChatAPIKey     string        `env:"CHAT_API_KEY" env-default:""`
	ChatModel      string        `env:"CHAT_MODEL" env-default:"gpt-4o-mini"`
	ChatTimeout    time.Duration `env:"CHAT_TIMEOUT" env-default:"30s"`

	// Report sweep scheduler
	// Day of month on which the automatic sweep runs
	ReportSweepDay int `env:"REPORT_SWEEP_DAY" env-default:"1"`
	// How often the scheduler checks whether a sweep is due
	ReportSweepPollInterval time.Duration `env:"REPORT_SWEEP_POLL_INTERVAL" env-default:"1h"`
	// TTL on the distributed sweep lock
	ReportSweepLockTTL time.Duration `env:"REPORT_SWEEP_LOCK_TTL" env-default:"10m"`
	// Pause between stores to avoid bursting downstream APIs
	ReportSweepStoreDelay time.Duration `env:"REPORT_SWEEP_STORE_DELAY" env-default:"2s"`
	// Scheduler enabled
	ReportSweepEnabled bool `env:"REPORT_SWEEP_ENABLED" env-default:"true"`
}
