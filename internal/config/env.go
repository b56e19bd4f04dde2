package config

// Env holds the process-wide configuration loaded from the environment (and
// .env, via godotenv) at daemon startup.
type Env struct {
	Database Database

	StoreBackend string `envconfig:"STORE_BACKEND" default:"postgres"` // postgres | sqlite | redis | memory
	SQLitePath   string `envconfig:"SQLITE_PATH" default:"procrastinator.db"`
	RedisAddr    string `envconfig:"REDIS_ADDR" default:"localhost:6379"`

	AdminBindAddr string `envconfig:"ADMIN_BIND_ADDR" default:":8080"`
	PIDFile       string `envconfig:"PID_FILE" default:"/var/run/procrastinator.pid"`
	LogFile       string `envconfig:"LOG_FILE"` // empty means stderr only
	QueueFile     string `envconfig:"QUEUE_FILE"`
}
