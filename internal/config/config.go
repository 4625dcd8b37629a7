package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Upstream
		Sync
		Watchdog
		Coordinator
		Scheduler
		Tasks
		Archive
		Log
		Metrics
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Driver          string // sqlite or postgres
		Path            string // sqlite file
		DSN             string // postgres connection string
		MaxOpenConns    int
		MaxIdleConns    int
		ConnMaxLifetime time.Duration
		LogQueries      bool
	}
	Upstream struct {
		BaseURL        string
		Concurrency    int           // parallel detail requests per batch
		BatchDelay     time.Duration // pause between batches
		MaxRetries     int
		RetryBaseDelay time.Duration
		Timeout        time.Duration
		UserAgent      string
	}
	Sync struct {
		Type              string
		ChunkSize         int
		CriticalChunkSize int
		ExecutionBudget   time.Duration
		HeartbeatEvery    int // chunks between forced heartbeats
		GracePeriod       time.Duration
		RecentHeartbeat   time.Duration // reuse window for an active job
	}
	Watchdog struct {
		StuckThreshold      time.Duration
		NoProgressThreshold time.Duration
	}
	Coordinator struct {
		Enabled      bool
		AutoStart    bool
		PollInterval time.Duration
		StaleAfter   time.Duration
		ETAWindow    int
	}
	Scheduler struct {
		Enabled  bool
		Schedule string // Cron format: "*/1 * * * *" = every minute
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
	Archive struct {
		Enabled   bool
		Endpoint  string
		Region    string
		Bucket    string
		Prefix    string
		AccessKey string
		SecretKey string
		UseSSL    bool
	}
	Log struct {
		Level      string
		Format     string // json or text
		File       string
		MaxSizeMB  int
		MaxBackups int
		MaxAgeDays int
	}
	Metrics struct {
		Enabled bool
	}
)

func NewConfig() *Config {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8189)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 5)

	v.SetDefault("database_driver", "sqlite")
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("database_dsn", "")
	v.SetDefault("database_max_open_conns", 1)
	v.SetDefault("database_max_idle_conns", 1)
	v.SetDefault("database_conn_max_lifetime", "1h")
	v.SetDefault("database_log_queries", false)

	v.SetDefault("upstream_base_url", DefaultUpstreamBaseURL)
	v.SetDefault("upstream_concurrency", 8)
	v.SetDefault("upstream_batch_delay", "100ms")
	v.SetDefault("upstream_max_retries", 3)
	v.SetDefault("upstream_retry_base_delay", "1s")
	v.SetDefault("upstream_timeout", "30s")
	v.SetDefault("upstream_user_agent", "catalogmirror/1.0")

	v.SetDefault("sync_type", "pokepedia")
	v.SetDefault("sync_chunk_size", 100)
	v.SetDefault("sync_critical_chunk_size", 20)
	v.SetDefault("sync_execution_budget", "50s")
	v.SetDefault("sync_heartbeat_every", 10)
	v.SetDefault("sync_grace_period", "2m")
	v.SetDefault("sync_recent_heartbeat", "5m")

	v.SetDefault("watchdog_stuck_threshold", "10m")
	v.SetDefault("watchdog_no_progress_threshold", "5m")

	v.SetDefault("coordinator_enabled", true)
	v.SetDefault("coordinator_auto_start", false)
	v.SetDefault("coordinator_poll_interval", "2s")
	v.SetDefault("coordinator_stale_after", "5m")
	v.SetDefault("coordinator_eta_window", 10)

	v.SetDefault("scheduler_enabled", true)
	v.SetDefault("scheduler_schedule", "*/1 * * * *")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	v.SetDefault("archive_enabled", false)
	v.SetDefault("archive_endpoint", "localhost:9000")
	v.SetDefault("archive_region", "us-east-1")
	v.SetDefault("archive_bucket", "pokeapi")
	v.SetDefault("archive_prefix", "raw")
	v.SetDefault("archive_use_ssl", false)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("log_file", "")
	v.SetDefault("log_max_size_mb", 100)
	v.SetDefault("log_max_backups", 3)
	v.SetDefault("log_max_age_days", 28)

	v.SetDefault("metrics_enabled", true)

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Driver:          v.GetString("DATABASE_DRIVER"),
			Path:            v.GetString("DATABASE_PATH"),
			DSN:             v.GetString("DATABASE_DSN"),
			MaxOpenConns:    v.GetInt("DATABASE_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DATABASE_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DATABASE_CONN_MAX_LIFETIME"),
			LogQueries:      v.GetBool("DATABASE_LOG_QUERIES"),
		},
		Upstream: Upstream{
			BaseURL:        v.GetString("UPSTREAM_BASE_URL"),
			Concurrency:    v.GetInt("UPSTREAM_CONCURRENCY"),
			BatchDelay:     v.GetDuration("UPSTREAM_BATCH_DELAY"),
			MaxRetries:     v.GetInt("UPSTREAM_MAX_RETRIES"),
			RetryBaseDelay: v.GetDuration("UPSTREAM_RETRY_BASE_DELAY"),
			Timeout:        v.GetDuration("UPSTREAM_TIMEOUT"),
			UserAgent:      v.GetString("UPSTREAM_USER_AGENT"),
		},
		Sync: Sync{
			Type:              v.GetString("SYNC_TYPE"),
			ChunkSize:         v.GetInt("SYNC_CHUNK_SIZE"),
			CriticalChunkSize: v.GetInt("SYNC_CRITICAL_CHUNK_SIZE"),
			ExecutionBudget:   v.GetDuration("SYNC_EXECUTION_BUDGET"),
			HeartbeatEvery:    v.GetInt("SYNC_HEARTBEAT_EVERY"),
			GracePeriod:       v.GetDuration("SYNC_GRACE_PERIOD"),
			RecentHeartbeat:   v.GetDuration("SYNC_RECENT_HEARTBEAT"),
		},
		Watchdog: Watchdog{
			StuckThreshold:      v.GetDuration("WATCHDOG_STUCK_THRESHOLD"),
			NoProgressThreshold: v.GetDuration("WATCHDOG_NO_PROGRESS_THRESHOLD"),
		},
		Coordinator: Coordinator{
			Enabled:      v.GetBool("COORDINATOR_ENABLED"),
			AutoStart:    v.GetBool("COORDINATOR_AUTO_START"),
			PollInterval: v.GetDuration("COORDINATOR_POLL_INTERVAL"),
			StaleAfter:   v.GetDuration("COORDINATOR_STALE_AFTER"),
			ETAWindow:    v.GetInt("COORDINATOR_ETA_WINDOW"),
		},
		Scheduler: Scheduler{
			Enabled:  v.GetBool("SCHEDULER_ENABLED"),
			Schedule: v.GetString("SCHEDULER_SCHEDULE"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
		Archive: Archive{
			Enabled:   v.GetBool("ARCHIVE_ENABLED"),
			Endpoint:  v.GetString("ARCHIVE_ENDPOINT"),
			Region:    v.GetString("ARCHIVE_REGION"),
			Bucket:    v.GetString("ARCHIVE_BUCKET"),
			Prefix:    v.GetString("ARCHIVE_PREFIX"),
			AccessKey: v.GetString("ARCHIVE_ACCESS_KEY"),
			SecretKey: v.GetString("ARCHIVE_SECRET_KEY"),
			UseSSL:    v.GetBool("ARCHIVE_USE_SSL"),
		},
		Log: Log{
			Level:      v.GetString("LOG_LEVEL"),
			Format:     v.GetString("LOG_FORMAT"),
			File:       v.GetString("LOG_FILE"),
			MaxSizeMB:  v.GetInt("LOG_MAX_SIZE_MB"),
			MaxBackups: v.GetInt("LOG_MAX_BACKUPS"),
			MaxAgeDays: v.GetInt("LOG_MAX_AGE_DAYS"),
		},
		Metrics: Metrics{
			Enabled: v.GetBool("METRICS_ENABLED"),
		},
	}
}
