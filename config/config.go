package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Database      DatabaseConfig      `yaml:"database"`
	Loans         LoansConfig         `yaml:"loans"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Presence      PresenceConfig      `yaml:"presence"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Roster        RosterConfig        `yaml:"roster"`
	Events        EventsConfig        `yaml:"events"`
	Push          PushConfig          `yaml:"push"`
	WorkerPool    WorkerPoolConfig    `yaml:"worker_pool"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// StorageConfig selects and configures the document backend.
type StorageConfig struct {
	// Backend is "shared" (shared directory) or "database".
	Backend       string        `yaml:"backend"`
	SharedDir     string        `yaml:"shared_dir"`
	CacheDir      string        `yaml:"cache_dir"`
	TimeoutMillis int           `yaml:"timeout_ms"`
	Timeout       time.Duration `yaml:"-"`
}

// DatabaseConfig holds the database connection configuration used when the
// storage backend is "database".
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// LoansConfig holds the loan policy defaults. Settings stored in the shared
// loans document take precedence once present.
type LoansConfig struct {
	MaxLoanDays    int   `yaml:"max_loan_days"`
	MaxExtensions  int   `yaml:"max_extensions"`
	ReminderDays   []int `yaml:"reminder_days_before"`
	OverdueDays    []int `yaml:"overdue_reminder_days"`
	AutoNotifyOff  bool  `yaml:"disable_auto_notifications"`
	HistoryMaxSize int   `yaml:"history_max_size"`
}

// NotificationsConfig holds notification retention settings.
type NotificationsConfig struct {
	MaxStored     int           `yaml:"max_stored"`
	RetentionDays int           `yaml:"retention_days"`
	Retention     time.Duration `yaml:"-"`
}

// PresenceConfig holds presence tracking settings.
type PresenceConfig struct {
	TTLSeconds int           `yaml:"ttl_seconds"`
	TTL        time.Duration `yaml:"-"`
	// TechnicianID and TechnicianName identify this workstation for the
	// heartbeat trigger. The trigger is disabled when TechnicianID is empty.
	TechnicianID   string `yaml:"technician_id"`
	TechnicianName string `yaml:"technician_name"`
}

// SchedulerConfig holds the periodic trigger intervals.
type SchedulerConfig struct {
	NetworkProbeSeconds   int `yaml:"network_probe_seconds"`
	ScanSeconds           int `yaml:"scan_seconds"`
	PruneSeconds          int `yaml:"prune_seconds"`
	ResyncSeconds         int `yaml:"resync_seconds"`
	HeartbeatSeconds      int `yaml:"heartbeat_seconds"`
	RestoreCooldownSecond int `yaml:"restore_cooldown_seconds"`

	NetworkProbe    time.Duration `yaml:"-"`
	Scan            time.Duration `yaml:"-"`
	Prune           time.Duration `yaml:"-"`
	Resync          time.Duration `yaml:"-"`
	Heartbeat       time.Duration `yaml:"-"`
	RestoreCooldown time.Duration `yaml:"-"`
}

// RosterConfig points at the spreadsheet mirrored into the users resource.
type RosterConfig struct {
	Path  string `yaml:"path"`
	Sheet string `yaml:"sheet"`
}

// EventsConfig configures optional forwarding of events to NATS.
type EventsConfig struct {
	NATSURL       string `yaml:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the push worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// Load reads the configuration from the given path and applies defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied and the
// given shared and cache directories.
func Default(sharedDir, cacheDir string) *Config {
	cfg := &Config{Storage: StorageConfig{SharedDir: sharedDir, CacheDir: cacheDir}}
	// Only validation can fail and both directories are set.
	_ = cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() error {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 5
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "shared"
	}
	switch cfg.Storage.Backend {
	case "shared":
		if cfg.Storage.SharedDir == "" {
			return errors.New("storage.shared_dir is required for the shared backend")
		}
	case "database":
		if cfg.Database.DSN == "" {
			return errors.New("database.dsn is required for the database backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", cfg.Storage.Backend)
	}
	if cfg.Storage.CacheDir == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			dir = os.TempDir()
		}
		cfg.Storage.CacheDir = dir + string(os.PathSeparator) + "loandesk"
	}
	if cfg.Storage.TimeoutMillis <= 0 {
		cfg.Storage.TimeoutMillis = 2500
	}
	cfg.Storage.Timeout = time.Duration(cfg.Storage.TimeoutMillis) * time.Millisecond

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.MaxOpenConns <= 0 {
		cfg.Database.MaxOpenConns = 5
	}
	if cfg.Database.MaxIdleConns <= 0 {
		cfg.Database.MaxIdleConns = 2
	}

	if cfg.Loans.MaxLoanDays <= 0 {
		cfg.Loans.MaxLoanDays = 90
	}
	if cfg.Loans.MaxExtensions <= 0 {
		cfg.Loans.MaxExtensions = 3
	}
	if cfg.Loans.ReminderDays == nil {
		cfg.Loans.ReminderDays = []int{7, 3, 1}
	}
	if cfg.Loans.OverdueDays == nil {
		cfg.Loans.OverdueDays = []int{1, 3, 7, 14}
	}
	if cfg.Loans.HistoryMaxSize <= 0 {
		cfg.Loans.HistoryMaxSize = 5000
	}

	if cfg.Notifications.MaxStored <= 0 {
		cfg.Notifications.MaxStored = 500
	}
	if cfg.Notifications.RetentionDays <= 0 {
		cfg.Notifications.RetentionDays = 90
	}
	cfg.Notifications.Retention = time.Duration(cfg.Notifications.RetentionDays) * 24 * time.Hour

	if cfg.Presence.TTLSeconds <= 0 {
		cfg.Presence.TTLSeconds = 600
	}
	cfg.Presence.TTL = time.Duration(cfg.Presence.TTLSeconds) * time.Second

	s := &cfg.Scheduler
	s.NetworkProbe = secondsOr(s.NetworkProbeSeconds, 30)
	s.Scan = secondsOr(s.ScanSeconds, 600)
	s.Prune = secondsOr(s.PruneSeconds, 86400)
	s.Resync = secondsOr(s.ResyncSeconds, 1800)
	s.Heartbeat = secondsOr(s.HeartbeatSeconds, 60)
	s.RestoreCooldown = secondsOr(s.RestoreCooldownSecond, 30)

	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = "loandesk"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}
	if cfg.WorkerPool.Size <= 0 {
		slog.Info("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
	return nil
}

func secondsOr(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Second
}
