package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Db       DbConfig       `toml:"db"`
	Sandbox  SandboxConfig  `toml:"sandbox"`
	Queue    QueueConfig    `toml:"queue"`
	Limiter  LimiterConfig  `toml:"limiter"`
	Problems ProblemsConfig `toml:"problems"`
	Nats     NatsConfig     `toml:"nats"`
	Log      LogConfig      `toml:"log"`
}

type ServerConfig struct {
	Port           string   `toml:"port"`
	ReadTimeout    int      `toml:"read_timeout"`
	WriteTimeout   int      `toml:"write_timeout"`
	IdleTimeout    int      `toml:"idle_timeout"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

type DbConfig struct {
	Backend  string `toml:"backend"` // postgres or memory
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Name     string `toml:"name"`
	SSLMode  string `toml:"sslmode"`
}

type SandboxConfig struct {
	// Instance scopes sandbox resources on a shared Docker daemon; judges
	// sharing one daemon need distinct names.
	Instance          string  `toml:"instance"`
	Image             string  `toml:"image"`
	WorkRoot          string  `toml:"work_root"`
	MemoryLimitMB     int64   `toml:"memory_limit_mb"`
	CPUs              float64 `toml:"cpus"`
	PidsLimit         int64   `toml:"pids_limit"`
	CaseTimeoutSec    int     `toml:"case_timeout_sec"`
	DetailCases       int     `toml:"detail_cases"`
	DeadlineMarginSec int     `toml:"deadline_margin_sec"`
	MaxDeadlineSec    int     `toml:"max_deadline_sec"`
}

type QueueConfig struct {
	Capacity int `toml:"capacity"`
	Workers  int `toml:"workers"`
}

type LimiterConfig struct {
	GlobalRPS float64 `toml:"global_rps"`
	PerKeyRPS float64 `toml:"per_key_rps"`
	Burst     int     `toml:"burst"`
}

type ProblemsConfig struct {
	Backend   string `toml:"backend"` // fs or minio
	Root      string `toml:"root"`
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	UseSSL    bool   `toml:"use_ssl"`
}

type NatsConfig struct {
	URL           string `toml:"url"`
	SubjectPrefix string `toml:"subject_prefix"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // console or json
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080", ReadTimeout: 10, WriteTimeout: 30, IdleTimeout: 60},
		Db:     DbConfig{Backend: "postgres", Host: "localhost", Port: 5432, User: "pyjudge", Name: "pyjudge", SSLMode: "disable"},
		Sandbox: SandboxConfig{
			Instance:          hostname(),
			Image:             "python:3.10-slim",
			WorkRoot:          os.TempDir() + "/pyjudge",
			MemoryLimitMB:     2048,
			CPUs:              1,
			PidsLimit:         64,
			CaseTimeoutSec:    5,
			DetailCases:       3,
			DeadlineMarginSec: 30,
			MaxDeadlineSec:    300,
		},
		Queue:    QueueConfig{Capacity: 100, Workers: 4},
		Limiter:  LimiterConfig{GlobalRPS: 50, PerKeyRPS: 1, Burst: 5},
		Problems: ProblemsConfig{Backend: "fs", Root: "uploads/problems"},
		Nats:     NatsConfig{SubjectPrefix: "pyjudge"},
		Log:      LogConfig{Level: "info", Format: "console"},
	}
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "pyjudge"
	}
	return h
}

// LoadConfig layers defaults, the TOML file named by JUDGE_CONFIG and
// environment variables, in that order. A .env file is loaded if present.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	conf := Default()
	if path := os.Getenv("JUDGE_CONFIG"); path != "" {
		if err := loadFile(conf, path); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(conf); err != nil {
		return nil, err
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func loadFile(conf *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := toml.Unmarshal(data, conf); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(conf *Config) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	str("PORT", &conf.Server.Port)
	str("DB_BACKEND", &conf.Db.Backend)
	str("DB_HOST", &conf.Db.Host)
	num("DB_PORT", &conf.Db.Port)
	str("DB_USER", &conf.Db.User)
	str("DB_PASS", &conf.Db.Password)
	str("DB_NAME", &conf.Db.Name)
	str("DB_SSLMODE", &conf.Db.SSLMode)

	str("SANDBOX_INSTANCE", &conf.Sandbox.Instance)
	str("SANDBOX_IMAGE", &conf.Sandbox.Image)
	str("SANDBOX_WORK_ROOT", &conf.Sandbox.WorkRoot)
	num("SANDBOX_CASE_TIMEOUT", &conf.Sandbox.CaseTimeoutSec)
	if v, ok := os.LookupEnv("SANDBOX_MEMORY_MB"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("SANDBOX_MEMORY_MB: %w", err))
		} else {
			conf.Sandbox.MemoryLimitMB = n
		}
	}

	num("QUEUE_CAPACITY", &conf.Queue.Capacity)
	num("QUEUE_WORKERS", &conf.Queue.Workers)

	str("PROBLEMS_BACKEND", &conf.Problems.Backend)
	str("PROBLEMS_ROOT", &conf.Problems.Root)
	str("MINIO_ENDPOINT", &conf.Problems.Endpoint)
	str("MINIO_ACCESS_KEY", &conf.Problems.AccessKey)
	str("MINIO_SECRET_KEY", &conf.Problems.SecretKey)
	str("MINIO_BUCKET", &conf.Problems.Bucket)

	str("NATS_URL", &conf.Nats.URL)
	str("LOG_LEVEL", &conf.Log.Level)
	str("LOG_FORMAT", &conf.Log.Format)

	return errors.Join(errs...)
}

func (c *Config) Validate() error {
	var errs []error
	if c.Sandbox.Instance == "" {
		errs = append(errs, errors.New("sandbox.instance is required"))
	}
	if c.Sandbox.Image == "" {
		errs = append(errs, errors.New("sandbox.image is required"))
	}
	if c.Sandbox.MemoryLimitMB <= 0 {
		errs = append(errs, errors.New("sandbox.memory_limit_mb must be positive"))
	}
	if c.Sandbox.CaseTimeoutSec <= 0 {
		errs = append(errs, errors.New("sandbox.case_timeout_sec must be positive"))
	}
	// Zero would disable the hung-process guard for harnesses whose case
	// count is unknown.
	if c.Sandbox.MaxDeadlineSec <= 0 {
		errs = append(errs, errors.New("sandbox.max_deadline_sec must be positive"))
	}
	if c.Sandbox.DeadlineMarginSec < 0 {
		errs = append(errs, errors.New("sandbox.deadline_margin_sec must not be negative"))
	}
	if c.Queue.Capacity <= 0 || c.Queue.Workers <= 0 {
		errs = append(errs, errors.New("queue.capacity and queue.workers must be positive"))
	}
	switch c.Db.Backend {
	case "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown db backend %q", c.Db.Backend))
	}
	switch c.Problems.Backend {
	case "fs":
	case "minio":
		if c.Problems.Endpoint == "" || c.Problems.Bucket == "" {
			errs = append(errs, errors.New("problems.endpoint and problems.bucket are required for minio"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown problems backend %q", c.Problems.Backend))
	}
	return errors.Join(errs...)
}
