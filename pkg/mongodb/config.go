package mongodb

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is read when CONFIG_PATH is not set. Its absence is not
// an error; env vars and defaults are enough to run.
const DefaultConfigPath = "config/config.yaml"

type MongoConfig struct {
	Host           string        `yaml:"host" env:"MONGO_URL" env-default:"localhost"`
	Port           int           `yaml:"port" env:"MONGO_PORT" env-default:"27017"`
	DBName         string        `yaml:"dbname" env:"MONGO_DB" env-default:"pagesuccess"`
	Username       string        `yaml:"username" env:"MONGO_USERNAME"`
	Password       string        `yaml:"password" env:"MONGO_PASSWORD"`
	AuthSource     string        `yaml:"authSource" env:"MONGO_AUTH_SOURCE"` // defaults to DBName
	Environment    string        `yaml:"environment" env:"ENVIRONMENT" env-default:"production"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"MONGO_CONNECT_TIMEOUT" env-default:"10s"`
}

type QueueConfig struct {
	Backend             string        `yaml:"backend" env:"QUEUE_BACKEND" env-default:"memory"` // memory | mongo
	ProblemQueue        string        `yaml:"problem_queue" env:"PROBLEM_QUEUE" env-default:"problem-queue"`
	TopTaskQueue        string        `yaml:"toptask_queue" env:"TOPTASK_QUEUE" env-default:"toptask-queue"`
	VisibilityTimeout   time.Duration `yaml:"visibility_timeout" env:"QUEUE_VISIBILITY_TIMEOUT" env-default:"30s"`
	MaxReceives         int           `yaml:"max_receives" env:"QUEUE_MAX_RECEIVES" env-default:"10"` // then dead-lettered
	DeadLetterRetention time.Duration `yaml:"dead_letter_retention" env:"QUEUE_DEAD_LETTER_RETENTION" env-default:"336h"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr" env:"HTTP_ADDR" env-default:":8080"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

type SchedulerConfig struct {
	ProblemCommit string `yaml:"problem_commit" env:"PROBLEM_COMMIT_SCHEDULE" env-default:"*/5 * * * *"`
	TopTaskCommit string `yaml:"toptask_commit" env:"TOPTASK_COMMIT_SCHEDULE" env-default:"*/5 * * * *"`
	MaxIterations int    `yaml:"max_iterations" env:"COMMIT_MAX_ITERATIONS" env-default:"100"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"console"` // console | json
}

type Config struct {
	Mongo     MongoConfig     `yaml:"mongo"`
	Queue     QueueConfig     `yaml:"queue"`
	HTTP      HTTPConfig      `yaml:"http"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Log       LogConfig       `yaml:"log"`
}

// Load resolves the config file from CONFIG_PATH (fallback DefaultConfigPath)
// and applies ENV > YAML > defaults.
func Load() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}
	if _, err := os.Stat(path); err != nil {
		if explicit {
			return nil, fmt.Errorf("config: file %s: %w", path, err)
		}
		path = ""
	}
	return LoadConfig(path)
}

// LoadConfig reads the YAML file at path (skipped when path is empty), then
// lets environment variables override it and fills defaults.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}
	if cfg.Mongo.AuthSource == "" {
		cfg.Mongo.AuthSource = cfg.Mongo.DBName
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Mongo.Host == "" {
		errs = append(errs, errors.New("mongo.host is required"))
	}
	if c.Mongo.Port <= 0 || c.Mongo.Port > 65535 {
		errs = append(errs, fmt.Errorf("mongo.port %d out of range", c.Mongo.Port))
	}
	if c.Mongo.DBName == "" {
		errs = append(errs, errors.New("mongo.dbname is required"))
	}
	if c.Mongo.Secure() && c.Mongo.Username == "" {
		errs = append(errs, fmt.Errorf("mongo.username is required when environment=%s", c.Mongo.Environment))
	}
	switch c.Queue.Backend {
	case "memory", "mongo":
	default:
		errs = append(errs, fmt.Errorf("queue.backend must be memory or mongo, got %q", c.Queue.Backend))
	}
	if c.Queue.ProblemQueue == "" || c.Queue.TopTaskQueue == "" {
		errs = append(errs, errors.New("queue names are required"))
	}
	if c.Queue.ProblemQueue == c.Queue.TopTaskQueue {
		errs = append(errs, errors.New("problem and toptask queues must differ"))
	}
	if c.Queue.MaxReceives < 1 {
		errs = append(errs, fmt.Errorf("queue.max_receives %d must be >= 1", c.Queue.MaxReceives))
	}
	if c.Queue.DeadLetterRetention < time.Second {
		errs = append(errs, fmt.Errorf("queue.dead_letter_retention %s must be at least 1s", c.Queue.DeadLetterRetention))
	}
	if c.Scheduler.MaxIterations < 1 {
		errs = append(errs, fmt.Errorf("scheduler.max_iterations %d must be >= 1", c.Scheduler.MaxIterations))
	}
	for name, spec := range map[string]string{
		"scheduler.problem_commit": c.Scheduler.ProblemCommit,
		"scheduler.toptask_commit": c.Scheduler.TopTaskCommit,
	} {
		if _, err := cron.ParseStandard(spec); err != nil {
			errs = append(errs, fmt.Errorf("%s %q: %w", name, spec, err))
		}
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Secure reports whether the connection needs TLS and credentials. Staging
// and local databases run without either.
func (m MongoConfig) Secure() bool {
	switch m.Environment {
	case "staging", "local":
		return false
	default:
		return true
	}
}

// URI builds the connection string. Credentials are not part of it; they
// are applied as options.Credential by the caller.
func (m MongoConfig) URI() string {
	u := url.URL{
		Scheme: "mongodb",
		Host:   net.JoinHostPort(m.Host, strconv.Itoa(m.Port)),
	}
	if m.Secure() {
		u.Path = "/" + m.DBName
		q := url.Values{}
		q.Set("tls", "true")
		q.Set("tlsAllowInvalidCertificates", "true")
		q.Set("retryWrites", "false")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
