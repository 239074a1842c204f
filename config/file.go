package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// fileSchema mirrors Config in the units the configuration file speaks:
// timeouts in seconds, flush/stats intervals in milliseconds, sizes in bytes.
type fileSchema struct {
	Server struct {
		BindAddress    string `yaml:"bind_address"`
		ThreadPoolSize int    `yaml:"thread_pool_size"`
		RootDir        string `yaml:"root_dir"`
		WebRoot        string `yaml:"webroot"`
	} `yaml:"server"`

	Net struct {
		ReadBufferSize int `yaml:"read_buffer_size"`
		IdleTimeout    int `yaml:"idle_timeout"`
		RequestTimeout int `yaml:"request_timeout"`
		AsyncTimeout   int `yaml:"async_timeout"`
	} `yaml:"net"`

	Session struct {
		Timeout    int    `yaml:"session_timeout"`
		CookieName string `yaml:"cookie_name"`
	} `yaml:"session"`

	Logs struct {
		Main         logSchema `yaml:"main"`
		Request      logSchema `yaml:"request"`
		Stats        logSchema `yaml:"stats"`
		MaxLogQueue  int       `yaml:"max_log_queue"`
		FlushMillis  int       `yaml:"flush_millis"`
	} `yaml:"logs"`

	StatsFrequency int `yaml:"stats_frequency"`

	TLS struct {
		Cert string `yaml:"cert"`
		Key  string `yaml:"private_key"`
	} `yaml:"tls"`
}

type logSchema struct {
	Location string `yaml:"location"`
	MaxSize  int64  `yaml:"max_size"`
	MaxAgeS  int    `yaml:"max_age"`
}

// envOverrides are applied on top of whatever the file said. Only variables
// that are actually set take effect.
type envOverrides struct {
	BindAddress    string `env:"RUSTLET_BIND_ADDRESS"`
	ThreadPoolSize int    `env:"RUSTLET_THREAD_POOL_SIZE"`
	RootDir        string `env:"RUSTLET_ROOT_DIR"`
	WebRoot        string `env:"RUSTLET_WEBROOT"`
}

// Load reads a YAML configuration file, applies it over defaults and then
// applies RUSTLET_* environment overrides.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	var file fileSchema
	if err = yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	cfg := Default()
	applyFile(cfg, file)

	if err = applyEnv(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyFile(cfg *Config, file fileSchema) {
	setStr(&cfg.Server.BindAddress, file.Server.BindAddress)
	setInt(&cfg.Server.ThreadPoolSize, file.Server.ThreadPoolSize)
	setStr(&cfg.Server.RootDir, file.Server.RootDir)
	setStr(&cfg.Server.WebRoot, file.Server.WebRoot)

	setInt(&cfg.NET.ReadBufferSize, file.Net.ReadBufferSize)
	setDur(&cfg.NET.IdleTimeout, file.Net.IdleTimeout, time.Second)
	setDur(&cfg.NET.RequestTimeout, file.Net.RequestTimeout, time.Second)
	setDur(&cfg.NET.AsyncTimeout, file.Net.AsyncTimeout, time.Second)

	setDur(&cfg.Session.Timeout, file.Session.Timeout, time.Second)
	setStr(&cfg.Session.CookieName, file.Session.CookieName)

	applyLog(&cfg.Logs.Main, file.Logs.Main)
	applyLog(&cfg.Logs.Request, file.Logs.Request)
	applyLog(&cfg.Logs.Stats, file.Logs.Stats)
	setInt(&cfg.Logs.QueueCapacity, file.Logs.MaxLogQueue)
	setDur(&cfg.Logs.FlushInterval, file.Logs.FlushMillis, time.Millisecond)

	setDur(&cfg.Stats.Frequency, file.StatsFrequency, time.Millisecond)

	setStr(&cfg.TLS.CertPath, file.TLS.Cert)
	setStr(&cfg.TLS.KeyPath, file.TLS.Key)
}

func applyLog(dst *Log, src logSchema) {
	setStr(&dst.Location, src.Location)
	if src.MaxSize > 0 {
		dst.MaxSize = src.MaxSize
	}
	setDur(&dst.MaxAge, src.MaxAgeS, time.Second)
}

func applyEnv(cfg *Config) error {
	var env envOverrides

	err := envdecode.Decode(&env)
	if err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return fmt.Errorf("config: environment: %w", err)
	}

	setStr(&cfg.Server.BindAddress, env.BindAddress)
	setInt(&cfg.Server.ThreadPoolSize, env.ThreadPoolSize)
	setStr(&cfg.Server.RootDir, env.RootDir)
	setStr(&cfg.Server.WebRoot, env.WebRoot)

	return nil
}

func setStr(dst *string, value string) {
	if len(value) > 0 {
		*dst = value
	}
}

func setInt(dst *int, value int) {
	if value > 0 {
		*dst = value
	}
}

func setDur(dst *time.Duration, value int, unit time.Duration) {
	if value > 0 {
		*dst = time.Duration(value) * unit
	}
}
