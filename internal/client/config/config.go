package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kholikovA/ielts-wiz-sub001/internal/logging"
)

// Gateway transports.
const (
	GatewayMemory = "memory"
	GatewayREST   = "rest"
	GatewayGRPC   = "grpc"
)

// Config holds runtime settings for the ielts-wiz client.
type Config struct {
	Gateway             string        `env:"GATEWAY"`
	RESTBaseURL         string        `env:"REST_URL"`
	GRPCAddr            string        `env:"GRPC_ADDR"`
	APIKey              string        `env:"API_KEY"`
	DBPath              string        `env:"DB_PATH"`
	RequestTimeout      time.Duration `env:"REQUEST_TIMEOUT"`
	RestoreTimeout      time.Duration `env:"RESTORE_TIMEOUT"`
	OnlineCheckInterval time.Duration `env:"ONLINE_CHECK_INTERVAL"`
	LogBackend          string        `env:"LOG_BACKEND"`
	LogLevel            string        `env:"LOG_LEVEL"`
	OTLPEndpoint        string        `env:"OTLP_ENDPOINT"`
}

// LoadDefaults populates c with defaults that run fully offline.
func (c *Config) LoadDefaults() {
	c.Gateway = GatewayMemory
	c.RESTBaseURL = ""
	c.GRPCAddr = "127.0.0.1:50051"
	c.APIKey = ""
	c.DBPath = "ielts-wiz.db"
	c.RequestTimeout = 10 * time.Second
	c.RestoreTimeout = 5 * time.Second
	c.OnlineCheckInterval = 3 * time.Second
	c.LogBackend = logging.BackendSlog
	c.LogLevel = "info"
	c.OTLPEndpoint = ""
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	var errs []error
	switch c.Gateway {
	case GatewayMemory:
	case GatewayREST:
		if c.RESTBaseURL == "" {
			errs = append(errs, errors.New("rest gateway needs a base url"))
		}
		if c.APIKey == "" {
			errs = append(errs, errors.New("rest gateway needs an api key"))
		}
	case GatewayGRPC:
		if c.GRPCAddr == "" {
			errs = append(errs, errors.New("grpc gateway needs an address"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown gateway %q", c.Gateway))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("database path is empty"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if c.RestoreTimeout <= 0 {
		errs = append(errs, errors.New("restore timeout must be positive"))
	}
	if c.OnlineCheckInterval <= 0 {
		errs = append(errs, errors.New("online check interval must be positive"))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// LoadConfig builds a Config from defaults, then the environment, then the
// config file, then flags. Later sources take precedence over earlier ones.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFile(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
