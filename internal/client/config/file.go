package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kholikovA/ielts-wiz-sub001/internal/flagx"
	"github.com/kholikovA/ielts-wiz-sub001/internal/timex"
)

// fileConfig is the on-disk shape. Pointers tell absent keys from zero
// values so a partial file only overrides what it names.
type fileConfig struct {
	Gateway             *string         `json:"gateway" yaml:"gateway"`
	RESTBaseURL         *string         `json:"rest_url" yaml:"rest_url"`
	GRPCAddr            *string         `json:"grpc_addr" yaml:"grpc_addr"`
	APIKey              *string         `json:"api_key" yaml:"api_key"`
	DBPath              *string         `json:"db_path" yaml:"db_path"`
	RequestTimeout      *timex.Duration `json:"request_timeout" yaml:"request_timeout"`
	RestoreTimeout      *timex.Duration `json:"restore_timeout" yaml:"restore_timeout"`
	OnlineCheckInterval *timex.Duration `json:"online_check_interval" yaml:"online_check_interval"`
	LogBackend          *string         `json:"log_backend" yaml:"log_backend"`
	LogLevel            *string         `json:"log_level" yaml:"log_level"`
	OTLPEndpoint        *string         `json:"otlp_endpoint" yaml:"otlp_endpoint"`
}

// parseFile overlays cfg with the file named by -c or -config. Files ending
// in .yaml or .yml are read as YAML, anything else as JSON.
func parseFile(cfg *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}

func (fc *fileConfig) apply(cfg *Config) {
	setString(&cfg.Gateway, fc.Gateway)
	setString(&cfg.RESTBaseURL, fc.RESTBaseURL)
	setString(&cfg.GRPCAddr, fc.GRPCAddr)
	setString(&cfg.APIKey, fc.APIKey)
	setString(&cfg.DBPath, fc.DBPath)
	setString(&cfg.LogBackend, fc.LogBackend)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.OTLPEndpoint, fc.OTLPEndpoint)
	if fc.RequestTimeout != nil {
		cfg.RequestTimeout = fc.RequestTimeout.Duration
	}
	if fc.RestoreTimeout != nil {
		cfg.RestoreTimeout = fc.RestoreTimeout.Duration
	}
	if fc.OnlineCheckInterval != nil {
		cfg.OnlineCheckInterval = fc.OnlineCheckInterval.Duration
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
