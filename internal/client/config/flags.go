package config

import (
	"flag"
	"io"

	"github.com/kholikovA/ielts-wiz-sub001/internal/flagx"
)

// parseFlags overlays cfg with command-line flags. Arguments the client does
// not know about are dropped by flagx.FilterArgs before parsing, so other
// components may share the command line.
//
//	-gateway string          memory, rest or grpc
//	-rest-url string         base url of the hosted identity service
//	-a string                address:port of the gRPC identity service
//	-api-key string          public api key sent with every REST request
//	-db string               path of the local sqlite database
//	-request-timeout dur     per-request deadline
//	-restore-timeout dur     deadline for restoring the saved session
//	-i dur                   online check interval
//	-log-backend string      slog, zap or zerolog
//	-log-level string        debug, info, warn or error
//	-otlp string             OTLP/HTTP traces endpoint; empty disables tracing
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("ielts-wiz", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.Gateway, "gateway", cfg.Gateway, "identity gateway: memory, rest or grpc")
	fs.StringVar(&cfg.RESTBaseURL, "rest-url", cfg.RESTBaseURL, "identity service base url")
	fs.StringVar(&cfg.GRPCAddr, "a", cfg.GRPCAddr, "address and port of the gRPC identity service")
	fs.StringVar(&cfg.APIKey, "api-key", cfg.APIKey, "identity service api key")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "local database path")
	fs.DurationVar(&cfg.RequestTimeout, "request-timeout", cfg.RequestTimeout, "per-request timeout")
	fs.DurationVar(&cfg.RestoreTimeout, "restore-timeout", cfg.RestoreTimeout, "session restore timeout")
	fs.DurationVar(&cfg.OnlineCheckInterval, "i", cfg.OnlineCheckInterval, "online check interval")
	fs.StringVar(&cfg.LogBackend, "log-backend", cfg.LogBackend, "log backend: slog, zap or zerolog")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.OTLPEndpoint, "otlp", cfg.OTLPEndpoint, "OTLP/HTTP traces endpoint")

	var known []string
	fs.VisitAll(func(f *flag.Flag) {
		known = append(known, "-"+f.Name, "--"+f.Name)
	})

	return fs.Parse(flagx.FilterArgs(args, known))
}
