package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/common-nighthawk/go-figure"

	"github.com/kholikovA/ielts-wiz-sub001/internal/client/cli"
	"github.com/kholikovA/ielts-wiz-sub001/internal/client/config"
	"github.com/kholikovA/ielts-wiz-sub001/internal/client/gateway"
	"github.com/kholikovA/ielts-wiz-sub001/internal/client/gateway/grpcgw"
	"github.com/kholikovA/ielts-wiz-sub001/internal/client/gateway/memgw"
	"github.com/kholikovA/ielts-wiz-sub001/internal/client/gateway/restgw"
	"github.com/kholikovA/ielts-wiz-sub001/internal/client/localdb"
	"github.com/kholikovA/ielts-wiz-sub001/internal/client/repositories/metadata"
	"github.com/kholikovA/ielts-wiz-sub001/internal/client/repositories/progress"
	"github.com/kholikovA/ielts-wiz-sub001/internal/client/services"
	"github.com/kholikovA/ielts-wiz-sub001/internal/logging"
	"github.com/kholikovA/ielts-wiz-sub001/internal/telemetry"
)

const appName = "ielts-wiz"

// buildVersion is set with -ldflags "-X main.buildVersion=...".
var buildVersion = "dev"

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, err := config.LoadConfig(args)
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.LogBackend, cfg.LogLevel, stderr)
	if err != nil {
		return err
	}

	shutdownTracing, err := telemetry.Setup(ctx, appName, buildVersion, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("set up tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			log.Warn(ctx, "tracing shutdown failed", "error", err)
		}
	}()

	db, err := localdb.InitDatabase(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer db.Close()

	tokens := metadata.NewSessionStore(metadata.NewSQLiteRepository(db))
	cache := progress.NewSQLiteRepository(db, log)

	gw, err := newGateway(cfg, tokens, log)
	if err != nil {
		return err
	}

	core := services.NewCore(gw, cache, log, services.WithRestoreTimeout(cfg.RestoreTimeout))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
		defer cancel()
		if err := core.Close(ctx); err != nil {
			log.Warn(ctx, "shutdown incomplete", "error", err)
		}
	}()

	displayAppname(stdout)

	if _, err := core.Start(ctx); err != nil {
		fmt.Fprintln(stdout, "Could not restore your session:", err)
	}

	app := cli.NewApp(cfg, core, cache, log, stdin, stdout)
	return app.Run(ctx)
}

func newGateway(cfg *config.Config, tokens gateway.TokenStore, log logging.Logger) (gateway.Gateway, error) {
	switch cfg.Gateway {
	case config.GatewayREST:
		return restgw.New(restgw.Config{
			BaseURL: cfg.RESTBaseURL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.RequestTimeout,
		}, restgw.WithTokenStore(tokens), restgw.WithLogger(log))
	case config.GatewayGRPC:
		return grpcgw.New(grpcgw.Config{
			Address: cfg.GRPCAddr,
			Timeout: cfg.RequestTimeout,
		}, grpcgw.WithTokenStore(tokens), grpcgw.WithLogger(log))
	default:
		log.Info(context.Background(), "using the in-memory gateway; accounts last until exit")
		return memgw.New(), nil
	}
}

func displayAppname(w io.Writer) {
	banner := figure.NewFigure("IELTS Wiz", "cybermedium", true)
	fmt.Fprintln(w, banner.String())
}
