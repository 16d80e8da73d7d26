package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kholikovA/ielts-wiz-sub001/internal/client/config"
	"github.com/kholikovA/ielts-wiz-sub001/internal/client/models"
	"github.com/kholikovA/ielts-wiz-sub001/internal/client/services"
	"github.com/kholikovA/ielts-wiz-sub001/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// ProgressStore is the write side of the local progress cache.
type ProgressStore interface {
	Mark(ctx context.Context, category models.SkillCategory, itemID string) error
	Clear(ctx context.Context) error
}

type App struct {
	core     *services.Core
	progress ProgressStore
	log      logging.Logger

	reader         *bufio.Reader
	out            io.Writer
	checkInterval  time.Duration
	requestTimeout time.Duration

	mu   sync.Mutex
	mode Mode
}

func NewApp(c *config.Config, core *services.Core, progress ProgressStore, log logging.Logger, in io.Reader, out io.Writer) *App {
	if log == nil {
		log = logging.Nop{}
	}
	return &App{
		core:           core,
		progress:       progress,
		log:            logging.Component(log, "cli"),
		reader:         bufio.NewReader(in),
		out:            out,
		checkInterval:  c.OnlineCheckInterval,
		requestTimeout: c.RequestTimeout,
	}
}

func (a *App) Mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	changed := a.mode != mode
	a.mode = mode
	a.mu.Unlock()

	if changed {
		a.log.Info(context.Background(), "connectivity changed", "mode", mode)
	}
}

func (a *App) isSignedIn() bool {
	return a.core.Sessions.Current() != nil
}

func (a *App) getStatus() string {
	s := ""
	if sess := a.core.Sessions.Current(); sess != nil {
		s = sess.Email + " "
	}
	if m := a.Mode(); m != "" {
		s += string(m)
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// Run starts the connectivity watcher and the REPL and blocks until the REPL
// returns. The watcher is stopped before Run returns.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.println("Welcome to IELTS Wiz (type 'help' for commands)")
	if s := a.core.Sessions.Current(); s != nil {
		a.println("Signed in as", s.Email)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.StartOnlineStatusWatcher(ctx, a.checkInterval)
		return nil
	})
	g.Go(func() error {
		defer cancel()
		runREPL(ctx, a, a.getStatus, a.reader, a.out)
		return nil
	})
	return g.Wait()
}

// StartOnlineStatusWatcher pings the gateway once right away and then every
// interval until ctx is done.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		a.checkOnline(ctx)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) checkOnline(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, a.requestTimeout)
	err := a.core.Ping(pingCtx)
	cancel()

	if ctx.Err() != nil {
		return
	}
	if err != nil {
		a.setMode(ModeOffline)
		return
	}
	a.setMode(ModeOnline)
}

func (a *App) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.requestTimeout)
}
