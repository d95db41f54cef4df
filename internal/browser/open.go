// internal/browser/open.go
package browser

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagekit/internal/browser/cdpdriver"
	"github.com/xkilldash9x/pagekit/internal/browser/pwdriver"
	"github.com/xkilldash9x/pagekit/internal/config"
	"github.com/xkilldash9x/pagekit/internal/observability"
	"github.com/xkilldash9x/pagekit/internal/page"
)

const (
	EngineChromedp   = "chromedp"
	EnginePlaywright = "playwright"
)

// Session is a running browser with one page. Close releases the browser
// and everything it started.
type Session interface {
	page.Driver
	Close() error
}

// launcher starts a Session for one engine.
type launcher func(ctx context.Context, cfg config.BrowserConfig, timeouts config.TimeoutsConfig, logger *zap.Logger) (Session, error)

var launchers = map[string]launcher{
	EngineChromedp: func(ctx context.Context, cfg config.BrowserConfig, timeouts config.TimeoutsConfig, logger *zap.Logger) (Session, error) {
		return cdpdriver.Launch(ctx, cdpdriver.Options{
			Headless:  cfg.Headless,
			ExecPath:  cfg.ExecPath,
			Width:     cfg.Viewport.Width,
			Height:    cfg.Viewport.Height,
			SlowMo:    time.Duration(cfg.SlowMo) * time.Millisecond,
			OpTimeout: timeouts.NetworkDuration(),
		}, logger)
	},
	EnginePlaywright: func(ctx context.Context, cfg config.BrowserConfig, timeouts config.TimeoutsConfig, logger *zap.Logger) (Session, error) {
		return pwdriver.Launch(ctx, pwdriver.Options{
			Browser:  cfg.Name,
			Headless: cfg.Headless,
			SlowMo:   time.Duration(cfg.SlowMo) * time.Millisecond,
			Width:    cfg.Viewport.Width,
			Height:   cfg.Viewport.Height,
			Timeout:  timeouts.PageLoadDuration(),
		}, logger)
	},
}

// Open launches the browser engine named in cfg.
func Open(ctx context.Context, cfg config.Interface, logger *zap.Logger) (Session, error) {
	logger = observability.OrNop(logger)
	bc := cfg.Browser()
	launch, ok := launchers[bc.Engine]
	if !ok {
		return nil, fmt.Errorf("unknown browser engine %q", bc.Engine)
	}
	logger.Info("Opening browser",
		zap.String("engine", bc.Engine),
		zap.String("browser", bc.Name),
		zap.Bool("headless", bc.Headless))
	s, err := launch(ctx, bc, cfg.Timeouts(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s browser: %w", bc.Engine, err)
	}
	return s, nil
}
