package bodies

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Norgate-AV/winpilot/internal/input"
	"github.com/Norgate-AV/winpilot/internal/logger"
	"github.com/Norgate-AV/winpilot/internal/task"
	"github.com/Norgate-AV/winpilot/internal/winmsg"
)

// AutoClickConfig clicks one point repeatedly. A positive Hold presses and
// holds instead of clicking. Count 0 clicks until the task is stopped.
type AutoClickConfig struct {
	X        int           `mapstructure:"x" validate:"min=0"`
	Y        int           `mapstructure:"y" validate:"min=0"`
	Button   string        `mapstructure:"button"`
	Interval time.Duration `mapstructure:"interval" validate:"gt=0"`
	Hold     time.Duration `mapstructure:"hold" validate:"min=0"`
	Count    int           `mapstructure:"count" validate:"min=0"`
}

// AutoClick is the body behind the autoclick script reference
type AutoClick struct {
	cfg    AutoClickConfig
	button winmsg.Button
	input  *input.Manager
	log    logger.LoggerInterface
}

// NewAutoClick builds an autoclick body from the task settings
func NewAutoClick(env task.Env) (task.Body, error) {
	cfg := AutoClickConfig{Interval: time.Second}
	if err := decode(env, &cfg); err != nil {
		return nil, err
	}

	button, err := winmsg.ParseButton(cfg.Button)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}

	return &AutoClick{cfg: cfg, button: button, input: env.Input, log: logOrNoop(env.Log)}, nil
}

func (a *AutoClick) Start(ctx context.Context) (bool, error) {
	a.log.Info("Auto clicking",
		slog.Int("x", a.cfg.X),
		slog.Int("y", a.cfg.Y),
		slog.String("button", string(a.button)),
		slog.Duration("interval", a.cfg.Interval),
	)

	for i := 0; forever(a.cfg.Count) || i < a.cfg.Count; i++ {
		if i > 0 {
			if err := a.input.Wait(ctx, a.cfg.Interval); err != nil {
				return finish(ctx, err)
			}
		}

		if err := ctx.Err(); err != nil {
			return finish(ctx, err)
		}

		if err := a.click(); err != nil {
			return finish(ctx, err)
		}
	}

	return true, nil
}

func (a *AutoClick) click() error {
	if a.cfg.Hold > 0 {
		return a.input.MousePressAndHold(a.cfg.X, a.cfg.Y, a.button, a.cfg.Hold)
	}

	return a.input.Click(a.cfg.X, a.cfg.Y, a.button)
}
