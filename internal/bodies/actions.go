package bodies

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Norgate-AV/winpilot/internal/input"
	"github.com/Norgate-AV/winpilot/internal/logger"
	"github.com/Norgate-AV/winpilot/internal/task"
)

// ActionsConfig replays a declarative action script. Loop 0 repeats until
// the task is stopped.
type ActionsConfig struct {
	Actions  []input.Action `mapstructure:"actions" validate:"required,min=1"`
	Loop     int            `mapstructure:"loop" validate:"min=0"`
	Interval time.Duration  `mapstructure:"interval" validate:"min=0"`
}

// Actions is the body behind the actions script reference
type Actions struct {
	cfg   ActionsConfig
	input *input.Manager
	log   logger.LoggerInterface
}

// NewActions builds an actions body from the task settings. Every action is
// validated here so a bad script fails at start.
func NewActions(env task.Env) (task.Body, error) {
	cfg := ActionsConfig{Loop: 1}
	if err := decode(env, &cfg); err != nil {
		return nil, err
	}

	for i, a := range cfg.Actions {
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSettings, &input.ActionError{Index: i, Type: a.Type, Err: err})
		}
	}

	return &Actions{cfg: cfg, input: env.Input, log: logOrNoop(env.Log)}, nil
}

func (a *Actions) Start(ctx context.Context) (bool, error) {
	a.log.Info("Replaying actions",
		slog.Int("actions", len(a.cfg.Actions)),
		slog.Int("loop", a.cfg.Loop),
	)

	for i := 0; forever(a.cfg.Loop) || i < a.cfg.Loop; i++ {
		if i > 0 && a.cfg.Interval > 0 {
			if err := a.input.Wait(ctx, a.cfg.Interval); err != nil {
				return finish(ctx, err)
			}
		}

		if err := a.input.RunActions(ctx, a.cfg.Actions); err != nil {
			return finish(ctx, err)
		}

		a.log.Debug("Action pass complete", slog.Int("pass", i+1))
	}

	return true, nil
}
