package bodies

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Norgate-AV/winpilot/internal/input"
	"github.com/Norgate-AV/winpilot/internal/logger"
	"github.com/Norgate-AV/winpilot/internal/task"
	"github.com/Norgate-AV/winpilot/internal/timeouts"
	"github.com/Norgate-AV/winpilot/internal/winmsg"
)

// KeyHoldConfig charges a skill: hold Key for Hold, rest for Interval,
// repeat. Count 0 repeats until the task is stopped.
type KeyHoldConfig struct {
	Key      string        `mapstructure:"key" validate:"required"`
	Hold     time.Duration `mapstructure:"hold" validate:"gt=0"`
	Interval time.Duration `mapstructure:"interval" validate:"min=0"`
	Count    int           `mapstructure:"count" validate:"min=0"`
}

// KeyHold is the body behind the keyhold script reference
type KeyHold struct {
	cfg   KeyHoldConfig
	input *input.Manager
	log   logger.LoggerInterface
}

// NewKeyHold builds a keyhold body from the task settings
func NewKeyHold(env task.Env) (task.Body, error) {
	cfg := KeyHoldConfig{Hold: timeouts.DefaultHoldDuration, Interval: 2 * time.Second}
	if err := decode(env, &cfg); err != nil {
		return nil, err
	}

	if _, err := winmsg.ResolveKey(cfg.Key); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}

	return &KeyHold{cfg: cfg, input: env.Input, log: logOrNoop(env.Log)}, nil
}

func (k *KeyHold) Start(ctx context.Context) (bool, error) {
	k.log.Info("Holding key",
		slog.String("key", k.cfg.Key),
		slog.Duration("hold", k.cfg.Hold),
		slog.Duration("interval", k.cfg.Interval),
	)

	for i := 0; forever(k.cfg.Count) || i < k.cfg.Count; i++ {
		if i > 0 && k.cfg.Interval > 0 {
			if err := k.input.Wait(ctx, k.cfg.Interval); err != nil {
				return finish(ctx, err)
			}
		}

		if err := ctx.Err(); err != nil {
			return finish(ctx, err)
		}

		if err := k.input.PressAndHold(k.cfg.Key, k.cfg.Hold); err != nil {
			return finish(ctx, err)
		}
	}

	return true, nil
}
