// Package bodies provides the built-in task bodies. Each one reads its
// configuration from the task's settings section and drives the target
// through the input facade until its work is done or it is stopped.
package bodies

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/Norgate-AV/winpilot/internal/logger"
	"github.com/Norgate-AV/winpilot/internal/task"
)

// Script references of the built-in bodies
const (
	RefActions   = "actions"
	RefAutoClick = "autoclick"
	RefKeyHold   = "keyhold"
)

var (
	// ErrNoInput is returned when a body is built without an input facade
	ErrNoInput = errors.New("task body needs an input manager")

	// ErrInvalidSettings wraps settings that fail to decode or validate
	ErrInvalidSettings = errors.New("invalid task settings")
)

// Register installs every built-in body in c
func Register(c *task.Catalog) error {
	for ref, factory := range map[string]task.Factory{
		RefActions:   NewActions,
		RefAutoClick: NewAutoClick,
		RefKeyHold:   NewKeyHold,
	} {
		if err := c.Register(ref, factory); err != nil {
			return err
		}
	}

	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// decode fills cfg from the task settings and validates it
func decode(env task.Env, cfg any) error {
	if env.Input == nil {
		return ErrNoInput
	}

	if err := env.Settings.Decode(cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}

	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}

	return nil
}

// finish maps a loop error to a body result. Cancellation is a clean stop.
func finish(ctx context.Context, err error) (bool, error) {
	if err == nil || ctx.Err() != nil {
		return true, nil
	}

	return false, err
}

// forever reports whether a repeat count means until stopped
func forever(count int) bool {
	return count == 0
}

func logOrNoop(log logger.LoggerInterface) logger.LoggerInterface {
	if log == nil {
		return logger.NewNoOpLogger()
	}

	return log
}
