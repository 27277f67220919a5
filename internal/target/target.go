// Package target locates the window that receives synthetic input and
// publishes it to the shared state store.
package target

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/Norgate-AV/winpilot/internal/interfaces"
	"github.com/Norgate-AV/winpilot/internal/logger"
	"github.com/Norgate-AV/winpilot/internal/state"
	"github.com/Norgate-AV/winpilot/internal/timeouts"
	"github.com/Norgate-AV/winpilot/internal/windows"
)

// ErrNotFound is returned when no window matches a query
var ErrNotFound = errors.New("window not found")

// Query selects windows. Title matches case-insensitively, as a substring
// unless Exact is set. A non-zero Pid must also match.
type Query struct {
	Title string
	Exact bool
	Pid   uint32
}

func (q Query) String() string {
	if q.Pid != 0 {
		return fmt.Sprintf("%q (pid %d)", q.Title, q.Pid)
	}

	return fmt.Sprintf("%q", q.Title)
}

func (q Query) matches(w windows.WindowInfo) bool {
	if !w.Visible || strings.TrimSpace(w.Title) == "" {
		return false
	}
	if q.Pid != 0 && w.Pid != q.Pid {
		return false
	}

	title := strings.ToLower(w.Title)
	want := strings.ToLower(q.Title)
	if q.Exact {
		return title == want
	}

	return strings.Contains(title, want)
}

// Locator finds windows through a WindowEnumerator
type Locator struct {
	enum interfaces.WindowEnumerator
	log  logger.LoggerInterface
	poll time.Duration
}

// Option configures a Locator
type Option func(*Locator)

// WithPollInterval sets the delay between enumeration attempts in WaitFor
func WithPollInterval(d time.Duration) Option {
	return func(l *Locator) { l.poll = d }
}

// NewLocator creates a locator
func NewLocator(enum interfaces.WindowEnumerator, log logger.LoggerInterface, opts ...Option) *Locator {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	l := &Locator{
		enum: enum,
		log:  log,
		poll: timeouts.WindowPollInterval,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// FindAll returns every visible window matching q in enumeration order
func (l *Locator) FindAll(q Query) []windows.WindowInfo {
	var out []windows.WindowInfo
	for _, w := range l.enum.EnumerateWindows() {
		if q.matches(w) {
			out = append(out, w)
		}
	}

	return out
}

// Find returns the first visible window matching q. An exact title match
// is preferred over a substring match.
func (l *Locator) Find(q Query) (windows.WindowInfo, bool) {
	matches := l.FindAll(q)
	if len(matches) == 0 {
		return windows.WindowInfo{}, false
	}

	for _, w := range matches {
		if strings.EqualFold(w.Title, q.Title) {
			return w, true
		}
	}

	return matches[0], true
}

// WaitFor polls until a window matching q appears, timeout elapses or ctx
// is done. A non-positive timeout waits until ctx is done.
func (l *Locator) WaitFor(ctx context.Context, q Query, timeout time.Duration) (windows.WindowInfo, error) {
	if q.Title == "" {
		return windows.WindowInfo{}, fmt.Errorf("%w: empty title", ErrNotFound)
	}

	backoff := retry.NewConstant(l.poll)
	if timeout > 0 {
		backoff = retry.WithMaxDuration(timeout, backoff)
	}

	var found windows.WindowInfo
	attempts := 0

	err := retry.Do(ctx, backoff, func(_ context.Context) error {
		attempts++

		w, ok := l.Find(q)
		if !ok {
			if attempts == 1 {
				l.log.Info("Waiting for window", slog.String("title", q.Title))
			}
			return retry.RetryableError(ErrNotFound)
		}

		found = w
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return windows.WindowInfo{}, ctxErr
		}
		return windows.WindowInfo{}, fmt.Errorf("%w: %s after %d attempts", ErrNotFound, q, attempts)
	}

	l.log.Info("Found window",
		slog.String("title", found.Title),
		slog.Uint64("pid", uint64(found.Pid)),
		slog.Int("width", found.Width),
		slog.Int("height", found.Height),
	)

	return found, nil
}

// Publish makes w the input target. A zero w clears the target.
func Publish(store *state.Store, w windows.WindowInfo) {
	if w.IsZero() {
		store.Delete(state.KeyTargetWindow)
		return
	}

	store.Set(state.KeyTargetWindow, w)
}

// Current returns the published target
func Current(store *state.Store) (windows.WindowInfo, bool) {
	return state.Value[windows.WindowInfo](store, state.KeyTargetWindow)
}
