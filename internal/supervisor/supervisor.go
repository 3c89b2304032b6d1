// Package supervisor owns the single background watch of the default
// channel: locate its session, keep participants unmuted until the session
// ends, then locate again. At most one watch runs per Supervisor.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/voiceaccess/internal/platform"
	"github.com/vovakirdan/voiceaccess/internal/reconcile"
	"github.com/vovakirdan/voiceaccess/internal/registry"
)

var (
	// ErrAlreadyRunning is returned by Start while a watch is active.
	ErrAlreadyRunning = errors.New("watch is already running")
	// ErrNotRunning is returned by Stop when no watch is active.
	ErrNotRunning = errors.New("watch is not running")
	// ErrNoDefaultChannel is recorded when a cycle finds no default channel.
	ErrNoDefaultChannel = errors.New("no default channel selected")
	// ErrCyclePanic wraps a panic recovered from one cycle.
	ErrCyclePanic = errors.New("watch cycle panicked")
)

// DefaultBackoff is the pause between locate attempts.
const DefaultBackoff = 30 * time.Second

// DefaultSource yields the channel to watch. It is read on every cycle so
// a new default takes effect without a restart.
type DefaultSource interface {
	Default(ctx context.Context) (registry.Entry, bool, error)
}

// Locator finds the active session of a channel.
type Locator interface {
	Locate(ctx context.Context, entry registry.Entry) (platform.SessionHandle, bool)
}

// Reconciler keeps one session unmuted until cancelled or ended.
type Reconciler interface {
	Run(ctx context.Context, session platform.SessionHandle, selfID int64, corrected func(platform.UserRef)) reconcile.Outcome
}

// SelfResolver returns the bot's own account.
type SelfResolver interface {
	Self(ctx context.Context) (platform.UserRef, error)
}

// Deps are the collaborators of a Supervisor.
type Deps struct {
	Channels   DefaultSource
	Locator    Locator
	Reconciler Reconciler
	Self       SelfResolver
}

// Options tune a Supervisor.
type Options struct {
	// Backoff is the pause after a cycle without a session, after a session
	// ends and after a failed cycle.
	Backoff time.Duration
	// Wait pauses for d; it reports false when ctx ended first.
	// Defaults to a timer.
	Wait func(ctx context.Context, d time.Duration) bool
}

// EventType classifies lifecycle notifications.
type EventType int

const (
	EventSessionFound EventType = iota
	EventSessionEnded
)

// Event is a lifecycle notification sent to the party that started a watch.
type Event struct {
	Type    EventType
	Label   string
	Session platform.SessionHandle
}

// NotifyFunc receives lifecycle events. It runs on the watch goroutine.
type NotifyFunc func(Event)

// Phase is what the watch is doing right now.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseLocating    Phase = "locating"
	PhaseReconciling Phase = "reconciling"
	PhaseBackingOff  Phase = "backing_off"
)

// Status is a point-in-time view of the watch.
type Status struct {
	Running     bool      `json:"running"`
	Phase       Phase     `json:"phase"`
	RunID       string    `json:"run_id,omitempty"`
	Channel     string    `json:"channel,omitempty"`
	SessionID   int64     `json:"session_id,omitempty"`
	Corrections int       `json:"corrections"`
	StartedAt   time.Time `json:"started_at"`
	LastError   string    `json:"last_error,omitempty"`
}

// Supervisor runs and controls the watch.
type Supervisor struct {
	deps    Deps
	backoff time.Duration
	wait    func(ctx context.Context, d time.Duration) bool
	log     *zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	status Status
}

// New creates an idle supervisor.
func New(deps Deps, opts Options, logger *zerolog.Logger) *Supervisor {
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.Wait == nil {
		opts.Wait = wait
	}
	l := logger.With().Str("component", "supervisor").Logger()
	return &Supervisor{
		deps:    deps,
		backoff: opts.Backoff,
		wait:    opts.Wait,
		log:     &l,
		status:  Status{Phase: PhaseIdle},
	}
}

// Start launches the watch. notify may be nil.
func (s *Supervisor) Start(notify NotifyFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runningLocked() {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	runID := uuid.NewString()
	done := make(chan struct{})

	s.cancel = cancel
	s.done = done
	s.status = Status{
		Running:   true,
		Phase:     PhaseLocating,
		RunID:     runID,
		StartedAt: time.Now().UTC(),
	}

	go s.loop(ctx, runID, notify, done)
	return nil
}

// Stop cancels the watch and waits until it has exited or ctx is done.
// Once Stop returns nil no further mute commands will be issued.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.runningLocked() {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.cancel()
	done := s.done
	s.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for watch to stop: %w", ctx.Err())
	}
}

// Shutdown stops the watch if one is running.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	if err := s.Stop(ctx); err != nil && !errors.Is(err, ErrNotRunning) {
		return err
	}
	return nil
}

// Running reports whether a watch is active.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runningLocked()
}

// Status returns a snapshot of the watch state.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Supervisor) runningLocked() bool {
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

func (s *Supervisor) loop(ctx context.Context, runID string, notify NotifyFunc, done chan struct{}) {
	defer close(done)

	log := s.log.With().Str("run_id", runID).Logger()
	log.Info().Msg("watch started")

	for ctx.Err() == nil {
		err := s.cycle(ctx, &log, notify)
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			log.Warn().Err(err).Dur("retry_in", s.backoff).Msg("watch cycle failed")
		}
		s.update(func(st *Status) {
			st.Phase = PhaseBackingOff
			st.SessionID = 0
			if err != nil {
				st.LastError = err.Error()
			}
		})
		if !s.wait(ctx, s.backoff) {
			break
		}
	}

	s.update(func(st *Status) {
		st.Running = false
		st.Phase = PhaseIdle
		st.SessionID = 0
	})
	log.Info().Msg("watch stopped")
}

// cycle performs one locate → reconcile pass. Panics are turned into errors
// so a single bad cycle never ends the watch.
func (s *Supervisor) cycle(ctx context.Context, log *zerolog.Logger, notify NotifyFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrCyclePanic, r)
		}
	}()

	s.update(func(st *Status) { st.Phase = PhaseLocating })

	entry, ok, err := s.deps.Channels.Default(ctx)
	if err != nil {
		return fmt.Errorf("read default channel: %w", err)
	}
	if !ok {
		return ErrNoDefaultChannel
	}
	s.update(func(st *Status) { st.Channel = entry.Label })

	session, ok := s.deps.Locator.Locate(ctx, entry)
	if !ok {
		log.Debug().Str("label", entry.Label).Msg("no active session")
		return nil
	}

	self, err := s.deps.Self.Self(ctx)
	if err != nil {
		return fmt.Errorf("resolve self: %w", err)
	}

	s.update(func(st *Status) {
		st.Phase = PhaseReconciling
		st.SessionID = session.ID
	})
	log.Info().Str("label", entry.Label).Int64("session_id", session.ID).Msg("session found")
	if notify != nil {
		notify(Event{Type: EventSessionFound, Label: entry.Label, Session: session})
	}

	out := s.deps.Reconciler.Run(ctx, session, self.ID, func(platform.UserRef) {
		s.update(func(st *Status) { st.Corrections++ })
	})
	if out == reconcile.SessionEnded {
		log.Info().Int64("session_id", session.ID).Msg("session ended")
		if notify != nil {
			notify(Event{Type: EventSessionEnded, Label: entry.Label, Session: session})
		}
	}
	return nil
}

func (s *Supervisor) update(fn func(*Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.status)
}

func wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
