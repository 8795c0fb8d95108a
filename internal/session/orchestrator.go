// Package session sequences the validate → transition → append pipeline.
//
// The orchestrator owns every live SessionState and is the only writer to
// the event log. Per session, actions are fully serialized: the policy
// checks run against a history snapshot, so two interleaved writers would
// validate against stale history. Different sessions proceed in parallel.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adaptco/tetris/internal/event"
	"github.com/adaptco/tetris/internal/eventlog"
	"github.com/adaptco/tetris/internal/game"
	"github.com/adaptco/tetris/internal/policy"
	"github.com/adaptco/tetris/internal/verify"
)

// ErrUnknownSession is returned for a session id with no recorded events.
var ErrUnknownSession = errors.New("session: unknown session")

// ErrUnknownMode is returned when a caller starts a session with a mode
// name no configuration exists for.
var ErrUnknownMode = errors.New("session: unknown mode")

// Key identifies one session.
type Key struct {
	Tenant string
	ID     string
}

// Snapshot is the caller-facing view of a session after an operation.
type Snapshot struct {
	Score        int            `json:"score"`
	LinesCleared int            `json:"lines_cleared"`
	MoveCount    int            `json:"move_count"`
	Piece        string         `json:"piece,omitempty"`
	Position     event.Coord    `json:"position"`
	State        event.StateTag `json:"state"`
}

// Outcome is the result of submitting one action.
//
// Approved false with a nil error means the action was refused without
// damaging the session or, for policy and fraud rejections, that the
// session is now sealed; Message says which. Errors are reserved for log
// failures, which the caller must treat as hard.
type Outcome struct {
	Approved bool
	Message  string
	Warning  string
	Snapshot Snapshot
}

// Handle describes a started session.
type Handle struct {
	Tenant   string
	ID       string
	Mode     string
	Snapshot Snapshot
}

type liveSession struct {
	mu        sync.Mutex
	mode      string
	validator *policy.Validator
	state     game.State
	tag       event.StateTag
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithIDGenerator overrides session id generation.
func WithIDGenerator(gen IDGenerator) Option {
	return func(o *Orchestrator) { o.ids = gen }
}

// WithClock overrides the wall clock used for finalize seals.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithModes overrides the built-in policy mode presets.
func WithModes(modes map[string]policy.Config) Option {
	return func(o *Orchestrator) { o.modes = modes }
}

// WithEngineOptions configures the transition engine, e.g. a fixed piece
// source for deterministic tests.
func WithEngineOptions(opts ...game.Option) Option {
	return func(o *Orchestrator) { o.engine = game.New(opts...) }
}

// Orchestrator drives sessions through their lifecycle.
type Orchestrator struct {
	log    eventlog.Log
	engine *game.Engine
	modes  map[string]policy.Config
	ids    IDGenerator
	now    func() time.Time
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[Key]*liveSession
}

// New creates an orchestrator backed by the given log.
func New(log eventlog.Log, opts ...Option) (*Orchestrator, error) {
	modes, err := policy.Modes()
	if err != nil {
		return nil, fmt.Errorf("session: loading modes: %w", err)
	}

	o := &Orchestrator{
		log:      log,
		engine:   game.New(),
		modes:    modes,
		ids:      UUIDv7Generator{},
		now:      time.Now,
		logger:   slog.Default(),
		sessions: make(map[Key]*liveSession),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Start creates a fresh session, spawns the first piece, and records the
// game_start event. The initial spawn is system-issued and bypasses the
// policy validator.
func (o *Orchestrator) Start(ctx context.Context, tenant, mode string) (Handle, error) {
	if mode == "" {
		mode = policy.DefaultMode
	}
	cfg, ok := o.modes[mode]
	if !ok {
		return Handle{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	id := o.ids.Generate()
	key := Key{Tenant: tenant, ID: id}

	sess := &liveSession{
		mode:      mode,
		validator: policy.New(cfg),
		tag:       event.StateRunning,
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	o.mu.Lock()
	o.sessions[key] = sess
	o.mu.Unlock()

	state, tr := o.engine.Spawn(o.engine.NewState())
	spawn := tr.Payload.(*event.SpawnPayload)
	spawn.Mode = mode

	if _, err := o.log.Append(ctx, tenant, id, eventlog.Entry{
		State:   event.StateRunning,
		Stage:   event.StageGameStart,
		Payload: spawn,
	}); err != nil {
		o.mu.Lock()
		delete(o.sessions, key)
		o.mu.Unlock()
		return Handle{}, fmt.Errorf("session: recording start: %w", err)
	}

	sess.state = state

	o.logger.Info("session started",
		"tenant", tenant,
		"session", id,
		"mode", mode,
		"piece", state.Piece)

	return Handle{Tenant: tenant, ID: id, Mode: mode, Snapshot: sess.snapshot()}, nil
}

// ExecuteAction validates and applies one player action, appending the
// resulting events. The read-history/validate/append sequence runs as one
// atomic unit per session.
func (o *Orchestrator) ExecuteAction(ctx context.Context, tenant, id string, action event.Action) (Outcome, error) {
	sess, err := o.session(ctx, tenant, id)
	if err != nil {
		return Outcome{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.tag.IsTerminal() {
		return o.refuse(sess, "session is %s: no further actions accepted", sess.tag), nil
	}

	// Unknown actions never reach the validator or the engine.
	if !isPlayerAction(action) {
		return o.refuse(sess, "unknown action %q", action), nil
	}

	history, err := o.log.Read(ctx, tenant, id)
	if err != nil {
		return Outcome{}, fmt.Errorf("session: reading history: %w", err)
	}

	snap := policy.Snapshot{
		Score:        sess.state.Score,
		LinesCleared: sess.state.LinesCleared,
		MoveCount:    sess.state.MoveCount,
	}
	if res := sess.validator.ValidateMove(action, snap, history); !res.Approved {
		return o.seal(ctx, sess, tenant, id, eventlog.Entry{
			State: event.StateFailed,
			Stage: event.StagePolicyViolation,
			Payload: &event.PolicyRejectPayload{
				Act:           action,
				Reason:        res.Reason,
				PenaltyPoints: res.PenaltyPoints,
			},
		}, res.Reason)
	}

	next, tr := o.apply(sess.state, action)
	if !tr.Applied() {
		return o.refuse(sess, "invalid move"), nil
	}

	var warning string
	if tr.Locked && tr.Lock != nil && tr.Lock.LinesCleared > 0 {
		res := sess.validator.ValidateLineClear(tr.Lock.LinesCleared, tr.Lock.PointsEarned, history)
		if !res.Approved {
			return o.seal(ctx, sess, tenant, id, eventlog.Entry{
				State: event.StateFailed,
				Stage: event.StageFraudDetected,
				Payload: &event.FraudRejectPayload{
					Act:           event.ActionFraud,
					Reason:        res.Reason,
					RevokedPoints: res.PenaltyPoints,
				},
			}, res.Reason)
		}
		warning = res.Warning
		if warning != "" {
			o.logger.Warn("suspicious clear volume",
				"tenant", tenant,
				"session", id,
				"warning", warning)
		}
	}

	entries := []eventlog.Entry{{
		State:   event.StateRunning,
		Stage:   event.StageGameAction,
		Payload: tr.Payload,
	}}

	tag := event.StateRunning
	if tr.Locked {
		spawned, spawnTr := o.engine.Spawn(next)
		next = spawned
		entries = append(entries, eventlog.Entry{
			State:   event.StateRunning,
			Stage:   event.StageSpawnPiece,
			Payload: spawnTr.Payload,
		})

		if spawned.GameOver {
			tag = event.StateFinalized
			entries = append(entries, eventlog.Entry{
				State: event.StateFinalized,
				Stage: event.StageGameOver,
				Payload: &event.FinalizePayload{
					Act:          event.ActionFinalize,
					FinalScore:   spawned.Score,
					LinesCleared: spawned.LinesCleared,
					MoveCount:    spawned.MoveCount,
					SealedAt:     o.now().UTC().Format(time.RFC3339),
				},
			})
		}
	}

	if _, err := o.log.AppendAll(ctx, tenant, id, entries); err != nil {
		return Outcome{}, fmt.Errorf("session: appending events: %w", err)
	}

	sess.state = next
	sess.tag = tag

	o.logger.Debug("action applied",
		"tenant", tenant,
		"session", id,
		"action", action,
		"score", next.Score,
		"state", tag)

	if tag == event.StateFinalized {
		o.logger.Info("session finalized",
			"tenant", tenant,
			"session", id,
			"final_score", next.Score,
			"lines_cleared", next.LinesCleared)
	}

	return Outcome{Approved: true, Warning: warning, Snapshot: sess.snapshot()}, nil
}

// VerifyIntegrity reads the full history and delegates to the verifier.
func (o *Orchestrator) VerifyIntegrity(ctx context.Context, tenant, id string) (verify.Report, error) {
	history, err := o.log.Read(ctx, tenant, id)
	if err != nil {
		return verify.Report{}, fmt.Errorf("session: reading history: %w", err)
	}
	return verify.Verify(history), nil
}

// Snapshot returns the current view of a session.
func (o *Orchestrator) Snapshot(ctx context.Context, tenant, id string) (Snapshot, error) {
	sess, err := o.session(ctx, tenant, id)
	if err != nil {
		return Snapshot{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.snapshot(), nil
}

// apply dispatches an action to the matching engine operation.
func (o *Orchestrator) apply(state game.State, action event.Action) (game.State, game.Transition) {
	switch action {
	case event.ActionMoveLeft, event.ActionMoveRight, event.ActionMoveDown:
		return o.engine.Move(state, action)
	case event.ActionRotateCW:
		return o.engine.Rotate(state, true)
	case event.ActionRotateCCW:
		return o.engine.Rotate(state, false)
	case event.ActionHardDrop:
		return o.engine.HardDrop(state)
	default:
		return state, game.Transition{}
	}
}

// refuse reports an unapproved action that writes no event.
func (o *Orchestrator) refuse(sess *liveSession, format string, args ...any) Outcome {
	return Outcome{
		Message:  fmt.Sprintf(format, args...),
		Snapshot: sess.snapshot(),
	}
}

// seal appends a terminal FAILED event and marks the session terminal.
// The append failing is a hard error: the rejection must be durable.
func (o *Orchestrator) seal(ctx context.Context, sess *liveSession, tenant, id string, entry eventlog.Entry, reason string) (Outcome, error) {
	if _, err := o.log.Append(ctx, tenant, id, entry); err != nil {
		return Outcome{}, fmt.Errorf("session: recording rejection: %w", err)
	}
	sess.tag = event.StateFailed

	o.logger.Warn("session failed",
		"tenant", tenant,
		"session", id,
		"stage", entry.Stage,
		"reason", reason)

	return Outcome{Message: reason, Snapshot: sess.snapshot()}, nil
}

// session returns the live session for a key, rebuilding it from the log
// when the orchestrator has no in-memory record (e.g. after a restart).
func (o *Orchestrator) session(ctx context.Context, tenant, id string) (*liveSession, error) {
	key := Key{Tenant: tenant, ID: id}

	o.mu.Lock()
	sess, ok := o.sessions[key]
	o.mu.Unlock()
	if ok {
		return sess, nil
	}

	history, err := o.log.Read(ctx, tenant, id)
	if err != nil {
		return nil, fmt.Errorf("session: reading history: %w", err)
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownSession, tenant, id)
	}

	rebuilt, err := Rebuild(history)
	if err != nil {
		return nil, fmt.Errorf("session: rebuilding %s/%s: %w", tenant, id, err)
	}

	cfg, ok := o.modes[rebuilt.Mode]
	if !ok {
		return nil, fmt.Errorf("%w: %q recorded by session %s", ErrUnknownMode, rebuilt.Mode, id)
	}

	sess = &liveSession{
		mode:      rebuilt.Mode,
		validator: policy.New(cfg),
		state:     rebuilt.State,
		tag:       rebuilt.Tag,
	}

	o.mu.Lock()
	if existing, ok := o.sessions[key]; ok {
		sess = existing
	} else {
		o.sessions[key] = sess
	}
	o.mu.Unlock()

	return sess, nil
}

func (s *liveSession) snapshot() Snapshot {
	return Snapshot{
		Score:        s.state.Score,
		LinesCleared: s.state.LinesCleared,
		MoveCount:    s.state.MoveCount,
		Piece:        string(s.state.Piece),
		Position:     s.state.Pos,
		State:        s.tag,
	}
}

func isPlayerAction(a event.Action) bool {
	for _, p := range event.PlayerActions {
		if a == p {
			return true
		}
	}
	return false
}
