// Package supervisor owns the fleet of session workers. A single
// subscriber drains the action and control patterns, routes each frame to
// its session's queue, starts workers on first sight and restarts them
// when their heartbeat lapses. Queues outlive workers so a replacement
// resumes the backlog of the worker it replaces.
package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pybriscola/briscola-server-go/internal/bus"
	"github.com/pybriscola/briscola-server-go/internal/game"
	"github.com/pybriscola/briscola-server-go/internal/protocol"
	"github.com/pybriscola/briscola-server-go/internal/session"
	"github.com/pybriscola/briscola-server-go/internal/store"
)

const (
	defaultQueueSize = 256
	defaultPoll      = 5 * time.Second
	defaultHeartbeat = 2 * time.Second
)

// Config wires the supervisor to its transports and fixes the rules new
// sessions are created with.
type Config struct {
	Bus   bus.Bus
	Store store.Store
	// Rules applies to every cold session. Restored sessions keep the
	// rules persisted in their snapshot.
	Rules game.Rules
	// Seed produces the deck seed for cold sessions. Defaults to wall
	// clock nanoseconds.
	Seed func() int64
	// QueueSize bounds each session's inbound queue.
	QueueSize         int
	HeartbeatInterval time.Duration
	// PollInterval is how often worker liveness and snapshot expiry are
	// checked.
	PollInterval time.Duration
	Logger       *zap.Logger
}

// handle tracks one running worker. The queue belongs to the supervisor,
// not the worker: it survives restarts.
type handle struct {
	queue  chan bus.Message
	cancel context.CancelFunc
	done   chan struct{}
	bridge *session.Bridge
}

// Supervisor routes frames and keeps one live worker per session.
type Supervisor struct {
	bus       bus.Bus
	store     store.Store
	rules     game.Rules
	seed      func() int64
	queueSize int
	beatEvery time.Duration
	poll      time.Duration
	logger    *zap.Logger

	// workers is touched only by the Run goroutine.
	workers map[string]*handle
}

// New validates the config and builds a supervisor. Call Run to start it.
func New(cfg Config) (*Supervisor, error) {
	if err := cfg.Rules.Validate(); err != nil {
		return nil, fmt.Errorf("session rules: %w", err)
	}
	if cfg.Seed == nil {
		cfg.Seed = func() int64 { return time.Now().UnixNano() }
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeat
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPoll
	}
	return &Supervisor{
		bus:       cfg.Bus,
		store:     cfg.Store,
		rules:     cfg.Rules,
		seed:      cfg.Seed,
		queueSize: cfg.QueueSize,
		beatEvery: cfg.HeartbeatInterval,
		poll:      cfg.PollInterval,
		logger:    cfg.Logger,
		workers:   make(map[string]*handle),
	}, nil
}

// Run subscribes to the action and control patterns and serves until the
// context is canceled. It returns an error only when a subscription fails
// or closes underneath it.
func (s *Supervisor) Run(ctx context.Context) error {
	actions, err := s.bus.Subscribe(ctx, protocol.ActionsPattern)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", protocol.ActionsPattern, err)
	}
	defer actions.Unsubscribe()

	control, err := s.bus.Subscribe(ctx, protocol.ControlPattern)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", protocol.ControlPattern, err)
	}
	defer control.Unsubscribe()

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	s.logger.Info("supervisor started",
		zap.Duration("poll", s.poll),
		zap.Duration("heartbeat_interval", s.beatEvery))

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil
		case msg, ok := <-actions.Messages():
			if !ok {
				s.shutdown()
				return fmt.Errorf("action subscription closed")
			}
			s.routeAction(ctx, msg)
		case msg, ok := <-control.Messages():
			if !ok {
				s.shutdown()
				return fmt.Errorf("control subscription closed")
			}
			s.routeControl(ctx, msg)
		case <-ticker.C:
			s.checkSessions(ctx)
		}
	}
}

// routeAction delivers one inbound frame to its session's queue, creating
// the worker first if none is running.
func (s *Supervisor) routeAction(ctx context.Context, msg bus.Message) {
	sessionID, class, ok := protocol.SplitTopic(msg.Topic)
	if !ok || class != "actions" {
		s.logger.Warn("dropping frame from unexpected topic", zap.String("topic", msg.Topic))
		return
	}

	w, err := s.ensureWorker(ctx, sessionID)
	if err != nil {
		s.logger.Error("cannot start session worker",
			zap.String("session_id", sessionID), zap.Error(err))
		s.publishError(ctx, sessionID, "session is not routable")
		return
	}

	select {
	case w.queue <- msg:
	default:
		// The gateway redelivers unacknowledged actions, so a drop here
		// is a delay, not a loss.
		s.logger.Warn("session queue full, dropping frame",
			zap.String("session_id", sessionID))
	}
}

func (s *Supervisor) routeControl(ctx context.Context, msg bus.Message) {
	sessionID, class, ok := protocol.SplitTopic(msg.Topic)
	if !ok || class != "control" {
		s.logger.Warn("dropping frame from unexpected topic", zap.String("topic", msg.Topic))
		return
	}

	var cmd protocol.ControlCommand
	if err := json.Unmarshal(msg.Data, &cmd); err != nil {
		s.logger.Warn("dropping malformed control frame",
			zap.String("session_id", sessionID), zap.Error(err))
		return
	}

	switch cmd.Command {
	case protocol.ControlCreate:
		if _, err := s.ensureWorker(ctx, sessionID); err != nil {
			s.logger.Error("create failed", zap.String("session_id", sessionID), zap.Error(err))
			s.publishError(ctx, sessionID, "session is not routable")
		}
	case protocol.ControlStop:
		s.stopSession(ctx, sessionID)
	case protocol.ControlSync:
		s.enqueueSynthetic(ctx, sessionID, &protocol.Envelope{
			Type:            protocol.ActionSync,
			SessionID:       sessionID,
			Role:            protocol.RoleObserver,
			Timestamp:       time.Now().UTC(),
			ProtocolVersion: protocol.ProtocolVersion,
			Origin:          protocol.OriginEngine,
		})
	case protocol.ControlLeave:
		if cmd.PlayerID == nil {
			s.logger.Warn("leave command without a player", zap.String("session_id", sessionID))
			return
		}
		s.enqueueSynthetic(ctx, sessionID, &protocol.Envelope{
			Type:            protocol.ActionLeave,
			SessionID:       sessionID,
			PlayerID:        cmd.PlayerID,
			Role:            protocol.RolePlayer,
			Timestamp:       time.Now().UTC(),
			ProtocolVersion: protocol.ProtocolVersion,
			Origin:          protocol.OriginEngine,
		})
	default:
		s.logger.Warn("unknown control command",
			zap.String("session_id", sessionID), zap.String("command", cmd.Command))
	}
}

// enqueueSynthetic routes a supervisor-made envelope through the same
// queue gateway frames use. Synthetic envelopes carry no action id and no
// declared version, so the worker's duplicate and version guards skip them.
func (s *Supervisor) enqueueSynthetic(ctx context.Context, sessionID string, env *protocol.Envelope) {
	raw, err := env.Encode()
	if err != nil {
		s.logger.Error("encode synthetic frame failed",
			zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	s.routeAction(ctx, bus.Message{Topic: protocol.ActionsTopic(sessionID), Data: raw})
}

// ensureWorker returns the running worker for the session, starting one if
// needed. Cold sessions persist their initial snapshot immediately, so a
// session exists in the store exactly as long as it is live.
func (s *Supervisor) ensureWorker(ctx context.Context, sessionID string) (*handle, error) {
	if w, ok := s.workers[sessionID]; ok {
		return w, nil
	}

	state, err := s.loadOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	w := s.startWorker(ctx, sessionID, state, make(chan bus.Message, s.queueSize))
	s.workers[sessionID] = w
	return w, nil
}

func (s *Supervisor) loadOrCreate(ctx context.Context, sessionID string) (*game.State, error) {
	data, err := s.store.Load(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		state := game.NewState(sessionID, s.rules, s.seed())
		snapshot, err := game.EncodeSnapshot(state)
		if err != nil {
			return nil, fmt.Errorf("encode initial snapshot: %w", err)
		}
		if err := s.store.Save(ctx, sessionID, snapshot); err != nil {
			return nil, fmt.Errorf("persist initial snapshot: %w", err)
		}
		s.logger.Info("session created", zap.String("session_id", sessionID))
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	state, err := game.DecodeSnapshot(data)
	if err != nil {
		// A corrupted snapshot is not silently replaced with a fresh
		// game; the session stays unroutable until an operator steps in.
		return nil, err
	}
	s.logger.Info("session restored",
		zap.String("session_id", sessionID),
		zap.String("phase", state.Phase.String()),
		zap.Uint64("version", state.Version))
	return state, nil
}

func (s *Supervisor) startWorker(ctx context.Context, sessionID string, state *game.State, queue chan bus.Message) *handle {
	wctx, cancel := context.WithCancel(ctx)
	w := &handle{
		queue:  queue,
		cancel: cancel,
		done:   make(chan struct{}),
		bridge: session.New(session.Config{
			SessionID:         sessionID,
			State:             state,
			Queue:             queue,
			Bus:               s.bus,
			Store:             s.store,
			HeartbeatInterval: s.beatEvery,
			Logger:            s.logger,
		}),
	}
	go func() {
		w.bridge.Run(wctx)
		close(w.done)
	}()
	return w
}

// checkSessions is the liveness and retirement pass. It sweeps the store,
// reaps sessions whose snapshot is gone and restarts workers that exited
// or stopped heartbeating.
func (s *Supervisor) checkSessions(ctx context.Context) {
	if err := s.store.Reap(ctx); err != nil {
		s.logger.Warn("store sweep failed", zap.Error(err))
	}

	for sessionID, w := range s.workers {
		if _, err := s.store.Load(ctx, sessionID); errors.Is(err, store.ErrNotFound) {
			s.reapSession(ctx, sessionID, w)
			continue
		} else if err != nil {
			s.logger.Warn("snapshot check failed",
				zap.String("session_id", sessionID), zap.Error(err))
			continue
		}

		select {
		case <-w.done:
			s.logger.Warn("session worker exited, restarting", zap.String("session_id", sessionID))
			s.restartWorker(ctx, sessionID, w)
			continue
		default:
		}

		alive, err := s.store.Alive(ctx, sessionID)
		if err != nil {
			s.logger.Warn("liveness check failed",
				zap.String("session_id", sessionID), zap.Error(err))
			continue
		}
		if !alive {
			s.logger.Warn("session heartbeat lapsed, restarting worker",
				zap.String("session_id", sessionID))
			s.restartWorker(ctx, sessionID, w)
		}
	}
}

// restartWorker replaces a dead worker with a fresh one built from the
// persisted snapshot, on the same queue. Frames that arrived during the
// outage are applied in arrival order; redeliveries of already-applied
// actions are re-acknowledged by the worker's duplicate guard.
func (s *Supervisor) restartWorker(ctx context.Context, sessionID string, w *handle) {
	w.cancel()
	if !waitDone(w.done, s.poll) {
		// Starting a replacement while the old goroutine may still touch
		// the session would mean two workers for one id. Try again next
		// poll.
		s.logger.Error("old worker is not stopping", zap.String("session_id", sessionID))
		return
	}

	state, err := s.loadOrCreate(ctx, sessionID)
	if err != nil {
		// The dead handle stays registered; the next poll lands in the
		// worker-exited branch and retries the reload.
		s.logger.Error("restart failed", zap.String("session_id", sessionID), zap.Error(err))
		return
	}

	s.workers[sessionID] = s.startWorker(ctx, sessionID, state, w.queue)
	s.logger.Info("session worker restarted",
		zap.String("session_id", sessionID),
		zap.Uint64("version", state.Version))
}

// reapSession retires a session whose snapshot expired out of the store.
func (s *Supervisor) reapSession(ctx context.Context, sessionID string, w *handle) {
	w.cancel()
	waitDone(w.done, s.poll)
	delete(s.workers, sessionID)

	if err := s.store.ClearBeat(ctx, sessionID); err != nil {
		s.logger.Warn("clear heartbeat failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	s.publishEnded(ctx, sessionID)
	s.logger.Info("session reaped", zap.String("session_id", sessionID))
}

// stopSession tears a session down on request: worker gone, snapshot and
// heartbeat deleted, game.ended announced. Works whether or not a worker
// is currently running.
func (s *Supervisor) stopSession(ctx context.Context, sessionID string) {
	if w, ok := s.workers[sessionID]; ok {
		w.cancel()
		waitDone(w.done, s.poll)
		delete(s.workers, sessionID)
	}

	if err := s.store.Delete(ctx, sessionID); err != nil {
		s.logger.Warn("delete snapshot failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	if err := s.store.ClearBeat(ctx, sessionID); err != nil {
		s.logger.Warn("clear heartbeat failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	s.publishEnded(ctx, sessionID)
	s.logger.Info("session stopped", zap.String("session_id", sessionID))
}

func (s *Supervisor) publishEnded(ctx context.Context, sessionID string) {
	env, err := protocol.NewEvent(protocol.EventGameEnded, sessionID, nil, 0,
		protocol.GameEndedPayload{SessionID: sessionID})
	if err != nil {
		s.logger.Error("encode game.ended failed", zap.Error(err))
		return
	}
	s.publish(ctx, sessionID, env)
}

func (s *Supervisor) publishError(ctx context.Context, sessionID, reason string) {
	env, err := protocol.NewEvent(protocol.EventError, sessionID, nil, 0, protocol.ErrorPayload{
		Code:   protocol.CodeRoutingFailed,
		Reason: reason,
	})
	if err != nil {
		s.logger.Error("encode error event failed", zap.Error(err))
		return
	}
	s.publish(ctx, sessionID, env)
}

func (s *Supervisor) publish(ctx context.Context, sessionID string, env *protocol.Envelope) {
	raw, err := env.Encode()
	if err != nil {
		s.logger.Error("encode envelope failed", zap.String("kind", env.Type), zap.Error(err))
		return
	}
	if err := s.bus.Publish(ctx, protocol.EventsTopic(sessionID), raw); err != nil {
		s.logger.Error("publish failed", zap.String("kind", env.Type), zap.Error(err))
	}
}

// shutdown stops every worker. Their contexts are children of the run
// context, so cancellation is already in flight; this waits for them.
func (s *Supervisor) shutdown() {
	for _, w := range s.workers {
		w.cancel()
	}
	for sessionID, w := range s.workers {
		if !waitDone(w.done, s.poll) {
			s.logger.Error("worker did not stop during shutdown", zap.String("session_id", sessionID))
		}
		delete(s.workers, sessionID)
	}
	s.logger.Info("supervisor stopped")
}

func waitDone(done <-chan struct{}, grace time.Duration) bool {
	select {
	case <-done:
		return true
	case <-time.After(grace):
		return false
	}
}
