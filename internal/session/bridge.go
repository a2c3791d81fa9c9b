// Package session runs one live game session: a bridge goroutine that
// consumes inbound action frames, drives the rule engine, persists the
// snapshot and publishes results and events back to the bus.
package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pybriscola/briscola-server-go/internal/bus"
	"github.com/pybriscola/briscola-server-go/internal/game"
	"github.com/pybriscola/briscola-server-go/internal/protocol"
	"github.com/pybriscola/briscola-server-go/internal/store"
)

// Config wires a bridge to its session.
type Config struct {
	SessionID string
	// State is the starting state: a cold NewState for fresh sessions, a
	// decoded snapshot for restarted ones.
	State *game.State
	// Queue is the inbound frame queue. The supervisor owns it so a
	// replacement worker resumes the same backlog after a restart.
	Queue <-chan bus.Message
	Bus   bus.Bus
	Store store.Store
	// HeartbeatInterval is how often the liveness record is refreshed,
	// independent of traffic.
	HeartbeatInterval time.Duration
	Logger            *zap.Logger
}

// Bridge owns one session. All state access happens on the Run goroutine;
// the struct has no locks because nothing is shared.
type Bridge struct {
	sessionID string
	state     *game.State
	queue     <-chan bus.Message
	bus       bus.Bus
	store     store.Store
	beatEvery time.Duration
	logger    *zap.Logger
}

// New builds a bridge. It does not start any goroutine; call Run.
func New(cfg Config) *Bridge {
	return &Bridge{
		sessionID: cfg.SessionID,
		state:     cfg.State,
		queue:     cfg.Queue,
		bus:       cfg.Bus,
		store:     cfg.Store,
		beatEvery: cfg.HeartbeatInterval,
		logger:    cfg.Logger.With(zap.String("session_id", cfg.SessionID)),
	}
}

// State returns the current state. Only safe to call when Run is not
// running, such as after shutdown in tests.
func (b *Bridge) State() *game.State { return b.state }

// Run consumes the queue until the context is canceled. The heartbeat
// ticker runs alongside and stops with it.
func (b *Bridge) Run(ctx context.Context) {
	b.logger.Info("session worker started",
		zap.String("phase", b.state.Phase.String()),
		zap.Uint64("version", b.state.Version))

	stopBeat := make(chan struct{})
	go b.heartbeat(ctx, stopBeat)
	defer close(stopBeat)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("session worker stopped")
			return
		case msg, ok := <-b.queue:
			if !ok {
				b.logger.Info("session queue closed")
				return
			}
			b.handle(ctx, msg)
		}
	}
}

func (b *Bridge) heartbeat(ctx context.Context, stop <-chan struct{}) {
	if err := b.store.Beat(ctx, b.sessionID); err != nil {
		b.logger.Warn("heartbeat write failed", zap.Error(err))
	}

	ticker := time.NewTicker(b.beatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if err := b.store.Beat(ctx, b.sessionID); err != nil {
				b.logger.Warn("heartbeat write failed", zap.Error(err))
			}
		}
	}
}

// handle processes one inbound frame end to end. Mutating actions follow
// persist-before-publish: the snapshot write happens before any result or
// event becomes visible, and a failed write discards the whole transition.
func (b *Bridge) handle(ctx context.Context, msg bus.Message) {
	env, err := protocol.DecodeEnvelope(msg.Data)
	if err != nil {
		// No envelope means no action id to correlate a result with.
		b.logger.Warn("dropping malformed frame", zap.Error(err))
		return
	}

	// Redelivery of the action we already applied: acknowledge again at the
	// current version without touching state. This must run before the
	// version guard, because a redelivered action always looks stale.
	if env.ActionID != "" && env.ActionID == b.state.LastAppliedActionID {
		b.logger.Debug("duplicate action re-acknowledged", zap.String("action_id", env.ActionID))
		b.publishResult(ctx, env, protocol.OKResult(env.ActionID, &protocol.Effects{
			Phase:   b.state.Phase.String(),
			Version: b.state.Version,
		}))
		return
	}

	if env.Version != 0 && env.Version != b.state.Version {
		b.publishResult(ctx, env, protocol.ErrorResult(env.ActionID, protocol.Reject(
			protocol.CodeDesync,
			fmt.Sprintf("action declared version %d, session is at %d", env.Version, b.state.Version))))
		return
	}

	if !env.Role.Valid() {
		b.publishResult(ctx, env, protocol.ErrorResult(env.ActionID, protocol.Reject(
			protocol.CodeUnauthorized, "unknown role "+string(env.Role))))
		return
	}

	act, rej := game.DecodeAction(env)
	if rej != nil {
		b.publishResult(ctx, env, protocol.ErrorResult(env.ActionID, rej))
		return
	}

	next, events, rej := game.Apply(b.state, act, env.Role)
	if rej != nil {
		b.publishResult(ctx, env, protocol.ErrorResult(env.ActionID, rej))
		return
	}

	if next != b.state {
		next.LastAppliedActionID = env.ActionID
		snapshot, err := game.EncodeSnapshot(next)
		if err != nil {
			b.logger.Error("snapshot encode failed", zap.Error(err))
			b.publishResult(ctx, env, protocol.ErrorResult(env.ActionID, protocol.Reject(
				protocol.CodeGameUnavailable, "session state could not be persisted")))
			return
		}
		if err := b.store.Save(ctx, b.sessionID, snapshot); err != nil {
			b.logger.Error("snapshot save failed",
				zap.Uint64("version", next.Version), zap.Error(err))
			b.publishResult(ctx, env, protocol.ErrorResult(env.ActionID, protocol.Reject(
				protocol.CodeGameUnavailable, "session state could not be persisted")))
			return
		}
		b.state = next
	}

	kinds := make([]string, len(events))
	for i, ev := range events {
		kinds[i] = ev.Kind
	}
	b.publishResult(ctx, env, protocol.OKResult(env.ActionID, &protocol.Effects{
		Phase:   b.state.Phase.String(),
		Version: b.state.Version,
		Events:  kinds,
	}))
	for _, ev := range events {
		b.publishEvent(ctx, ev)
	}
}

// publishResult sends the action.result back through the events topic,
// addressed to the author seat when there is one.
func (b *Bridge) publishResult(ctx context.Context, cause *protocol.Envelope, payload protocol.ActionResultPayload) {
	env, err := protocol.NewEvent(protocol.EventActionResult, b.sessionID, cause.PlayerID, b.state.Version, payload)
	if err != nil {
		b.logger.Error("encode action result failed", zap.Error(err))
		return
	}
	env.ActionID = cause.ActionID
	b.publish(ctx, env)
}

func (b *Bridge) publishEvent(ctx context.Context, ev game.Event) {
	env, err := protocol.NewEvent(ev.Kind, b.sessionID, ev.PlayerID, b.state.Version, ev.Payload)
	if err != nil {
		b.logger.Error("encode event failed", zap.String("kind", ev.Kind), zap.Error(err))
		return
	}
	b.publish(ctx, env)
}

func (b *Bridge) publish(ctx context.Context, env *protocol.Envelope) {
	raw, err := env.Encode()
	if err != nil {
		b.logger.Error("encode envelope failed", zap.String("kind", env.Type), zap.Error(err))
		return
	}
	if err := b.bus.Publish(ctx, protocol.EventsTopic(b.sessionID), raw); err != nil {
		b.logger.Error("publish failed", zap.String("kind", env.Type), zap.Error(err))
	}
}
