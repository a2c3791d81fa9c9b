// Package integration drives the full server stack the way a gateway
// would: frames published on the bus, a supervisor routing them to session
// workers, snapshots landing in the store, and events read back from the
// session's events topic. Nothing reaches into the engine directly.
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pybriscola/briscola-server-go/internal/bus"
	"github.com/pybriscola/briscola-server-go/internal/game"
	"github.com/pybriscola/briscola-server-go/internal/protocol"
	"github.com/pybriscola/briscola-server-go/internal/store"
	"github.com/pybriscola/briscola-server-go/internal/supervisor"
)

type env struct {
	t      *testing.T
	cancel context.CancelFunc
	done   chan struct{}

	bus   *bus.Memory
	store store.Store
}

// startServer boots a supervisor on an in-memory bus and store, with test
// intervals, and waits until its subscriptions are live.
func startServer(t *testing.T, st store.Store, opts ...func(*supervisor.Config)) *env {
	t.Helper()

	b := bus.NewMemory()
	if st == nil {
		st = store.NewMemory(0, time.Minute)
	}

	cfg := supervisor.Config{
		Bus:               b,
		Store:             st,
		Rules:             game.DefaultRules(),
		Seed:              func() int64 { return 4242 },
		HeartbeatInterval: 10 * time.Millisecond,
		PollInterval:      25 * time.Millisecond,
		Logger:            zaptest.NewLogger(t),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	sup, err := supervisor.New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	e := &env{t: t, cancel: cancel, done: make(chan struct{}), bus: b, store: st}
	go func() {
		_ = sup.Run(ctx)
		close(e.done)
	}()
	t.Cleanup(e.stop)

	// The id is unique per boot so a record left by an earlier server over
	// the same store cannot satisfy the check early.
	warmupID := "WARMUP-" + uuid.NewString()[:8]
	warmup, err := json.Marshal(protocol.ControlCommand{Command: protocol.ControlCreate, SessionID: warmupID})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_ = b.Publish(context.Background(), protocol.ControlTopic(warmupID), warmup)
		_, err := st.Load(context.Background(), warmupID)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond, "supervisor did not come up")

	return e
}

func (e *env) stop() {
	e.cancel()
	select {
	case <-e.done:
	case <-time.After(2 * time.Second):
		e.t.Fatal("supervisor did not stop")
	}
}

func (e *env) control(sessionID string, cmd protocol.ControlCommand) {
	e.t.Helper()
	raw, err := json.Marshal(cmd)
	require.NoError(e.t, err)
	require.NoError(e.t, e.bus.Publish(context.Background(), protocol.ControlTopic(sessionID), raw))
}

// table is a scripted gateway for one session. It publishes action frames,
// consumes the events topic in order, and mirrors the hands it is dealt so
// it can keep making legal plays.
type table struct {
	t   *testing.T
	env *env
	sub bus.Subscription

	sessionID string
	seq       int
	hands     map[int][]protocol.Card

	// lastVersion checks that published versions never move backwards.
	lastVersion uint64
}

func newTable(t *testing.T, e *env, sessionID string) *table {
	t.Helper()
	sub, err := e.bus.Subscribe(context.Background(), protocol.EventsTopic(sessionID))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Unsubscribe() })

	return &table{
		t:         t,
		env:       e,
		sub:       sub,
		sessionID: sessionID,
		hands:     make(map[int][]protocol.Card),
	}
}

func seatPtr(id int) *int { return &id }

// send publishes one action frame and returns the envelope for redelivery
// scenarios.
func (tb *table) send(kind string, playerID *int, role protocol.Role, payload any) *protocol.Envelope {
	tb.t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(tb.t, err)
	tb.seq++
	env := &protocol.Envelope{
		Type:            kind,
		SessionID:       tb.sessionID,
		ActionID:        tb.actionID(tb.seq),
		PlayerID:        playerID,
		Role:            role,
		Timestamp:       time.Now().UTC(),
		ProtocolVersion: protocol.ProtocolVersion,
		Origin:          protocol.OriginGateway,
		Payload:         raw,
	}
	tb.resend(env)
	return env
}

func (tb *table) resend(env *protocol.Envelope) {
	tb.t.Helper()
	raw, err := env.Encode()
	require.NoError(tb.t, err)
	require.NoError(tb.t, tb.env.bus.Publish(context.Background(), protocol.ActionsTopic(tb.sessionID), raw))
}

func (tb *table) actionID(seq int) string {
	return fmt.Sprintf("%s-act-%03d", tb.sessionID, seq)
}

// expect consumes the next envelope and asserts its kind and that versions
// stay monotone. Unversioned frames, like the supervisor's game.ended, are
// exempt: version zero means none.
func (tb *table) expect(kind string) *protocol.Envelope {
	tb.t.Helper()
	select {
	case msg, ok := <-tb.sub.Messages():
		require.True(tb.t, ok, "events subscription closed")
		env, err := protocol.DecodeEnvelope(msg.Data)
		require.NoError(tb.t, err)
		require.Equal(tb.t, kind, env.Type, "unexpected event order")
		if env.Version != 0 {
			require.GreaterOrEqual(tb.t, env.Version, tb.lastVersion, "version went backwards")
			tb.lastVersion = env.Version
		}
		return env
	case <-time.After(2 * time.Second):
		tb.t.Fatalf("timed out waiting for %s", kind)
		return nil
	}
}

// expectOK consumes an action.result and asserts it succeeded.
func (tb *table) expectOK() protocol.ActionResultPayload {
	tb.t.Helper()
	env := tb.expect(protocol.EventActionResult)
	var p protocol.ActionResultPayload
	require.NoError(tb.t, env.DecodePayload(&p))
	require.Equal(tb.t, protocol.StatusOK, p.Status, "action rejected: %s (%s)", p.Reason, p.Code)
	return p
}

// join seats a player; on the deal it records every hand from the
// targeted hand.update events.
func (tb *table) join(seatID int, name string, deals bool) {
	tb.t.Helper()
	tb.send(protocol.ActionJoin, seatPtr(seatID), protocol.RolePlayer, protocol.JoinPayload{Name: name})
	tb.expectOK()
	tb.expect(protocol.EventPlayerJoin)

	if deals {
		tb.expect(protocol.EventPhaseChange)
		tb.readHands()
	}
}

// readHands consumes one hand.update per seat and mirrors the hands.
func (tb *table) readHands() {
	tb.t.Helper()
	seats := game.DefaultRules().Seats
	for i := 0; i < seats; i++ {
		env := tb.expect(protocol.EventHandUpdate)
		require.NotNil(tb.t, env.PlayerID, "hand updates are targeted")
		var p protocol.HandUpdatePayload
		require.NoError(tb.t, env.DecodePayload(&p))
		tb.hands[*env.PlayerID] = append([]protocol.Card(nil), p.Hand...)
	}
}

// bid places a bid or pass and asserts it was accepted.
func (tb *table) bid(seatID, amount int) {
	tb.t.Helper()
	tb.send(protocol.ActionBid, seatPtr(seatID), protocol.RolePlayer, protocol.BidPayload{Bid: amount})
	tb.expectOK()
}

// play puts the seat's leftmost card on the trick and mirrors the removal.
// It returns the card it played.
func (tb *table) play(seatID int) protocol.Card {
	tb.t.Helper()
	hand := tb.hands[seatID]
	require.NotEmpty(tb.t, hand, "seat %d has no cards left", seatID)
	card := hand[0]

	tb.send(protocol.ActionPlay, seatPtr(seatID), protocol.RolePlayer, protocol.PlayPayload{Card: card})
	tb.expectOK()
	tb.hands[seatID] = hand[1:]
	return card
}

// observerSync requests and returns the observer view of the session.
func (tb *table) observerSync() protocol.SyncPayload {
	tb.t.Helper()
	tb.send(protocol.ActionSync, nil, protocol.RoleObserver, nil)
	tb.expectOK()
	env := tb.expect(protocol.EventSync)
	require.Nil(tb.t, env.PlayerID, "observer views broadcast")
	var view protocol.SyncPayload
	require.NoError(tb.t, env.DecodePayload(&view))
	return view
}
