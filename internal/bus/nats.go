package bus

import (
	"context"

	"github.com/nats-io/nats.go"
)

// NATSConfig describes how the NATS bus connects. A pre-built connection
// takes precedence over the URL.
type NATSConfig struct {
	Conn *nats.Conn
	URL  string
}

// NATS is a Bus on top of core NATS subjects. The dot-separated topic
// grammar and its "*" wildcard are native here, so patterns pass through
// unchanged.
type NATS struct {
	conn     *nats.Conn
	ownsConn bool
}

// NewNATS connects (unless a connection is supplied).
func NewNATS(cfg NATSConfig) (*NATS, error) {
	conn := cfg.Conn
	own := false
	if conn == nil {
		url := cfg.URL
		if url == "" {
			url = nats.DefaultURL
		}
		c, err := nats.Connect(url)
		if err != nil {
			return nil, err
		}
		conn = c
		own = true
	}
	return &NATS{conn: conn, ownsConn: own}, nil
}

func (n *NATS) Publish(_ context.Context, topic string, data []byte) error {
	return n.conn.Publish(topic, data)
}

func (n *NATS) Subscribe(_ context.Context, pattern string) (Subscription, error) {
	raw := make(chan *nats.Msg, subscriberBuffer)
	natsSubscription, err := n.conn.ChanSubscribe(pattern, raw)
	if err != nil {
		return nil, err
	}

	// Force the subscription onto the wire before returning, so a publish
	// issued right after Subscribe cannot slip past it.
	if err := n.conn.Flush(); err != nil {
		natsSubscription.Unsubscribe()
		close(raw)
		return nil, err
	}

	sub := &natsSub{sub: natsSubscription, raw: raw, ch: make(chan Message, subscriberBuffer)}
	go sub.forward()
	return sub, nil
}

func (n *NATS) Close() error {
	if n.ownsConn {
		n.conn.Close()
	}
	return nil
}

type natsSub struct {
	sub *nats.Subscription
	raw chan *nats.Msg
	ch  chan Message
}

func (s *natsSub) Messages() <-chan Message { return s.ch }

func (s *natsSub) Unsubscribe() error {
	err := s.sub.Unsubscribe()
	// Ending the delivery channel ends forward, which closes s.ch.
	close(s.raw)
	return err
}

func (s *natsSub) forward() {
	defer close(s.ch)
	for msg := range s.raw {
		s.ch <- Message{Topic: msg.Subject, Data: msg.Data}
	}
}
