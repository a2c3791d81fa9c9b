package bus

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisConfig describes how the Redis bus connects. A pre-built client
// takes precedence over the connection fields.
type RedisConfig struct {
	Client   redis.UniversalClient
	Addr     string
	Username string
	Password string
	DB       int
}

// Redis is a Bus on top of Redis Pub/Sub. Patterns with a wildcard map to
// PSUBSCRIBE, plain topics to SUBSCRIBE.
type Redis struct {
	client    redis.UniversalClient
	ownClient bool
}

// NewRedis connects (unless a client is supplied) and verifies the server
// is reachable.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	client := cfg.Client
	own := false
	if client == nil {
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		own = true
	}

	if err := client.Ping(ctx).Err(); err != nil {
		if own {
			client.Close()
		}
		return nil, err
	}
	return &Redis{client: client, ownClient: own}, nil
}

func (r *Redis) Publish(ctx context.Context, topic string, data []byte) error {
	return r.client.Publish(ctx, topic, data).Err()
}

func (r *Redis) Subscribe(ctx context.Context, pattern string) (Subscription, error) {
	var pubsub *redis.PubSub
	if strings.Contains(pattern, "*") {
		pubsub = r.client.PSubscribe(ctx, pattern)
	} else {
		pubsub = r.client.Subscribe(ctx, pattern)
	}

	// Force the subscription onto the wire before returning, so a publish
	// issued right after Subscribe cannot slip past it.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	sub := &redisSub{pubsub: pubsub, ch: make(chan Message, subscriberBuffer)}
	go sub.forward()
	return sub, nil
}

func (r *Redis) Close() error {
	if r.ownClient {
		return r.client.Close()
	}
	return nil
}

type redisSub struct {
	pubsub *redis.PubSub
	ch     chan Message
}

func (s *redisSub) Messages() <-chan Message { return s.ch }

func (s *redisSub) Unsubscribe() error {
	// Closing the PubSub ends forward's range, which closes s.ch.
	return s.pubsub.Close()
}

func (s *redisSub) forward() {
	defer close(s.ch)
	for msg := range s.pubsub.Channel() {
		s.ch <- Message{Topic: msg.Channel, Data: []byte(msg.Payload)}
	}
}
