package realtime

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Message is one pub/sub delivery.
type Message struct {
	Channel string
	Payload []byte
}

// Subscriber delivers messages published on channels matching pattern. The
// returned channel closes when ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context, pattern string) (<-chan Message, error)
}

type RedisSubscriber struct {
	client *redis.Client
}

func NewRedisSubscriber(client *redis.Client) *RedisSubscriber {
	return &RedisSubscriber{client: client}
}

func (s *RedisSubscriber) Subscribe(ctx context.Context, pattern string) (<-chan Message, error) {
	ps := s.client.PSubscribe(ctx, pattern)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	out := make(chan Message)
	go func() {
		defer close(out)
		defer ps.Close()

		in := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- Message{Channel: msg.Channel, Payload: []byte(msg.Payload)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
