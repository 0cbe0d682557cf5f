// internal/medication/feed.go
package medication

import (
	"context"
	"encoding/json"

	"medreminder/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

const changeFeedChannel = "medications:changes"

// RedisFeed carries medication change events over Redis pub/sub so every
// running scheduler instance sees writes made by any of them.
type RedisFeed struct {
	client *redis.Client
	logger logger.Logger
}

func NewRedisFeed(client *redis.Client, log logger.Logger) *RedisFeed {
	return &RedisFeed{
		client: client,
		logger: log.WithFields(map[string]interface{}{"component": "change-feed"}),
	}
}

func (f *RedisFeed) Publish(ctx context.Context, ev ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return f.client.Publish(ctx, changeFeedChannel, payload).Err()
}

// Subscribe returns a channel of change events. The channel closes when
// ctx is cancelled or the underlying subscription drops.
func (f *RedisFeed) Subscribe(ctx context.Context) (<-chan ChangeEvent, error) {
	sub := f.client.Subscribe(ctx, changeFeedChannel)

	// Force the subscription to be established before returning.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, err
	}

	out := make(chan ChangeEvent)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					f.logger.Warn("dropping malformed change event", map[string]interface{}{
						"error": err.Error(),
					})
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
