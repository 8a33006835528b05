// Package notifications fans borrow lifecycle events out to Redis and to
// websocket subscribers.
package notifications

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"

	"github.com/Jayriel04/MCCAsset2.0/internal/models"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EventsChannel is the Redis channel carrying lending events.
const EventsChannel = "lending:events"

// Notifier publishes lending events. With Redis configured events go through
// EventsChannel so every instance's hub sees them; without Redis they are
// handed to the local sink directly.
type Notifier struct {
	rdb   *redis.Client
	local func(payload string)
}

// NewNotifier creates a Notifier. rdb and local may each be nil.
func NewNotifier(rdb *redis.Client, local func(payload string)) *Notifier {
	return &Notifier{rdb: rdb, local: local}
}

// Publish encodes event and delivers it.
func (n *Notifier) Publish(ctx context.Context, event models.LendingEvent) error {
	if n == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if n.rdb == nil {
		if n.local != nil {
			n.local(string(payload))
		}
		return nil
	}
	return n.rdb.Publish(ctx, EventsChannel, payload).Err()
}

// StartSubscriber subscribes to EventsChannel and calls onMessage for each
// payload until ctx is cancelled. It returns once the subscription is live.
func (n *Notifier) StartSubscriber(ctx context.Context, onMessage func(payload string)) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.Subscribe(ctx, EventsChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", EventsChannel, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in lending event subscriber: %v\n%s", r, debug.Stack())
						}
					}()
					onMessage(msg.Payload)
				}()
			}
		}
	}()

	return nil
}
