// Package rdb implements statedb.Table against Redis, subscribing to
// keyspace notifications the way the real application database notifies
// orchagent: a hash write to "<table>:<key>" publishes on
// "__keyspace@<db>__:<table>:<key>", and the subscriber re-reads the
// hash to learn the current field set. The "<table>:" prefix is
// stripped before the key reaches statedb.Notification — consumers
// work with bare row keys (a prefix string, a neighbor address) the
// same way regardless of which Table implementation feeds them.
package rdb

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"netorch/internal/logging"
	"netorch/internal/statedb"
)

// Table subscribes to Redis keyspace events for one named table and
// buffers them for Drain.
type Table struct {
	name     string
	priority int
	db       int
	client   *redis.Client
	logger   *slog.Logger

	ready chan struct{}

	mu      sync.Mutex
	pending []statedb.Notification
	closed  bool

	cancel context.CancelFunc
	done   chan struct{}
}

var _ statedb.Table = (*Table)(nil)

// New subscribes to keyspace notifications for table name on db, and
// starts a background goroutine folding them into a pending buffer
// until Close is called. Redis must have notify-keyspace-events
// configured with at least "Khgx" (keyspace events, hash commands,
// generic commands such as del, expired events) for this to receive
// every event it handles.
func New(ctx context.Context, client *redis.Client, db int, name string, priority int, logger *slog.Logger) (*Table, error) {
	logger = logging.Default(logger).With("component", "statedb.rdb", "table", name)

	pattern := fmt.Sprintf("__keyspace@%d__:%s:*", db, name)
	pubsub := client.PSubscribe(ctx, pattern)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("rdb: subscribe to %s: %w", pattern, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	t := &Table{
		name:     name,
		priority: priority,
		db:       db,
		client:   client,
		logger:   logger,
		ready:    make(chan struct{}, 1),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go t.run(runCtx, pubsub)
	return t, nil
}

func (t *Table) Name() string   { return t.name }
func (t *Table) Priority() int  { return t.priority }
func (t *Table) Ready() <-chan struct{} { return t.ready }

// run pumps pub/sub messages into the pending buffer until ctx is
// cancelled, re-reading the backing hash for each notified key.
func (t *Table) run(ctx context.Context, pubsub *redis.PubSub) {
	defer close(t.done)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			t.handleMessage(ctx, msg)
		}
	}
}

func (t *Table) handleMessage(ctx context.Context, msg *redis.Message) {
	rawKey, ok := strings.CutPrefix(msg.Channel, fmt.Sprintf("__keyspace@%d__:", t.db))
	if !ok {
		return
	}
	key, ok := strings.CutPrefix(rawKey, t.name+statedb.AppDBSeparator)
	if !ok {
		return
	}

	var notif statedb.Notification
	switch msg.Payload {
	case "del", "expired":
		notif = statedb.Notification{Key: key, Op: statedb.Del}
	case "hset", "hmset", "hdel":
		fields, err := t.client.HGetAll(ctx, rawKey).Result()
		if err != nil {
			t.logger.Warn("re-read hash after notification failed", "key", rawKey, "error", err)
			return
		}
		if len(fields) == 0 {
			notif = statedb.Notification{Key: key, Op: statedb.Del}
		} else {
			notif = statedb.Notification{Key: key, Op: statedb.Set, Fields: fields}
		}
	default:
		return
	}

	t.mu.Lock()
	t.pending = append(t.pending, notif)
	t.mu.Unlock()

	select {
	case t.ready <- struct{}{}:
	default:
	}
}

// Drain returns and clears the currently buffered notifications.
func (t *Table) Drain(_ context.Context) ([]statedb.Notification, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.pending
	t.pending = nil
	return out, nil
}

// Close stops the subscription goroutine and waits for it to exit.
func (t *Table) Close() error {
	t.cancel()
	<-t.done
	return nil
}
