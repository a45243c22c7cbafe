package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"metaquery/pkg/logger"
)

// InvalidationChannel is the NOTIFY channel announcing changed entities.
// The payload is an entity name, matched case-insensitively against the
// entities given to the Invalidator; an empty payload invalidates all of them.
const InvalidationChannel = "metaquery_changed"

// Invalidator listens for PostgreSQL NOTIFY events and bumps the cache
// generation of the named entity:
//
//	NOTIFY metaquery_changed, 'Category';
type Invalidator struct {
	pool     *pgxpool.Pool
	client   redis.UniversalClient
	prefix   string
	entities []string

	lifecycleMu sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
}

// NewInvalidator creates an invalidator for the given entities.
func NewInvalidator(pool *pgxpool.Pool, client redis.UniversalClient, prefix string, entities ...string) *Invalidator {
	if prefix == "" {
		prefix = DefaultConfig().Prefix
	}
	return &Invalidator{pool: pool, client: client, prefix: prefix, entities: entities}
}

// Start begins listening in the background.
func (i *Invalidator) Start(ctx context.Context) {
	i.lifecycleMu.Lock()
	defer i.lifecycleMu.Unlock()
	if i.started {
		return
	}
	i.ctx, i.cancel = context.WithCancel(ctx)
	i.started = true

	i.wg.Add(1)
	go i.listenLoop()
	logger.Info(i.ctx, "cache invalidator started", "channel", InvalidationChannel)
}

// Stop stops listening and waits for the listener to exit.
func (i *Invalidator) Stop() {
	i.lifecycleMu.Lock()
	if !i.started {
		i.lifecycleMu.Unlock()
		return
	}
	cancel := i.cancel
	i.started = false
	i.lifecycleMu.Unlock()

	cancel()
	i.wg.Wait()
	logger.Info(context.Background(), "cache invalidator stopped")
}

func (i *Invalidator) listenLoop() {
	defer i.wg.Done()

	for i.ctx.Err() == nil {
		conn, err := i.pool.Acquire(i.ctx)
		if err != nil {
			logger.Error(i.ctx, "failed to acquire connection for LISTEN", "error", err)
			i.sleep(time.Second)
			continue
		}

		if _, err := conn.Exec(i.ctx, "LISTEN "+pgx.Identifier{InvalidationChannel}.Sanitize()); err != nil {
			logger.Error(i.ctx, "failed to LISTEN", "error", err)
			conn.Release()
			i.sleep(time.Second)
			continue
		}

		i.waitForNotifications(conn)
		conn.Release()
	}
}

// waitForNotifications returns on shutdown or when the connection breaks.
func (i *Invalidator) waitForNotifications(conn *pgxpool.Conn) {
	for {
		// Bounded wait so shutdown is noticed.
		ctx, cancel := context.WithTimeout(i.ctx, 30*time.Second)
		n, err := conn.Conn().WaitForNotification(ctx)
		cancel()

		if err != nil {
			if i.ctx.Err() != nil {
				return
			}
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Warn(i.ctx, "LISTEN connection lost", "error", err)
			return
		}

		logger.Debug(i.ctx, "received notification", "channel", n.Channel, "payload", n.Payload)
		i.Handle(i.ctx, n.Payload)
	}
}

// Handle invalidates the entity named by payload.
func (i *Invalidator) Handle(ctx context.Context, payload string) {
	entities := i.entities
	if name := strings.TrimSpace(payload); name != "" {
		entity, ok := i.resolve(name)
		if !ok {
			logger.Warn(ctx, "notification names an unknown entity", "payload", payload)
			return
		}
		entities = []string{entity}
	}
	for _, entity := range entities {
		if err := Invalidate(ctx, i.client, i.prefix, entity); err != nil {
			logger.Error(ctx, "cache invalidation failed", "entity", entity, "error", err)
		}
	}
}

// resolve maps a payload to the entity name used in cache keys. Without a
// configured entity list the payload is taken as is.
func (i *Invalidator) resolve(name string) (string, bool) {
	if len(i.entities) == 0 {
		return name, true
	}
	for _, entity := range i.entities {
		if strings.EqualFold(entity, name) {
			return entity, true
		}
	}
	return "", false
}

func (i *Invalidator) sleep(d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-i.ctx.Done():
	case <-t.C:
	}
}
