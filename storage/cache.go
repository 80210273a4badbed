package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"agenda-view/domain"
)

type backend interface {
	ListTasks(ctx context.Context) ([]domain.Task, error)
	GetTask(ctx context.Context, id domain.TaskID) (domain.Task, error)
	CreateTask(ctx context.Context, draft domain.Draft) (domain.Task, error)
	UpdateTask(ctx context.Context, id domain.TaskID, record domain.Task) (domain.Task, error)
	DeleteTask(ctx context.Context, id domain.TaskID) error
}

// Cache serves task listings for one scope (typically a user) from Redis and
// drops the cached listing whenever a mutation is attempted through it.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
	scope string
	log   *log.Logger
}

// NewCache wraps base. A nil client or zero TTL disables caching.
func NewCache(base backend, client *redis.Client, ttl time.Duration, scope string, logger *log.Logger) *Cache {
	if base == nil {
		panic("storage.NewCache: base repository is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Cache{base: base, redis: client, ttl: ttl, scope: scope, log: logger}
}

func (c *Cache) ListTasks(ctx context.Context) ([]domain.Task, error) {
	if tasks, ok := c.loadTasks(ctx); ok {
		return tasks, nil
	}
	tasks, err := c.base.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	c.storeTasks(ctx, tasks)
	return tasks, nil
}

func (c *Cache) GetTask(ctx context.Context, id domain.TaskID) (domain.Task, error) {
	return c.base.GetTask(ctx, id)
}

func (c *Cache) CreateTask(ctx context.Context, draft domain.Draft) (domain.Task, error) {
	defer c.evict(ctx)
	return c.base.CreateTask(ctx, draft)
}

func (c *Cache) UpdateTask(ctx context.Context, id domain.TaskID, record domain.Task) (domain.Task, error) {
	defer c.evict(ctx)
	return c.base.UpdateTask(ctx, id, record)
}

// DeleteTask evicts even when the call fails: a request that timed out may
// still have been applied by the service.
func (c *Cache) DeleteTask(ctx context.Context, id domain.TaskID) error {
	defer c.evict(ctx)
	return c.base.DeleteTask(ctx, id)
}

func (c *Cache) loadTasks(ctx context.Context) ([]domain.Task, bool) {
	if !c.enabled() {
		return nil, false
	}
	key := tasksCacheKey(c.scope)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.WithError(err).WithField("key", key).Warn("tasks cache read failed")
			_ = c.redis.Del(ctx, key).Err()
		}
		return nil, false
	}
	var tasks []domain.Task
	if err := sonic.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return nil, false
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return tasks, true
}

func (c *Cache) storeTasks(ctx context.Context, tasks []domain.Task) {
	if !c.enabled() {
		return
	}
	data, err := sonic.Marshal(tasks)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, tasksCacheKey(c.scope), data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context) {
	if c.redis == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := c.redis.Del(ctx, tasksCacheKey(c.scope)).Err(); err != nil {
		c.log.WithError(err).WithField("scope", c.scope).Warn("tasks cache evict failed")
	}
}

func (c *Cache) enabled() bool {
	return c.redis != nil && c.ttl > 0
}

func tasksCacheKey(scope string) string {
	return "tasks:" + scope
}
