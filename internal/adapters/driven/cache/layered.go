package cache

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/xingh/docsray-mcp-sub001/internal/core/domain"
	"github.com/xingh/docsray-mcp-sub001/internal/core/ports/driven"
	"github.com/xingh/docsray-mcp-sub001/internal/logger"
)

// shardCount sizes the key-sharded lock table. Operations on the same key
// serialise on one shard; distinct keys almost never contend.
const shardCount = 64

// Ensure Layered implements the driven port.
var _ driven.ResultCache = (*Layered)(nil)

// Layered is the composed result cache: a read-through memory layer over an
// optional disk layer, with write-through on Put. Disk failures degrade to
// cache-miss behaviour; the cache never fails a request.
type Layered struct {
	mem   *Memory
	disk  *Disk // nil when persistence is disabled
	locks [shardCount]sync.Mutex
	log   logger.Logger
}

// NewLayered composes the cache layers. disk may be nil.
func NewLayered(mem *Memory, disk *Disk, log logger.Logger) *Layered {
	return &Layered{mem: mem, disk: disk, log: log}
}

// Get implements driven.ResultCache.
func (c *Layered) Get(_ context.Context, key driven.CacheKey) (*domain.Result, bool) {
	lock := c.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	if result, ok := c.mem.Get(key); ok {
		return result, true
	}
	if c.disk == nil {
		return nil, false
	}

	result, expiresAt, ok, err := c.disk.Get(key)
	if err != nil {
		c.log.Warn("disk cache read failed, treating as miss",
			logger.String("provider", key.Provider), logger.Err(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	// Re-populate the memory layer with the original deadline intact.
	c.mem.PutUntil(key, result, expiresAt)
	return result, true
}

// Put implements driven.ResultCache. The disk layer is written first as the
// source of truth; its failure is logged and the memory layer still updated
// so at least the running process benefits.
func (c *Layered) Put(_ context.Context, key driven.CacheKey, result *domain.Result, ttl time.Duration) error {
	lock := c.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	if c.disk != nil {
		if err := c.disk.Put(key, result, ttl); err != nil {
			c.log.Warn("disk cache write failed",
				logger.String("provider", key.Provider), logger.Err(err))
		}
	}
	c.mem.Put(key, result, ttl)
	return nil
}

// Invalidate implements driven.ResultCache. All shards are held so the
// removal appears atomic against concurrent per-key operations.
func (c *Layered) Invalidate(_ context.Context, identity domain.Identity) error {
	c.lockAll()
	defer c.unlockAll()

	c.mem.Invalidate(identity)
	if c.disk != nil {
		if err := c.disk.Invalidate(identity); err != nil {
			return err
		}
	}
	return nil
}

// Clear implements driven.ResultCache.
func (c *Layered) Clear(_ context.Context) error {
	c.lockAll()
	defer c.unlockAll()

	c.mem.Clear()
	if c.disk != nil {
		if err := c.disk.Clear(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Layered) lockFor(key driven.CacheKey) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key.String()))
	return &c.locks[h.Sum32()%shardCount]
}

func (c *Layered) lockAll() {
	for i := range c.locks {
		c.locks[i].Lock()
	}
}

func (c *Layered) unlockAll() {
	for i := range c.locks {
		c.locks[i].Unlock()
	}
}
