package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xingh/docsray-mcp-sub001/internal/core/domain"
	"github.com/xingh/docsray-mcp-sub001/internal/core/ports/driven"
)

// Disk is the persistent cache layer: one directory per document identity,
// one JSON file per (operation, provider, params) entry. It exists for
// providers whose invocations are expensive or metered, so results survive
// process restarts.
type Disk struct {
	root string
	now  func() time.Time
}

// diskEntry is the on-disk representation of a cache entry.
type diskEntry struct {
	Result    domain.Result `json:"result"`
	CreatedAt time.Time     `json:"created_at"`
	TTL       time.Duration `json:"ttl"`
}

// NewDisk creates the disk layer rooted at dir, creating it if needed.
func NewDisk(dir string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Disk{root: dir, now: time.Now}, nil
}

// Get reads an entry. Returns ok=false on absence or expiry (expired files
// are removed). Corrupt files are treated as absent and removed; I/O errors
// are returned so the caller can log and degrade to a miss.
func (d *Disk) Get(key driven.CacheKey) (*domain.Result, time.Time, bool, error) {
	path := d.entryPath(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, time.Time{}, false, nil
		}
		return nil, time.Time{}, false, fmt.Errorf("read cache entry: %w", err)
	}

	var entry diskEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		// Corrupt entry: drop it and treat as a miss.
		os.Remove(path)
		return nil, time.Time{}, false, nil
	}

	expiresAt := entry.CreatedAt.Add(entry.TTL)
	if d.now().After(expiresAt) {
		os.Remove(path)
		return nil, time.Time{}, false, nil
	}
	return &entry.Result, expiresAt, true, nil
}

// Put writes an entry atomically (temp file + rename), so a crashed or
// cancelled writer never leaves a partial entry visible.
func (d *Disk) Put(key driven.CacheKey, result *domain.Result, ttl time.Duration) error {
	dir := filepath.Join(d.root, string(key.Identity))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create entry dir: %w", err)
	}

	entry := diskEntry{Result: *result, CreatedAt: d.now(), TTL: ttl}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".entry-*")
	if err != nil {
		return fmt.Errorf("create temp entry: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), d.entryPath(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("commit cache entry: %w", err)
	}
	return nil
}

// Invalidate removes the document's entire entry directory.
func (d *Disk) Invalidate(identity domain.Identity) error {
	return os.RemoveAll(filepath.Join(d.root, string(identity)))
}

// Clear removes every entry directory under the root.
func (d *Disk) Clear() error {
	dirs, err := os.ReadDir(d.root)
	if err != nil {
		return fmt.Errorf("list cache root: %w", err)
	}
	for _, dir := range dirs {
		if err := os.RemoveAll(filepath.Join(d.root, dir.Name())); err != nil {
			return fmt.Errorf("remove cache dir: %w", err)
		}
	}
	return nil
}

// entryPath maps a key to its file: <root>/<identity>/<op>-<provider>-<hash>.json.
// Params are hashed since they are unbounded and not filesystem-safe.
func (d *Disk) entryPath(key driven.CacheKey) string {
	sum := sha256.Sum256([]byte(key.Params))
	name := fmt.Sprintf("%s-%s-%s.json", key.Operation, key.Provider, hex.EncodeToString(sum[:6]))
	return filepath.Join(d.root, string(key.Identity), name)
}
