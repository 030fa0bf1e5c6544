package driver

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"riptide/internal/analyze"
)

// Current schema version - increment when CachePayload format changes.
const cacheSchemaVersion uint16 = 1

// Digest keys cache entries by unit content.
type Digest [sha256.Size]byte

// DigestBytes hashes a serialized unit.
func DigestBytes(data []byte) Digest {
	return sha256.Sum256(data)
}

// CachePayload stores the reusable summary of a whole-program
// analysis: enough to skip re-analysis of an unchanged unit and to
// report statistics without one.
type CachePayload struct {
	Schema uint16

	Passes             int
	FoldedCalls        int
	StrengthReductions int

	// Converged per-function return types, rendered; keyed by
	// qualified function name.
	ReturnTypes map[string]string
}

// NewCachePayload summarizes a finished analysis.
func NewCachePayload(pa *analyze.ProgramAnalysis) *CachePayload {
	p := &CachePayload{
		Schema:             cacheSchemaVersion,
		Passes:             pa.Passes,
		FoldedCalls:        pa.FoldedCalls,
		StrengthReductions: pa.StrengthReductions,
		ReturnTypes:        make(map[string]string, len(pa.Funcs)),
	}
	for name, res := range pa.Funcs {
		p.ReturnTypes[name] = res.ReturnType.String()
	}
	return p
}

// Cache stores analysis artifacts keyed by unit digest on disk.
// Thread-safe for concurrent access.
type Cache struct {
	mu  sync.RWMutex
	dir string
}

// OpenCache initializes and returns a disk cache at the standard
// location.
func OpenCache(app string) (*Cache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, app)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir}, nil
}

func (c *Cache) pathFor(key Digest) string {
	hexKey := hex.EncodeToString(key[:])
	return filepath.Join(c.dir, "units", hexKey+".mp")
}

// Put serializes and writes a payload to the disk cache.
func (c *Cache) Put(key Digest, payload *CachePayload) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
		_ = os.Remove(f.Name())
	}()

	data, err := msgpack.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}

// Get reads a payload from the disk cache; ok is false on a miss or a
// schema mismatch.
func (c *Cache) Get(key Digest) (*CachePayload, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.pathFor(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var payload CachePayload
	if err := msgpack.Unmarshal(data, &payload); err != nil {
		// A corrupt entry is a miss, not a failure.
		return nil, false, nil
	}
	if payload.Schema != cacheSchemaVersion {
		return nil, false, nil
	}
	return &payload, true, nil
}
