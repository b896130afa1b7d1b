// Package dedup remembers content hashes of completed files for one job.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"
)

// HashFile returns the hex sha256 of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// MemoryRegistry keeps the hashes seen by a job in memory.
type MemoryRegistry struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{seen: make(map[string]struct{})}
}

func (r *MemoryRegistry) RegisterHash(path string) (bool, error) {
	sum, err := HashFile(path)
	if err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[sum]; ok {
		return false, nil
	}
	r.seen[sum] = struct{}{}
	return true, nil
}

func (r *MemoryRegistry) UnregisterHash(path string) error {
	sum, err := HashFile(path)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.seen, sum)
	return nil
}
