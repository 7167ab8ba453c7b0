// Package redistest provides an in-memory stand-in for the redis client.
package redistest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/homedoc-backend/pkg/redis"
)

var (
	_ redis.Claimer     = (*Memory)(nil)
	_ redis.ReplayStore = (*Memory)(nil)
	_ redis.Locker      = (*Memory)(nil)
)

// Memory implements redis.Claimer, redis.ReplayStore and redis.Locker. TTLs
// are recorded but never expire.
type Memory struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
	// Err, when set, fails every call.
	Err error
}

func New() *Memory {
	return &Memory{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *Memory) Claim(_ context.Context, scope, id string, ttl time.Duration) (bool, error) {
	return m.setNX("claim:"+scope+":"+id, time.Now().UTC().Format(time.RFC3339), ttl)
}

func (m *Memory) Unclaim(_ context.Context, scope, id string) error {
	return m.del("claim:" + scope + ":" + id)
}

func (m *Memory) LoadReplay(_ context.Context, scope, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", false, m.Err
	}
	v, ok := m.data["replay:"+scope+":"+key]
	return v, ok, nil
}

func (m *Memory) SaveReplay(_ context.Context, scope, key, record string, ttl time.Duration) error {
	_, err := m.setNX("replay:"+scope+":"+key, record, ttl)
	return err
}

func (m *Memory) TryLock(_ context.Context, name, owner string, ttl time.Duration) (bool, error) {
	return m.setNX("lock:"+name, owner, ttl)
}

func (m *Memory) Unlock(_ context.Context, name, owner string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	k := "lock:" + name
	if m.data[k] != owner {
		return false, nil
	}
	delete(m.data, k)
	return true, nil
}

// Set overwrites a raw key such as "lock:cron-worker:local".
func (m *Memory) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

// Value returns a raw key and whether it exists.
func (m *Memory) Value(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

// TTL returns the ttl a key was written with.
func (m *Memory) TTL(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ttls[key]
}

// Keys lists the keys that start with prefix.
func (m *Memory) Keys(prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Count returns how many keys start with prefix.
func (m *Memory) Count(prefix string) int {
	return len(m.Keys(prefix))
}

func (m *Memory) setNX(key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return true, nil
}

func (m *Memory) del(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	delete(m.data, key)
	delete(m.ttls, key)
	return nil
}
