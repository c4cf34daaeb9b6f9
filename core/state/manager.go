package state

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"

	"stableledger/storage"
)

var (
	// ErrNoTransaction is returned by writes issued outside Begin/Commit.
	ErrNoTransaction = errors.New("state: no active transaction")
	// ErrTransactionActive is returned when Begin is called twice.
	ErrTransactionActive = errors.New("state: transaction already active")
)

type staged struct {
	value   []byte
	deleted bool
}

// Manager layers a write buffer over the backing database. Every mutation is
// staged until Commit flushes the buffer as one storage batch; Discard drops it
// so an aborted operation leaves no trace.
type Manager struct {
	mu      sync.RWMutex
	db      storage.Database
	pending map[string]staged
	active  bool
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Begin opens a transaction.
func (m *Manager) Begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return ErrTransactionActive
	}
	m.pending = make(map[string]staged)
	m.active = true
	return nil
}

// Commit writes the staged changes atomically and closes the transaction.
func (m *Manager) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return ErrNoTransaction
	}
	batch := new(storage.Batch)
	keys := make([]string, 0, len(m.pending))
	for key := range m.pending {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		entry := m.pending[key]
		if entry.deleted {
			batch.Delete([]byte(key))
			continue
		}
		batch.Put([]byte(key), entry.value)
	}
	if err := m.db.Write(batch); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	m.pending = nil
	m.active = false
	return nil
}

// Discard drops the staged changes. It is safe to call without an open
// transaction.
func (m *Manager) Discard() {
	m.mu.Lock()
	m.pending = nil
	m.active = false
	m.mu.Unlock()
}

// InTransaction reports whether Begin has been called without a matching
// Commit or Discard.
func (m *Manager) InTransaction() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

func (m *Manager) stage(key []byte, entry staged) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return ErrNoTransaction
	}
	m.pending[string(key)] = entry
	return nil
}

func (m *Manager) read(key []byte) ([]byte, error) {
	m.mu.RLock()
	if m.active {
		if entry, ok := m.pending[string(key)]; ok {
			m.mu.RUnlock()
			if entry.deleted {
				return nil, nil
			}
			return entry.value, nil
		}
	}
	m.mu.RUnlock()
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return data, err
}

// KVPut stores the provided value under the supplied key using RLP encoding.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.stage(key, staged{value: encoded})
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed. Staged writes of the open transaction are visible.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.read(key)
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the key.
func (m *Manager) KVDelete(key []byte) error {
	return m.stage(key, staged{deleted: true})
}

// KVKeys lists the keys under prefix in ascending order, merging the staged
// writes of the open transaction with the committed database contents.
func (m *Manager) KVKeys(prefix []byte) ([][]byte, error) {
	committed, err := m.db.Keys(prefix)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(committed))
	for _, key := range committed {
		set[string(key)] = struct{}{}
	}
	m.mu.RLock()
	if m.active {
		for key, entry := range m.pending {
			if !bytes.HasPrefix([]byte(key), prefix) {
				continue
			}
			if entry.deleted {
				delete(set, key)
				continue
			}
			set[key] = struct{}{}
		}
	}
	m.mu.RUnlock()
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([][]byte, 0, len(keys))
	for _, key := range keys {
		out = append(out, []byte(key))
	}
	return out, nil
}
