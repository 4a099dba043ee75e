package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"orphifund/storage"
)

// Manager provides typed, prefixed access to ledger state over a key-value
// database. Writes are staged in an overlay until Commit flushes them in one
// atomic batch; Reset discards the overlay. Entry points in the engine wrap
// every operation in a stage/commit cycle so failures leave no partial state.
type Manager struct {
	db    storage.Database
	dirty map[string][]byte
}

// NewManager creates a state manager over the given database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db, dirty: make(map[string][]byte)}
}

// Commit flushes all staged writes atomically.
func (m *Manager) Commit() error {
	if len(m.dirty) == 0 {
		return nil
	}
	if err := m.db.WriteBatch(m.dirty); err != nil {
		return err
	}
	m.dirty = make(map[string][]byte)
	return nil
}

// Reset discards all staged writes.
func (m *Manager) Reset() {
	if len(m.dirty) == 0 {
		return
	}
	m.dirty = make(map[string][]byte)
}

func (m *Manager) kvPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	m.dirty[string(key)] = encoded
	return nil
}

// kvGet decodes the stored value into out, reading through the overlay.
func (m *Manager) kvGet(key []byte, out interface{}) (bool, error) {
	encoded, ok := m.dirty[string(key)]
	if !ok {
		stored, found, err := m.db.Get(key)
		if err != nil {
			return false, err
		}
		if !found {
			return false, nil
		}
		encoded = stored
	}
	if err := rlp.DecodeBytes(encoded, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

func (m *Manager) kvGetUint64(key []byte) (uint64, error) {
	var value uint64
	found, err := m.kvGet(key, &value)
	if err != nil || !found {
		return 0, err
	}
	return value, nil
}

func (m *Manager) kvGetBool(key []byte) (bool, error) {
	var value bool
	found, err := m.kvGet(key, &value)
	if err != nil || !found {
		return false, err
	}
	return value, nil
}
