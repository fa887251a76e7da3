// Package state provides an in-memory world state for driving the GenVM
// host without a blockchain node behind it: unit tests, the developer CLI,
// and any embedder that wants a scratch state.
package state

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MemoryState implements the host's StateProxy callbacks on top of plain
// maps. Storage is laid out per account and per 32-byte slot as a growable
// byte buffer addressed by (index, length); reads past the written extent
// observe zeroes, mirroring fresh trie storage.
//
// Gas values are ferried through untouched: metering policy belongs to the
// layers above.
type MemoryState struct {
	// mu protects both maps; the dispatch loop is single-threaded but the
	// CLI and tests may seed state while no run is in flight.
	mu      sync.Mutex
	code    map[common.Address][]byte
	storage map[common.Address]map[common.Hash][]byte
}

func NewMemoryState() *MemoryState {
	return &MemoryState{
		code:    make(map[common.Address][]byte),
		storage: make(map[common.Address]map[common.Hash][]byte),
	}
}

// SetCode installs contract code at addr. The slice is copied.
func (m *MemoryState) SetCode(addr common.Address, code []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.code[addr] = append([]byte(nil), code...)
}

// GetCode returns a copy of the code at addr; accounts without code yield
// an empty slice.
func (m *MemoryState) GetCode(addr common.Address) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.code[addr]...), nil
}

// StorageRead returns exactly le bytes of the slot buffer starting at
// index, zero-filled past the written extent.
func (m *MemoryState) StorageRead(gasBefore uint64, account common.Address, slot common.Hash, index uint32, le uint32) ([]byte, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, le)
	if buf, ok := m.storage[account][slot]; ok && int(index) < len(buf) {
		copy(out, buf[index:])
	}
	return out, gasBefore, nil
}

// StorageWrite stores got at index within the slot buffer, growing it as
// needed.
func (m *MemoryState) StorageWrite(gasBefore uint64, account common.Address, slot common.Hash, index uint32, got []byte) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	slots, ok := m.storage[account]
	if !ok {
		slots = make(map[common.Hash][]byte)
		m.storage[account] = slots
	}
	buf := slots[slot]
	if need := int(index) + len(got); need > len(buf) {
		grown := make([]byte, need)
		copy(grown, buf)
		buf = grown
	}
	copy(buf[index:], got)
	slots[slot] = buf
	return gasBefore, nil
}
