// Package registry provides contract registry implementations.
package registry

import (
	"sync"

	"github.com/fd1az/chainsync/business/nodeconn/domain"
	"github.com/fd1az/chainsync/internal/apperror"
)

// InMemory is a thread-safe name-to-handle registry.
type InMemory struct {
	mu      sync.RWMutex
	entries map[string]domain.ContractHandle
}

// NewInMemory returns an empty registry.
func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[string]domain.ContractHandle)}
}

// NewInMemoryFrom returns a registry populated with handles.
func NewInMemoryFrom(handles []domain.ContractHandle) *InMemory {
	r := NewInMemory()
	for _, h := range handles {
		r.entries[h.Name] = h
	}
	return r
}

// Register adds or replaces the handle for its name.
func (r *InMemory) Register(handle domain.ContractHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[handle.Name] = handle
}

// Resolve returns the handle for name, or UNKNOWN_CONTRACT.
func (r *InMemory) Resolve(name string) (domain.ContractHandle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handle, ok := r.entries[name]
	if !ok {
		return domain.ContractHandle{}, apperror.New(apperror.CodeUnknownContract,
			apperror.WithContext(name))
	}
	return handle, nil
}

// Len returns the number of registered contracts.
func (r *InMemory) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
