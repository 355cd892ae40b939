package lockable

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Directory stores registries by address.
type Directory struct {
	mu         sync.RWMutex
	registries map[common.Address]TokenRegistry
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{registries: make(map[common.Address]TokenRegistry)}
}

// Register adds reg under its own address.
func (d *Directory) Register(reg TokenRegistry) error {
	if reg == nil {
		return fmt.Errorf("%w: nil registry", ErrUnknownRegistry)
	}
	addr := reg.Address()
	if addr == (common.Address{}) {
		return ErrZeroAddress
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.registries[addr]; ok {
		return fmt.Errorf("%w: %s", ErrRegistryExists, addr.Hex())
	}
	d.registries[addr] = reg
	return nil
}

// Resolve returns the registry at addr.
func (d *Directory) Resolve(addr common.Address) (TokenRegistry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	reg, ok := d.registries[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRegistry, addr.Hex())
	}
	return reg, nil
}

// Addresses returns every registered address in ascending byte order.
func (d *Directory) Addresses() []common.Address {
	d.mu.RLock()
	defer d.mu.RUnlock()
	list := make([]common.Address, 0, len(d.registries))
	for addr := range d.registries {
		list = append(list, addr)
	}
	sort.Slice(list, func(i, j int) bool {
		return bytes.Compare(list[i][:], list[j][:]) < 0
	})
	return list
}

var _ Resolver = (*Directory)(nil)
