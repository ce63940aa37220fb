// Package page defines the in-memory representation of a buffered page:
// a fixed-size byte buffer plus the metadata the buffer pool needs to
// track pin counts and dirtiness. The buffer pool exclusively owns page
// memory; every other layer borrows a *Page through Fetch/Unpin.
package page

import (
	"sync"

	"corestore/internal/types"
)

// Page is a fixed-size slot's contents plus its bookkeeping. Content
// interpretation (header page, B+Tree leaf/internal) is layered on top
// of Data by the owning package — see internal/catalog and
// internal/bplustree — Page itself only enforces the pin-count/dirty-bit
// contract the buffer pool manager relies on.
type Page struct {
	ID       int64
	Data     []byte
	IsDirty  bool
	PinCount int32
	PageType types.PageType

	mu sync.RWMutex
}

// New allocates a zeroed page of the fixed page size for the given id.
func New(id int64) *Page {
	return &Page{
		ID:   id,
		Data: make([]byte, types.PageSize),
	}
}

func (p *Page) Lock()    { p.mu.Lock() }
func (p *Page) Unlock()  { p.mu.Unlock() }
func (p *Page) RLock()   { p.mu.RLock() }
func (p *Page) RUnlock() { p.mu.RUnlock() }

// Reset clears a page's memory and metadata back to a blank slot,
// keeping the underlying Data slice (and its capacity) for reuse — the
// same "clear in place, don't reallocate" convention the buffer pool
// relies on for every eviction.
func (p *Page) Reset() {
	p.ID = types.InvalidPageID
	p.IsDirty = false
	p.PinCount = 0
	p.PageType = types.PageTypeUnknown
	for i := range p.Data {
		p.Data[i] = 0
	}
}
