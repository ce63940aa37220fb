// Package catalog manages the store's single header page (page id 0):
// a flat directory mapping index names to their root page id, so a
// process reopening the store can find its trees again. Binary layout
// follows the same fixed-header-plus-length-prefixed-records convention
// the teacher's bplustree serialization uses
// (storage_engine/access/indexfile_manager/bplustree/node_to_index_page.go),
// scaled down to one record shape instead of leaf/internal variants.
package catalog

import (
	"encoding/binary"
	"fmt"

	"corestore/internal/buffer"
	"corestore/internal/types"
)

// Header layout (types.PageSize bytes):
//
//	numRecords uint16                          (2 bytes)
//	numRecords x [ nameLen uint16 | name []byte | rootPageID int64 ]
const (
	headerCountOffset = 0
	headerBodyOffset  = 2
	maxNameLen        = 255
)

// Header is an in-memory mirror of the header page's directory, synced
// to the buffer pool on every mutation.
type Header struct {
	pool    *buffer.PoolManager
	records map[string]int64
}

// Load fetches the header page and decodes its directory. If the store
// was just created the page reads back as all zero, which decodes to
// an empty directory.
func Load(pool *buffer.PoolManager) (*Header, error) {
	pg, err := pool.FetchPage(types.HeaderPageID)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to fetch header page: %w", err)
	}
	defer pool.UnpinPage(types.HeaderPageID, false)

	pg.RLock()
	records, err := decode(pg.Data)
	pg.RUnlock()
	if err != nil {
		return nil, err
	}

	return &Header{pool: pool, records: records}, nil
}

func decode(data []byte) (map[string]int64, error) {
	records := make(map[string]int64)
	count := binary.LittleEndian.Uint16(data[headerCountOffset:])
	offset := headerBodyOffset
	for i := uint16(0); i < count; i++ {
		if offset+2 > len(data) {
			return nil, fmt.Errorf("catalog: corrupt header page (truncated record %d)", i)
		}
		nameLen := int(binary.LittleEndian.Uint16(data[offset:]))
		offset += 2
		if offset+nameLen+8 > len(data) {
			return nil, fmt.Errorf("catalog: corrupt header page (record %d overruns page)", i)
		}
		name := string(data[offset : offset+nameLen])
		offset += nameLen
		rootPageID := int64(binary.LittleEndian.Uint64(data[offset:]))
		offset += 8
		records[name] = rootPageID
	}
	return records, nil
}

func encode(records map[string]int64, data []byte) error {
	for i := range data {
		data[i] = 0
	}
	binary.LittleEndian.PutUint16(data[headerCountOffset:], uint16(len(records)))
	offset := headerBodyOffset
	for name, rootPageID := range records {
		if len(name) > maxNameLen {
			return fmt.Errorf("catalog: index name %q exceeds %d bytes", name, maxNameLen)
		}
		if offset+2+len(name)+8 > len(data) {
			return fmt.Errorf("catalog: header page full, cannot add %q", name)
		}
		binary.LittleEndian.PutUint16(data[offset:], uint16(len(name)))
		offset += 2
		copy(data[offset:], name)
		offset += len(name)
		binary.LittleEndian.PutUint64(data[offset:], uint64(rootPageID))
		offset += 8
	}
	return nil
}

func (h *Header) flush() error {
	pg, err := h.pool.FetchPage(types.HeaderPageID)
	if err != nil {
		return fmt.Errorf("catalog: failed to fetch header page: %w", err)
	}
	defer h.pool.UnpinPage(types.HeaderPageID, true)

	pg.Lock()
	err = encode(h.records, pg.Data)
	pg.Unlock()
	return err
}

// FindRecord looks up an index's root page id.
func (h *Header) FindRecord(name string) (int64, bool) {
	id, ok := h.records[name]
	return id, ok
}

// InsertRecord adds a brand-new index directory entry.
func (h *Header) InsertRecord(name string, rootPageID int64) error {
	if _, exists := h.records[name]; exists {
		return fmt.Errorf("catalog: index %q already exists", name)
	}
	h.records[name] = rootPageID
	return h.flush()
}

// UpdateRecord repoints an existing index's root page id, e.g. after a
// root split or a root collapse.
func (h *Header) UpdateRecord(name string, rootPageID int64) error {
	if _, exists := h.records[name]; !exists {
		return fmt.Errorf("catalog: index %q does not exist", name)
	}
	h.records[name] = rootPageID
	return h.flush()
}

// Names lists every registered index.
func (h *Header) Names() []string {
	names := make([]string, 0, len(h.records))
	for name := range h.records {
		names = append(names, name)
	}
	return names
}
