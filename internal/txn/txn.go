// Package txn provides the deferred-delete accumulator index operations
// write into: pages a B+Tree operation determines are no longer needed
// (a merged leaf, a collapsed root) are recorded here instead of deleted
// immediately, so the caller can free them once it's done walking pages
// that might still reference them. Grounded on the teacher's
// transaction_manager/structs.go, stripped down to just the delete-set
// concern the B+Tree needs — this engine has no locking or commit log.
package txn

// Transaction accumulates page ids one traversal decided to retire.
type Transaction struct {
	deleted map[int64]struct{}
}

// New returns an empty Transaction.
func New() *Transaction {
	return &Transaction{deleted: make(map[int64]struct{})}
}

// AddDeletedPage marks pageID for deletion once the transaction ends.
func (t *Transaction) AddDeletedPage(pageID int64) {
	t.deleted[pageID] = struct{}{}
}

// DeletedPageSet returns every page id marked for deletion so far.
func (t *Transaction) DeletedPageSet() []int64 {
	ids := make([]int64, 0, len(t.deleted))
	for id := range t.deleted {
		ids = append(ids, id)
	}
	return ids
}

// Clear empties the delete set, e.g. after the caller has freed every
// page in it through the buffer pool.
func (t *Transaction) Clear() {
	t.deleted = make(map[int64]struct{})
}
