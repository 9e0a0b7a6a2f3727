package memory

import "idverifier/internal/ledger"

// journalEntry is a revertible ledger change.
type journalEntry interface {
	revert(h *Host)
}

// journal tracks the changes of one call for snapshot/revert.
type journal struct {
	entries []journalEntry
}

func (j *journal) append(e journalEntry) {
	j.entries = append(j.entries, e)
}

func (j *journal) snapshot() int {
	return len(j.entries)
}

func (j *journal) revertToSnapshot(idx int, h *Host) {
	for i := len(j.entries) - 1; i >= idx; i-- {
		j.entries[i].revert(h)
	}
	j.entries = j.entries[:idx]
}

type entryChange struct {
	key     ledger.Key
	prev    entry
	existed bool
}

func (c entryChange) revert(h *Host) {
	if !c.existed {
		delete(h.entries, c.key)
		return
	}
	h.entries[c.key] = c.prev
}
