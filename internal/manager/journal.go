package manager

import (
	"context"
	"fmt"

	"streamhub/internal/logging"
)

// appendJournalLocked records one mutation for the next sync pass. Caller
// holds m.mu.
func (m *Manager) appendJournalLocked(op Op, id string) {
	m.journal = append(m.journal, JournalEntry{Op: op, ConsumerID: id})
}

// JournalLen reports the number of entries pending persistence.
func (m *Manager) JournalLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.journal)
}

// SyncJournal drains the journal as one batch and applies each entry to the
// durable store. Only one drain runs at a time; a concurrent call returns
// immediately. Entries appended while a drain is running belong to the next
// batch. On a persistence failure the undrained remainder is pushed back to
// the journal head so it is re-driven by a later pass.
func (m *Manager) SyncJournal(ctx context.Context) error {
	if !m.syncMu.TryLock() {
		return nil
	}
	defer m.syncMu.Unlock()

	m.mu.Lock()
	batch := m.journal
	m.journal = nil
	m.refreshGaugesLocked()
	m.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	for i, entry := range batch {
		if err := m.applyEntry(ctx, entry); err != nil {
			m.mu.Lock()
			m.journal = append(append([]JournalEntry{}, batch[i:]...), m.journal...)
			m.refreshGaugesLocked()
			m.mu.Unlock()
			return fmt.Errorf("journal sync at %s %s: %w", entry.Op, entry.ConsumerID, err)
		}
	}

	logging.L().Debug("journal drained", "entries", len(batch))
	return nil
}

func (m *Manager) applyEntry(ctx context.Context, entry JournalEntry) error {
	switch entry.Op {
	case OpDelete:
		return m.store.PersistDelete(ctx, entry.ConsumerID)
	case OpCreate, OpUpdate:
		m.mu.Lock()
		rec, ok := m.records[entry.ConsumerID]
		if !ok {
			// Deleted since the entry was appended; the DELETE entry
			// later in the batch removes the durable row.
			m.mu.Unlock()
			return nil
		}
		snapshot := *rec
		defs := make([]SinkDef, len(m.defs[entry.ConsumerID]))
		copy(defs, m.defs[entry.ConsumerID])
		m.mu.Unlock()

		if entry.Op == OpCreate {
			return m.store.PersistCreate(ctx, snapshot, defs)
		}
		return m.store.PersistUpdate(ctx, entry.ConsumerID, snapshot, defs)
	default:
		return fmt.Errorf("unknown journal op %q", entry.Op)
	}
}
