// Package store persists consumer and sink definitions drained from the
// operation journal.
package store

import (
	"context"

	"streamhub/internal/manager"
)

// Discard satisfies manager.Store when no database is configured; every
// journal drain succeeds without side effects.
type Discard struct{}

func (Discard) PersistCreate(context.Context, manager.ConsumerRecord, []manager.SinkDef) error {
	return nil
}

func (Discard) PersistUpdate(context.Context, string, manager.ConsumerRecord, []manager.SinkDef) error {
	return nil
}

func (Discard) PersistDelete(context.Context, string) error { return nil }
