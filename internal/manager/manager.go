// Package manager is the process-wide registry of consumer definitions. It
// owns all mutable state: consumer records, sink definitions, live
// extractors, and the operation journal.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"streamhub/internal/broker"
	"streamhub/internal/extractor"
	"streamhub/internal/logging"
	"streamhub/internal/telemetry"
	"streamhub/sink"
)

// ErrNotFound distinguishes an unknown consumer id from a validation
// failure, so callers can map it to "not found" rather than "bad request".
var ErrNotFound = errors.New("consumer not found")

// Manager coordinates create/read/update/start/stop/delete of consumers.
// Operations on different ids proceed concurrently; operations on the same
// id are serialized through a per-id mutex.
type Manager struct {
	dialer broker.Dialer
	store  Store

	mu      sync.Mutex
	records map[string]*ConsumerRecord
	defs    map[string][]SinkDef
	live    map[string]*extractor.Extractor
	journal []JournalEntry
	locks   map[string]*sync.Mutex

	syncMu sync.Mutex
}

func New(dialer broker.Dialer, store Store) *Manager {
	return &Manager{
		dialer:  dialer,
		store:   store,
		records: make(map[string]*ConsumerRecord),
		defs:    make(map[string][]SinkDef),
		live:    make(map[string]*extractor.Extractor),
		locks:   make(map[string]*sync.Mutex),
	}
}

// idLock returns the serialization mutex for one consumer id, allocating it
// on first use. The mutex may outlive the registry entry; a goroutine that
// grabbed it before a delete simply finds the record gone.
func (m *Manager) idLock(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

// Create registers a new consumer. Sinks are built before any state becomes
// visible, so an unknown kind or bad config leaves no trace. With AutoStart
// the extractor starts immediately and the record is ACTIVE.
func (m *Manager) Create(ctx context.Context, spec CreateSpec) (*ConsumerView, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	defs := make([]SinkDef, 0, len(spec.Sinks))
	for _, s := range spec.Sinks {
		defs = append(defs, SinkDef{
			ID:        uuid.NewString(),
			Kind:      s.Kind,
			Config:    cloneConfig(s.Config),
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	built, err := buildSinks(defs)
	if err != nil {
		return nil, err
	}

	rec := &ConsumerRecord{
		ID:         id,
		BrokerAddr: spec.BrokerAddr,
		Topic:      spec.Topic,
		Group:      spec.Group,
		Status:     StatusInactive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	ext := m.newExtractor(rec, built)
	if spec.AutoStart {
		if err := ext.Start(ctx); err != nil {
			_ = ext.Stop(ctx) // releases the built sinks
			return nil, fmt.Errorf("start consumer %s: %w", id, err)
		}
		rec.Status = StatusActive
	}

	m.mu.Lock()
	m.records[id] = rec
	m.defs[id] = defs
	m.live[id] = ext
	m.appendJournalLocked(OpCreate, id)
	m.refreshGaugesLocked()
	view := m.viewLocked(id)
	m.mu.Unlock()

	logging.L().Info("consumer created", "consumer_id", id, "topic", spec.Topic, "group", spec.Group, "auto_start", spec.AutoStart)
	return view, nil
}

// Get returns the current view of one consumer, or ErrNotFound.
func (m *Manager) Get(id string) (*ConsumerView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return nil, ErrNotFound
	}
	return m.viewLocked(id), nil
}

// List returns all known consumers in registry iteration order.
func (m *Manager) List() []*ConsumerView {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ConsumerView, 0, len(m.records))
	for id := range m.records {
		out = append(out, m.viewLocked(id))
	}
	return out
}

// GroupsLocal returns the distinct consumer-group ids in the registry.
func (m *Manager) GroupsLocal() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]struct{}, len(m.records))
	out := make([]string, 0, len(m.records))
	for _, rec := range m.records {
		if _, ok := seen[rec.Group]; ok {
			continue
		}
		seen[rec.Group] = struct{}{}
		out = append(out, rec.Group)
	}
	return out
}

// Update applies partial changes. Provided scalar fields overwrite the
// stored values. A provided sink list (even empty) replaces the old one:
// any live extractor is stopped and rebuilt from the new definitions, and
// restarted immediately when the record was ACTIVE.
func (m *Manager) Update(ctx context.Context, id string, spec UpdateSpec) (*ConsumerView, error) {
	l := m.idLock(id)
	l.Lock()
	defer l.Unlock()

	m.mu.Lock()
	rec, ok := m.records[id]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	updated := *rec
	m.mu.Unlock()

	if spec.BrokerAddr != nil {
		updated.BrokerAddr = *spec.BrokerAddr
	}
	if spec.Topic != nil {
		updated.Topic = *spec.Topic
	}
	if spec.Group != nil {
		updated.Group = *spec.Group
	}
	updated.UpdatedAt = time.Now().UTC()

	var newDefs []SinkDef
	var newExt *extractor.Extractor

	if spec.Sinks != nil {
		now := updated.UpdatedAt
		newDefs = make([]SinkDef, 0, len(*spec.Sinks))
		for _, s := range *spec.Sinks {
			newDefs = append(newDefs, SinkDef{
				ID:        uuid.NewString(),
				Kind:      s.Kind,
				Config:    cloneConfig(s.Config),
				CreatedAt: now,
				UpdatedAt: now,
			})
		}

		// Build before touching any visible state so a configuration
		// error aborts the whole update.
		built, err := buildSinks(newDefs)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		old := m.live[id]
		m.mu.Unlock()
		if old != nil {
			if err := old.Stop(ctx); err != nil {
				closeBuilt(built)
				return nil, fmt.Errorf("stop consumer %s for update: %w", id, err)
			}
		}

		newExt = m.newExtractor(&updated, built)
		if updated.Status == StatusActive {
			if err := newExt.Start(ctx); err != nil {
				updated.Status = StatusError
				logging.L().Error("consumer rebuild failed to start", "consumer_id", id, "err", err)
			}
		}
	}

	m.mu.Lock()
	if _, stillThere := m.records[id]; !stillThere {
		m.mu.Unlock()
		if newExt != nil {
			_ = newExt.Stop(ctx)
		}
		return nil, ErrNotFound
	}
	*m.records[id] = updated
	if spec.Sinks != nil {
		m.defs[id] = newDefs
		m.live[id] = newExt
	}
	m.appendJournalLocked(OpUpdate, id)
	m.refreshGaugesLocked()
	view := m.viewLocked(id)
	m.mu.Unlock()

	logging.L().Info("consumer updated", "consumer_id", id, "sinks_replaced", spec.Sinks != nil)
	return view, nil
}

// Start brings a consumer to ACTIVE. Starting an already-active consumer is
// idempotent: exactly one live extractor per id, ever.
func (m *Manager) Start(ctx context.Context, id string) (*ConsumerView, error) {
	l := m.idLock(id)
	l.Lock()
	defer l.Unlock()

	m.mu.Lock()
	rec, ok := m.records[id]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	ext := m.live[id]
	snapshot := *rec
	defs := m.defs[id]
	m.mu.Unlock()

	freshlyBuilt := ext == nil
	if freshlyBuilt {
		built, err := buildSinks(defs)
		if err != nil {
			return nil, err
		}
		ext = m.newExtractor(&snapshot, built)
	}

	if err := ext.Start(ctx); err != nil {
		if freshlyBuilt {
			// Not registered in the live map, so nothing retains it
			// for a later Stop; release the sinks it was built with.
			_ = ext.Stop(ctx)
		}
		m.mu.Lock()
		rec.Status = StatusError
		rec.UpdatedAt = time.Now().UTC()
		m.appendJournalLocked(OpUpdate, id)
		m.refreshGaugesLocked()
		m.mu.Unlock()
		return nil, fmt.Errorf("start consumer %s: %w", id, err)
	}

	m.mu.Lock()
	m.live[id] = ext
	rec.Status = StatusActive
	rec.UpdatedAt = time.Now().UTC()
	m.appendJournalLocked(OpUpdate, id)
	m.refreshGaugesLocked()
	view := m.viewLocked(id)
	m.mu.Unlock()

	logging.L().Info("consumer started", "consumer_id", id, "topic", snapshot.Topic)
	return view, nil
}

// Stop brings a consumer to INACTIVE, discarding its extractor. Stopping an
// already-inactive consumer is idempotent.
func (m *Manager) Stop(ctx context.Context, id string) (*ConsumerView, error) {
	l := m.idLock(id)
	l.Lock()
	defer l.Unlock()

	m.mu.Lock()
	rec, ok := m.records[id]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	ext := m.live[id]
	m.mu.Unlock()

	if ext != nil {
		if err := ext.Stop(ctx); err != nil {
			return nil, fmt.Errorf("stop consumer %s: %w", id, err)
		}
	}

	m.mu.Lock()
	delete(m.live, id)
	rec.Status = StatusInactive
	rec.UpdatedAt = time.Now().UTC()
	m.appendJournalLocked(OpUpdate, id)
	m.refreshGaugesLocked()
	view := m.viewLocked(id)
	m.mu.Unlock()

	logging.L().Info("consumer stopped", "consumer_id", id)
	return view, nil
}

// Delete stops any live extractor, removes the record and its sink
// definitions, and reports whether the id existed.
func (m *Manager) Delete(ctx context.Context, id string) (bool, error) {
	l := m.idLock(id)
	l.Lock()
	defer l.Unlock()

	m.mu.Lock()
	_, ok := m.records[id]
	if !ok {
		m.mu.Unlock()
		return false, nil
	}
	ext := m.live[id]
	m.mu.Unlock()

	if ext != nil {
		if err := ext.Stop(ctx); err != nil {
			return false, fmt.Errorf("stop consumer %s for delete: %w", id, err)
		}
	}

	m.mu.Lock()
	delete(m.records, id)
	delete(m.defs, id)
	delete(m.live, id)
	delete(m.locks, id)
	m.appendJournalLocked(OpDelete, id)
	m.refreshGaugesLocked()
	m.mu.Unlock()

	logging.L().Info("consumer deleted", "consumer_id", id)
	return true, nil
}

// newExtractor wires the failure callback that flips the record to ERROR
// when the pull loop shuts itself down after a broker error.
func (m *Manager) newExtractor(rec *ConsumerRecord, built []extractor.Attached) *extractor.Extractor {
	id := rec.ID
	var ext *extractor.Extractor
	ext = extractor.New(id, rec.BrokerAddr, rec.Topic, rec.Group, m.dialer, built, func(err error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.live[id] != ext {
			return
		}
		delete(m.live, id)
		if r, ok := m.records[id]; ok {
			r.Status = StatusError
			r.UpdatedAt = time.Now().UTC()
		}
		m.refreshGaugesLocked()
		logging.L().Error("consumer entered error state", "consumer_id", id, "err", err)
	})
	return ext
}

func buildSinks(defs []SinkDef) ([]extractor.Attached, error) {
	built := make([]extractor.Attached, 0, len(defs))
	for _, d := range defs {
		s, err := sink.Build(d.Kind, d.Config)
		if err != nil {
			closeBuilt(built)
			return nil, err
		}
		built = append(built, extractor.Attached{Kind: d.Kind, Sink: s})
	}
	return built, nil
}

func closeBuilt(built []extractor.Attached) {
	for _, at := range built {
		if err := at.Sink.Close(); err != nil {
			logging.L().Warn("sink close failed during rollback", "kind", at.Kind, "err", err)
		}
	}
}

func cloneConfig(c sink.Config) sink.Config {
	out := make(sink.Config, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// viewLocked assembles the read model. Caller holds m.mu.
func (m *Manager) viewLocked(id string) *ConsumerView {
	rec := m.records[id]
	defs := m.defs[id]
	v := &ConsumerView{ConsumerRecord: *rec, Sinks: make([]SinkDef, len(defs))}
	for i, d := range defs {
		d.Config = cloneConfig(d.Config)
		v.Sinks[i] = d
	}
	return v
}

func (m *Manager) refreshGaugesLocked() {
	active := 0
	for _, rec := range m.records {
		if rec.Status == StatusActive {
			active++
		}
	}
	telemetry.ActiveConsumers.Set(float64(active))
	telemetry.JournalDepth.Set(float64(len(m.journal)))
}
