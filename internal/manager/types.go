package manager

import (
	"context"
	"time"

	"streamhub/sink"
)

// Status is the lifecycle state of a consumer record.
type Status string

const (
	StatusInactive Status = "INACTIVE"
	StatusActive   Status = "ACTIVE"
	StatusError    Status = "ERROR"
)

// Op tags one journal entry.
type Op string

const (
	OpCreate Op = "CREATE"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// JournalEntry records one mutating operation pending durable persistence.
type JournalEntry struct {
	Op         Op
	ConsumerID string
}

// SinkDef is the stored definition of one downstream sink. The list of
// definitions for a consumer is only ever replaced wholesale.
type SinkDef struct {
	ID        string      `json:"id"`
	Kind      string      `json:"kind"`
	Config    sink.Config `json:"config"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// ConsumerRecord is the stored metadata of one consumer.
type ConsumerRecord struct {
	ID         string    `json:"consumer_id"`
	BrokerAddr string    `json:"broker_addr"`
	Topic      string    `json:"topic"`
	Group      string    `json:"consumer_group"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ConsumerView is the full read model returned by manager operations.
type ConsumerView struct {
	ConsumerRecord
	Sinks []SinkDef `json:"sinks"`
}

// SinkSpec declares one sink to build.
type SinkSpec struct {
	Kind   string      `json:"kind" yaml:"kind"`
	Config sink.Config `json:"config" yaml:"config"`
}

// CreateSpec is the input to Create.
type CreateSpec struct {
	BrokerAddr string     `json:"broker_addr" yaml:"broker_addr"`
	Topic      string     `json:"topic" yaml:"topic"`
	Group      string     `json:"consumer_group" yaml:"consumer_group"`
	AutoStart  bool       `json:"auto_start" yaml:"auto_start"`
	Sinks      []SinkSpec `json:"sinks" yaml:"sinks"`
}

// UpdateSpec carries partial updates. Nil fields are left untouched; a
// non-nil Sinks slice (even empty) replaces the definitions wholesale and
// forces a stop/rebuild of any live extractor.
type UpdateSpec struct {
	BrokerAddr *string     `json:"broker_addr"`
	Topic      *string     `json:"topic"`
	Group      *string     `json:"consumer_group"`
	Sinks      *[]SinkSpec `json:"sinks"`
}

// Store is the durable persistence capability consumed by SyncJournal.
type Store interface {
	PersistCreate(ctx context.Context, rec ConsumerRecord, defs []SinkDef) error
	PersistUpdate(ctx context.Context, id string, rec ConsumerRecord, defs []SinkDef) error
	PersistDelete(ctx context.Context, id string) error
}
