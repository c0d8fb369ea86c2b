// Package broker is the boundary to the Kafka cluster. The manager and
// extractor depend only on the interfaces here; the sarama implementation
// lives in sarama.go and test fakes live with the packages that need them.
package broker

import (
	"context"
	"time"
)

// Message is one record pulled from a topic partition.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Timestamp time.Time
}

// Conn is one live subscription for a (topic, group, address) triple.
type Conn interface {
	// Next blocks until a message is available, the context is cancelled,
	// or the connection is closed.
	Next(ctx context.Context) (*Message, error)
	Close() error
}

// Dialer opens consumer connections.
type Dialer interface {
	Dial(ctx context.Context, address, topic, group, clientID string) (Conn, error)
}

// GroupOffset is one committed offset of a consumer group.
type GroupOffset struct {
	Topic     string `json:"topic"`
	Partition int32  `json:"partition"`
	Offset    int64  `json:"current_offset"`
	Metadata  string `json:"metadata,omitempty"`
}

// PartitionEnd is the log-end offset of one partition.
type PartitionEnd struct {
	Partition int32
	Offset    int64
}

// Admin exposes the read-only group metadata queries used by the reporter.
// Implementations hold a transient connection, distinct from any consumer's.
type Admin interface {
	Groups(ctx context.Context) ([]string, error)
	GroupOffsets(ctx context.Context, group string) ([]GroupOffset, error)
	EndOffsets(ctx context.Context, topic string, partitions []int32) ([]PartitionEnd, error)
	Close() error
}

// AdminDialer opens admin connections against a broker address.
type AdminDialer interface {
	DialAdmin(address string) (Admin, error)
}
