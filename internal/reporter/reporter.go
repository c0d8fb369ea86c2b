// Package reporter answers read-only consumer-group queries: local groups
// from the registry, cluster groups, committed offsets, and lag.
package reporter

import (
	"context"
	"errors"
	"fmt"

	"streamhub/internal/broker"
)

// ErrGroupNotFound marks a group with no committed offsets for the query.
var ErrGroupNotFound = errors.New("consumer group not found or no offsets committed")

// LocalLister is the slice of the manager the reporter needs.
type LocalLister interface {
	GroupsLocal() []string
}

// PartitionLag is the lag of one partition for a group.
type PartitionLag struct {
	Partition int32 `json:"partition"`
	Committed int64 `json:"committed_offset"`
	End       int64 `json:"log_end_offset"`
	Lag       int64 `json:"lag"`
}

// GroupLag aggregates per-partition lag for one (group, topic) pair.
type GroupLag struct {
	Group      string         `json:"group_id"`
	Topic      string         `json:"topic"`
	Partitions []PartitionLag `json:"partitions"`
	TotalLag   int64          `json:"total_lag"`
}

type Reporter struct {
	local   LocalLister
	dialer  broker.AdminDialer
	address string
}

func New(local LocalLister, dialer broker.AdminDialer, address string) *Reporter {
	return &Reporter{local: local, dialer: dialer, address: address}
}

// ListLocalGroups returns the groups present in the registry, without any
// broker round trip.
func (r *Reporter) ListLocalGroups() []string {
	return r.local.GroupsLocal()
}

// ListAllGroups returns every group known to the cluster.
func (r *Reporter) ListAllGroups(ctx context.Context) ([]string, error) {
	admin, err := r.dialer.DialAdmin(r.address)
	if err != nil {
		return nil, fmt.Errorf("admin dial %s: %w", r.address, err)
	}
	defer admin.Close()
	return admin.Groups(ctx)
}

// GetGroupOffsets returns the committed offsets of one group, or
// ErrGroupNotFound when it has none.
func (r *Reporter) GetGroupOffsets(ctx context.Context, group string) ([]broker.GroupOffset, error) {
	admin, err := r.dialer.DialAdmin(r.address)
	if err != nil {
		return nil, fmt.Errorf("admin dial %s: %w", r.address, err)
	}
	defer admin.Close()

	offsets, err := admin.GroupOffsets(ctx, group)
	if err != nil {
		return nil, err
	}
	if len(offsets) == 0 {
		return nil, ErrGroupNotFound
	}
	return offsets, nil
}

// GetGroupLag computes max(0, logEndOffset-committedOffset) per partition of
// the given topic.
func (r *Reporter) GetGroupLag(ctx context.Context, group, topic string) (*GroupLag, error) {
	admin, err := r.dialer.DialAdmin(r.address)
	if err != nil {
		return nil, fmt.Errorf("admin dial %s: %w", r.address, err)
	}
	defer admin.Close()

	offsets, err := admin.GroupOffsets(ctx, group)
	if err != nil {
		return nil, err
	}
	committed := make(map[int32]int64)
	partitions := make([]int32, 0)
	for _, o := range offsets {
		if o.Topic != topic {
			continue
		}
		committed[o.Partition] = o.Offset
		partitions = append(partitions, o.Partition)
	}
	if len(partitions) == 0 {
		return nil, ErrGroupNotFound
	}

	ends, err := admin.EndOffsets(ctx, topic, partitions)
	if err != nil {
		return nil, err
	}

	out := &GroupLag{Group: group, Topic: topic}
	for _, e := range ends {
		c, ok := committed[e.Partition]
		if !ok {
			continue
		}
		lag := e.Offset - c
		if lag < 0 {
			lag = 0
		}
		out.Partitions = append(out.Partitions, PartitionLag{
			Partition: e.Partition,
			Committed: c,
			End:       e.Offset,
			Lag:       lag,
		})
		out.TotalLag += lag
	}
	return out, nil
}
