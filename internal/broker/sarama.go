package broker

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/IBM/sarama"

	"streamhub/internal/logging"
)

// ErrClosed is returned from Next once the connection is torn down.
var ErrClosed = errors.New("broker: connection closed")

// SaramaDialer opens consumer-group connections through IBM/sarama.
type SaramaDialer struct {
	// Version pins the Kafka protocol version; empty uses sarama's default.
	Version string
}

func saramaConfig(version, clientID string) (*sarama.Config, error) {
	sc := sarama.NewConfig()
	if clientID != "" {
		sc.ClientID = clientID
	}
	if version != "" {
		ver, err := sarama.ParseKafkaVersion(version)
		if err != nil {
			return nil, err
		}
		sc.Version = ver
	}
	sc.Consumer.Return.Errors = true
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	return sc, nil
}

func (d *SaramaDialer) Dial(ctx context.Context, address, topic, group, clientID string) (Conn, error) {
	sc, err := saramaConfig(d.Version, clientID)
	if err != nil {
		return nil, err
	}
	cl, err := sarama.NewClient([]string{address}, sc)
	if err != nil {
		return nil, err
	}
	gr, err := sarama.NewConsumerGroupFromClient(group, cl)
	if err != nil {
		_ = cl.Close()
		return nil, err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	c := &saramaConn{
		client: cl,
		group:  gr,
		cancel: cancel,
		msgs:   make(chan *Message),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
	go c.consumeLoop(loopCtx, topic)
	return c, nil
}

type saramaConn struct {
	client sarama.Client
	group  sarama.ConsumerGroup
	cancel context.CancelFunc

	msgs chan *Message
	errs chan error
	done chan struct{}

	closeOnce sync.Once
}

// consumeLoop re-joins the group on rebalance until cancelled; a hard error
// is surfaced through errs for the next Next call.
func (c *saramaConn) consumeLoop(ctx context.Context, topic string) {
	defer close(c.done)
	h := &claimHandler{conn: c}
	for {
		if err := c.group.Consume(ctx, []string{topic}, h); err != nil {
			if ctx.Err() == nil {
				select {
				case c.errs <- err:
				default:
				}
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (c *saramaConn) Next(ctx context.Context) (*Message, error) {
	select {
	case m := <-c.msgs:
		return m, nil
	case err := <-c.errs:
		return nil, err
	case <-c.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *saramaConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		<-c.done
		if e := c.group.Close(); e != nil {
			err = e
		}
		if e := c.client.Close(); e != nil && err == nil {
			err = e
		}
	})
	return err
}

type claimHandler struct {
	conn *saramaConn
}

func (*claimHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (*claimHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *claimHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		out := &Message{
			Topic:     msg.Topic,
			Partition: msg.Partition,
			Offset:    msg.Offset,
			Key:       msg.Key,
			Value:     msg.Value,
			Timestamp: msg.Timestamp,
		}
		select {
		case h.conn.msgs <- out:
			sess.MarkMessage(msg, "")
		case <-sess.Context().Done():
			return sess.Context().Err()
		}
	}
	return nil
}

// SaramaAdminDialer opens transient admin connections for group metadata
// queries; these are distinct from any managed consumer's connection.
type SaramaAdminDialer struct {
	Version string
}

func (d *SaramaAdminDialer) DialAdmin(address string) (Admin, error) {
	sc, err := saramaConfig(d.Version, "")
	if err != nil {
		return nil, err
	}
	cl, err := sarama.NewClient([]string{address}, sc)
	if err != nil {
		return nil, err
	}
	admin, err := sarama.NewClusterAdminFromClient(cl)
	if err != nil {
		_ = cl.Close()
		return nil, err
	}
	return &saramaAdmin{client: cl, admin: admin}, nil
}

type saramaAdmin struct {
	client sarama.Client
	admin  sarama.ClusterAdmin
}

func (a *saramaAdmin) Groups(_ context.Context) ([]string, error) {
	groups, err := a.admin.ListConsumerGroups()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(groups))
	for g := range groups {
		out = append(out, g)
	}
	sort.Strings(out)
	return out, nil
}

func (a *saramaAdmin) GroupOffsets(_ context.Context, group string) ([]GroupOffset, error) {
	resp, err := a.admin.ListConsumerGroupOffsets(group, nil)
	if err != nil {
		return nil, err
	}
	var out []GroupOffset
	for topic, parts := range resp.Blocks {
		for partition, block := range parts {
			if block.Offset < 0 {
				continue
			}
			out = append(out, GroupOffset{
				Topic:     topic,
				Partition: partition,
				Offset:    block.Offset,
				Metadata:  block.Metadata,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Topic != out[j].Topic {
			return out[i].Topic < out[j].Topic
		}
		return out[i].Partition < out[j].Partition
	})
	return out, nil
}

func (a *saramaAdmin) EndOffsets(_ context.Context, topic string, partitions []int32) ([]PartitionEnd, error) {
	if partitions == nil {
		ps, err := a.client.Partitions(topic)
		if err != nil {
			return nil, err
		}
		partitions = ps
	}
	out := make([]PartitionEnd, 0, len(partitions))
	for _, p := range partitions {
		off, err := a.client.GetOffset(topic, p, sarama.OffsetNewest)
		if err != nil {
			return nil, err
		}
		out = append(out, PartitionEnd{Partition: p, Offset: off})
	}
	return out, nil
}

func (a *saramaAdmin) Close() error {
	// ClusterAdmin owns the client once created from it.
	if err := a.admin.Close(); err != nil {
		logging.L().Warn("admin close failed", "err", err)
		return err
	}
	return nil
}
