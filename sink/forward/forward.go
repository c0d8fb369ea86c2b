// Package forward POSTs each message payload to an HTTP endpoint over a
// persistent client session.
package forward

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"streamhub/internal/broker"
	"streamhub/sink"
)

const Kind = "streaming_forwarder"

type driver struct {
	endpoint string
	client   *http.Client
}

func New(cfg sink.Config) (sink.Sink, error) {
	endpoint, err := sink.Required(Kind, cfg, "endpoint_url")
	if err != nil {
		return nil, err
	}
	return &driver{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (d *driver) Process(ctx context.Context, msg *broker.Message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(msg.Value))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("forward to %s: unexpected status %d", d.endpoint, resp.StatusCode)
	}
	return nil
}

func (d *driver) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

func init() {
	sink.Register(Kind, New)
}
