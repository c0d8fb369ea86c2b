// Package file appends each message payload as one line to a local file.
package file

import (
	"context"
	"os"
	"sync"

	"streamhub/internal/broker"
	"streamhub/sink"
)

const Kind = "file_sink"

type driver struct {
	mu   sync.Mutex
	f    *os.File
	done bool
}

func New(cfg sink.Config) (sink.Sink, error) {
	path, err := sink.Required(Kind, cfg, "file_path")
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &driver{f: f}, nil
}

func (d *driver) Process(_ context.Context, msg *broker.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done {
		return os.ErrClosed
	}
	_, err := d.f.Write(append(msg.Value, '\n'))
	return err
}

func (d *driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done {
		return nil
	}
	d.done = true
	return d.f.Close()
}

func init() {
	sink.Register(Kind, New)
}
