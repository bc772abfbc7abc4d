// Package artifacts mirrors finished artifacts into a NATS JetStream object
// store so other services can pick them up.
package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const contentType = "audio/wav"

// Mirror stores artifacts in one object store bucket.
type Mirror struct {
	conn   *nats.Conn
	bucket string
	store  nats.ObjectStore
	logger *slog.Logger
}

// Connect dials url, binds the bucket and returns a Mirror that owns the
// connection.
func Connect(url, bucket string, logger *slog.Logger) (*Mirror, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(url,
		nats.Name("voiceclone"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", url, err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to get jetstream context: %w", err)
	}

	m, err := New(js, bucket, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	m.conn = conn
	return m, nil
}

// New binds bucket on an existing JetStream context, creating it if needed.
func New(js nats.JetStreamContext, bucket string, logger *slog.Logger) (*Mirror, error) {
	if bucket == "" {
		return nil, errors.New("artifact bucket name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	store, err := js.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucket,
		Description: "Generated voice clone artifacts.",
		Storage:     nats.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		var bindErr error
		store, bindErr = js.ObjectStore(bucket)
		if bindErr != nil {
			if errors.Is(err, jetstream.ErrBucketExists) {
				return nil, fmt.Errorf("failed to bind object store bucket %q: %w", bucket, bindErr)
			}
			return nil, fmt.Errorf("failed to create object store bucket %q: %w", bucket, err)
		}
	}

	return &Mirror{bucket: bucket, store: store, logger: logger}, nil
}

// Bucket returns the bucket name.
func (m *Mirror) Bucket() string { return m.bucket }

// Upload stores data under key, replacing any previous object.
func (m *Mirror) Upload(ctx context.Context, key string, data []byte) error {
	_, err := m.store.Put(&nats.ObjectMeta{
		Name:    key,
		Headers: nats.Header{"Content-Type": []string{contentType}},
	}, bytes.NewReader(data), nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to put %q to bucket %q: %w", key, m.bucket, err)
	}

	m.logger.Debug("artifact stored", "bucket", m.bucket, "key", key, "bytes", len(data))
	return nil
}

// Download returns the object stored under key.
func (m *Mirror) Download(ctx context.Context, key string) ([]byte, error) {
	obj, err := m.store.Get(key, nats.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get %q from bucket %q: %w", key, m.bucket, err)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()
	if readErr != nil {
		return nil, fmt.Errorf("failed to read %q: %w", key, readErr)
	}
	if closeErr != nil {
		return data, fmt.Errorf("failed to close %q: %w", key, closeErr)
	}
	return data, nil
}

// Close drains the connection if the Mirror owns one.
func (m *Mirror) Close() error {
	if m.conn == nil {
		return nil
	}
	return m.conn.Drain()
}
