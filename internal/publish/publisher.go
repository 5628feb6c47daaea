// Package publish implements the downstream event channel over NATS.
package publish

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/sentra-sec/sentra/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Conn is the slice of *nats.Conn the publisher needs, split out so tests
// can substitute a recording fake.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Publisher writes processed results and alerts to NATS subjects. It
// implements schemas.EventChannel.
type Publisher struct {
	conn Conn
	log  *zap.Logger
}

var _ schemas.EventChannel = (*Publisher)(nil)

// Connect dials the NATS server and returns a ready Publisher. The
// connection reconnects indefinitely on its own.
func Connect(url string, logger *zap.Logger) (*Publisher, *nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.Name("sentra-publisher"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return New(nc, logger), nc, nil
}

// New wraps an existing connection.
func New(conn Conn, logger *zap.Logger) *Publisher {
	return &Publisher{
		conn: conn,
		log:  logger.Named("publish"),
	}
}

// Publish marshals the payload and writes it to the subject. Callers treat
// the channel as fire-and-forget; an error return exists so they can log
// it, never to redirect control flow.
func (p *Publisher) Publish(ctx context.Context, subject string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshalling payload for %s: %w", subject, err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}

	p.log.Debug("Payload published",
		zap.String("subject", subject),
		zap.Int("bytes", len(data)),
	)
	return nil
}
