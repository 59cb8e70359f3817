// Package publish mirrors audit entries to NATS so downstream consumers can
// follow approval activity without reading the audit database.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"

	"mercator-hq/quorum/pkg/audit"
)

// Config contains configuration for the NATS publisher.
type Config struct {
	// URL is the NATS server URL, e.g. "nats://localhost:4222".
	URL string

	// SubjectPrefix is prepended to the action: "<prefix>.<action>".
	// Default: "quorum.audit"
	SubjectPrefix string

	// Name identifies the connection on the server.
	Name string

	// ConnectTimeout bounds the initial connection.
	// Default: 5 seconds
	ConnectTimeout time.Duration
}

// DefaultConfig returns the default publisher configuration.
func DefaultConfig() *Config {
	return &Config{
		URL:            nats.DefaultURL,
		SubjectPrefix:  "quorum.audit",
		Name:           "quorum",
		ConnectTimeout: 5 * time.Second,
	}
}

// conn is the subset of *nats.Conn the publisher uses.
type conn interface {
	PublishMsg(m *nats.Msg) error
	FlushWithContext(ctx context.Context) error
	Drain() error
}

// NATSPublisher publishes each entry as JSON on "<prefix>.<action>". The
// entry ID, sequence and proposal ID are also carried as headers.
type NATSPublisher struct {
	nc     conn
	prefix string
	logger *slog.Logger
}

// Connect dials the NATS server and returns a publisher.
func Connect(config *Config) (*NATSPublisher, error) {
	if config == nil {
		config = DefaultConfig()
	}

	nc, err := nats.Connect(config.URL,
		nats.Name(config.Name),
		nats.Timeout(config.ConnectTimeout),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Default().Warn("nats disconnected", "component", "audit.publish", "error", err)
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", config.URL, err)
	}
	return newPublisher(nc, config.SubjectPrefix), nil
}

func newPublisher(nc conn, prefix string) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultConfig().SubjectPrefix
	}
	return &NATSPublisher{
		nc:     nc,
		prefix: prefix,
		logger: slog.Default().With("component", "audit.publish"),
	}
}

// Subject returns the subject an entry with the given action is published on.
func (p *NATSPublisher) Subject(action audit.Action) string {
	return p.prefix + "." + string(action)
}

// Publish sends e and waits for the server to acknowledge the flush.
func (p *NATSPublisher) Publish(ctx context.Context, e *audit.Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	msg := nats.NewMsg(p.Subject(e.Action))
	msg.Data = data
	msg.Header.Set("Quorum-Entry-Id", e.ID)
	msg.Header.Set("Quorum-Sequence", strconv.FormatInt(e.Sequence, 10))
	if e.ProposalID != "" {
		msg.Header.Set("Quorum-Proposal-Id", e.ProposalID)
	}

	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Subject, err)
	}
	if err := p.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", msg.Subject, err)
	}

	p.logger.Debug("audit entry published", "subject", msg.Subject, "id", e.ID)
	return nil
}

// Close drains the connection.
func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}
