package recorder

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"mercator-hq/quorum/pkg/audit"
)

// ErrClosed is returned by Record after Close.
var ErrClosed = errors.New("audit recorder closed")

// Publisher mirrors recorded entries to an external sink. Publishing happens
// after the entry is durably stored and never affects the caller.
type Publisher interface {
	Publish(ctx context.Context, e *audit.Entry) error
	Close() error
}

// Config contains configuration for the audit recorder.
type Config struct {
	// WriteTimeout bounds a single storage append.
	// Default: 5 seconds
	WriteTimeout time.Duration

	// PublishBuffer is the size of the publisher channel buffer.
	// Default: 1000
	PublishBuffer int

	// PublishTimeout bounds a single publish call.
	// Default: 2 seconds
	PublishTimeout time.Duration

	// MaxDetailLength truncates string detail values longer than this.
	// Default: 2000
	MaxDetailLength int
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		WriteTimeout:    5 * time.Second,
		PublishBuffer:   1000,
		PublishTimeout:  2 * time.Second,
		MaxDetailLength: 2000,
	}
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithPublisher mirrors every stored entry to p.
func WithPublisher(p Publisher) Option {
	return func(r *Recorder) { r.publisher = p }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// Recorder appends audit entries. Appends are synchronous so a trail read
// immediately after a workflow operation sees every entry that operation
// produced. Publishing to an optional Publisher is asynchronous.
type Recorder struct {
	storage   audit.Storage
	config    *Config
	publisher Publisher
	now       func() time.Time
	logger    *slog.Logger

	mu     sync.Mutex
	lastTS time.Time
	closed bool

	pubChan chan *audit.Entry
	wg      sync.WaitGroup
	done    chan struct{}
}

// NewRecorder creates a recorder over storage.
func NewRecorder(storage audit.Storage, config *Config, opts ...Option) *Recorder {
	if config == nil {
		config = DefaultConfig()
	}

	r := &Recorder{
		storage: storage,
		config:  config,
		now:     time.Now,
		done:    make(chan struct{}),
		logger:  slog.Default().With("component", "audit.recorder"),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.publisher != nil {
		r.pubChan = make(chan *audit.Entry, config.PublishBuffer)
		r.wg.Add(1)
		go r.worker()
	}

	r.logger.Info("audit recorder initialized",
		"publisher", r.publisher != nil,
		"write_timeout", config.WriteTimeout,
	)
	return r
}

// Record fills in the entry's ID, timestamp and content hash, appends it to
// storage and returns the stored entry. Timestamps never go backwards within
// one recorder, so canonical order matches append order.
func (r *Recorder) Record(ctx context.Context, e *audit.Entry) (*audit.Entry, error) {
	entry := e.Clone()
	entry.Details = r.truncateDetails(entry.Details)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, audit.NewRecorderError(e.Action, e.ProposalID, ErrClosed)
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	ts := r.now().UTC()
	if ts.Before(r.lastTS) {
		ts = r.lastTS
	}
	entry.Timestamp = ts

	hash, err := audit.Hash(entry)
	if err != nil {
		return nil, audit.NewRecorderError(e.Action, e.ProposalID, err)
	}
	entry.ContentHash = hash

	wctx, cancel := context.WithTimeout(ctx, r.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	if err := r.storage.Append(wctx, entry); err != nil {
		r.logger.Error("failed to append audit entry",
			"action", entry.Action,
			"proposal_id", entry.ProposalID,
			"error", err,
		)
		return nil, audit.NewRecorderError(e.Action, e.ProposalID, err)
	}
	r.lastTS = ts

	r.logger.Debug("audit entry recorded",
		"id", entry.ID,
		"seq", entry.Sequence,
		"action", entry.Action,
		"proposal_id", entry.ProposalID,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if r.pubChan != nil {
		select {
		case r.pubChan <- entry.Clone():
		default:
			r.logger.Warn("audit publish channel full, skipping mirror",
				"id", entry.ID,
				"channel_capacity", r.config.PublishBuffer,
			)
		}
	}

	return entry, nil
}

// Trail returns every entry for proposalID in canonical order.
func (r *Recorder) Trail(ctx context.Context, proposalID string) ([]*audit.Entry, error) {
	return r.storage.Query(ctx, &audit.Query{ProposalID: proposalID})
}

// Storage returns the underlying storage.
func (r *Recorder) Storage() audit.Storage {
	return r.storage
}

// Close stops accepting entries and drains pending publishes. It does not
// close the storage.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	close(r.done)
	r.wg.Wait()

	if r.publisher != nil {
		if err := r.publisher.Close(); err != nil {
			r.logger.Warn("failed to close audit publisher", "error", err)
		}
	}
	r.logger.Info("audit recorder shut down complete")
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case e := <-r.pubChan:
			r.publish(e)
		case <-r.done:
			for {
				select {
				case e := <-r.pubChan:
					r.publish(e)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) publish(e *audit.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.PublishTimeout)
	defer cancel()

	if err := r.publisher.Publish(ctx, e); err != nil {
		r.logger.Warn("failed to publish audit entry",
			"id", e.ID,
			"action", e.Action,
			"error", err,
		)
	}
}

// truncateDetails shortens long string details and replaces invalid UTF-8,
// which JSON encoding would otherwise rewrite after the entry is hashed.
func (r *Recorder) truncateDetails(details map[string]any) map[string]any {
	for k, v := range details {
		s, ok := v.(string)
		if !ok {
			continue
		}
		s = strings.ToValidUTF8(s, "\uFFFD")
		if r.config.MaxDetailLength > 0 {
			s = TruncateString(s, r.config.MaxDetailLength)
		}
		details[k] = s
	}
	return details
}

// TruncateString truncates s to at most maxLen bytes, ending with "..." when
// cut. It never splits a UTF-8 sequence.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	suffix := "..."
	if maxLen <= len(suffix) {
		suffix = ""
	}
	cut := maxLen - len(suffix)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + suffix
}
