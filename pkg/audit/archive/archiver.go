package archive

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"mercator-hq/quorum/pkg/audit"
	"mercator-hq/quorum/pkg/audit/export"
)

const watermarkFile = ".watermark"

// Config contains configuration for the audit archiver.
type Config struct {
	// Schedule is a cron expression for scheduled archiving.
	// Empty disables the scheduler.
	// Example: "0 3 * * *" (daily at 3 AM)
	Schedule string

	// Path is the directory archives are written to.
	Path string

	// Format is "json" or "csv".
	Format string

	// BatchSize bounds the number of entries read per query.
	// Default: 5000
	BatchSize int
}

// DefaultConfig returns the default archive configuration.
func DefaultConfig() *Config {
	return &Config{
		Schedule:  "0 3 * * *",
		Path:      "data/archives/",
		Format:    "json",
		BatchSize: 5000,
	}
}

// Result describes one archive run.
type Result struct {
	File      string
	Entries   int
	FirstSeq  int64
	LastSeq   int64
	StartedAt time.Time
}

// Archiver copies audit entries recorded since the previous run into a file.
// It never deletes from storage; the trail stays complete. The last archived
// sequence number is kept in a watermark file next to the archives.
type Archiver struct {
	storage  audit.Storage
	config   *Config
	exporter audit.Exporter
	logger   *slog.Logger

	mu sync.Mutex
}

// NewArchiver creates an archiver over storage.
func NewArchiver(storage audit.Storage, config *Config) (*Archiver, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	exporter, ok := export.ForFormat(config.Format)
	if !ok {
		return nil, fmt.Errorf("unsupported archive format %q", config.Format)
	}
	return &Archiver{
		storage:  storage,
		config:   config,
		exporter: exporter,
		logger:   slog.Default().With("component", "audit.archiver"),
	}, nil
}

// Archive writes every entry newer than the watermark to a new file and
// advances the watermark. It returns a zero Result when there is nothing new.
func (a *Archiver) Archive(ctx context.Context) (*Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	res := &Result{StartedAt: time.Now().UTC()}

	if err := os.MkdirAll(a.config.Path, 0o755); err != nil {
		return nil, audit.NewExportError(a.config.Format, fmt.Errorf("create archive directory: %w", err))
	}

	mark, err := a.readWatermark()
	if err != nil {
		return nil, err
	}

	var entries []*audit.Entry
	after := mark
	for {
		batch, err := a.storage.Query(ctx, &audit.Query{AfterSequence: after, BySequence: true, Limit: a.config.BatchSize})
		if err != nil {
			return nil, err
		}
		entries = append(entries, batch...)
		if len(batch) > 0 {
			after = batch[len(batch)-1].Sequence
		}
		if len(batch) < a.config.BatchSize {
			break
		}
	}

	if len(entries) == 0 {
		a.logger.Debug("no new audit entries to archive", "watermark", mark)
		return res, nil
	}

	res.Entries = len(entries)
	res.FirstSeq = entries[0].Sequence
	res.LastSeq = after

	name := fmt.Sprintf("audit-%s-%d-%d.%s",
		res.StartedAt.Format("20060102T150405Z"), res.FirstSeq, res.LastSeq, a.exporter.Extension())
	res.File = filepath.Join(a.config.Path, name)

	f, err := os.Create(res.File)
	if err != nil {
		return nil, audit.NewExportError(a.config.Format, err)
	}
	if err := a.exporter.Export(ctx, entries, f); err != nil {
		f.Close()
		os.Remove(res.File)
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, audit.NewExportError(a.config.Format, err)
	}

	if err := a.writeWatermark(after); err != nil {
		return nil, err
	}

	a.logger.Info("audit entries archived",
		"file", res.File,
		"entries", res.Entries,
		"first_seq", res.FirstSeq,
		"last_seq", res.LastSeq,
	)
	return res, nil
}

// Watermark returns the last archived sequence number.
func (a *Archiver) Watermark() (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.readWatermark()
}

func (a *Archiver) readWatermark() (int64, error) {
	data, err := os.ReadFile(filepath.Join(a.config.Path, watermarkFile))
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, audit.NewExportError(a.config.Format, fmt.Errorf("read watermark: %w", err))
	}
	mark, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, audit.NewExportError(a.config.Format, fmt.Errorf("parse watermark: %w", err))
	}
	return mark, nil
}

func (a *Archiver) writeWatermark(seq int64) error {
	path := filepath.Join(a.config.Path, watermarkFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.FormatInt(seq, 10)+"\n"), 0o644); err != nil {
		return audit.NewExportError(a.config.Format, fmt.Errorf("write watermark: %w", err))
	}
	if err := os.Rename(tmp, path); err != nil {
		return audit.NewExportError(a.config.Format, fmt.Errorf("write watermark: %w", err))
	}
	return nil
}
