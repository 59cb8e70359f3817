package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"mercator-hq/quorum/pkg/policy"
	"mercator-hq/quorum/pkg/procurement"
	"mercator-hq/quorum/pkg/proposal"
	"mercator-hq/quorum/pkg/vendor"
	"mercator-hq/quorum/pkg/workflow"
)

// SQLiteConfig configures the SQLite workflow store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// CheckpointInterval is how often the WAL is checkpointed. Zero disables
	// the background checkpoint.
	// Default: 5 minutes
	CheckpointInterval time.Duration
}

// DefaultSQLiteConfig returns the default configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:               "data/quorum.db",
		BusyTimeout:        5 * time.Second,
		CheckpointInterval: 5 * time.Minute,
	}
}

// SQLiteStore implements workflow.Store on SQLite. Proposals and orders are
// kept as JSON documents next to the columns used for filtering; steps and
// vendors are fully columnar.
//
// The pool is limited to one connection since SQLite has a single writer.
type SQLiteStore struct {
	db        *sql.DB
	path      string
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	logger    *slog.Logger
}

// NewSQLiteStore opens (creating if needed) the database at cfg.Path.
func NewSQLiteStore(cfg *SQLiteConfig) (*SQLiteStore, error) {
	if cfg == nil {
		cfg = DefaultSQLiteConfig()
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, workflow.NewStoreError("sqlite", "open", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{
		db:     db,
		path:   cfg.Path,
		done:   make(chan struct{}),
		logger: slog.Default().With("component", "workflow.storage.sqlite"),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, workflow.NewStoreError("sqlite", "init_schema", err)
	}

	if cfg.CheckpointInterval > 0 {
		s.wg.Add(1)
		go s.checkpointLoop(cfg.CheckpointInterval)
	}

	s.logger.Info("workflow store opened", "path", cfg.Path)
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS proposals (
		id            TEXT PRIMARY KEY,
		status        TEXT NOT NULL,
		category      TEXT NOT NULL,
		department    TEXT NOT NULL DEFAULT '',
		submitted_by  TEXT NOT NULL,
		revision      INTEGER NOT NULL,
		created_at_ns INTEGER NOT NULL,
		updated_at_ns INTEGER NOT NULL,
		document      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_proposals_status ON proposals(status);
	CREATE INDEX IF NOT EXISTS idx_proposals_department ON proposals(department);
	CREATE INDEX IF NOT EXISTS idx_proposals_submitted_by ON proposals(submitted_by);
	CREATE INDEX IF NOT EXISTS idx_proposals_created ON proposals(created_at_ns);

	CREATE TABLE IF NOT EXISTS steps (
		id            TEXT PRIMARY KEY,
		proposal_id   TEXT NOT NULL REFERENCES proposals(id),
		generation    INTEGER NOT NULL,
		step_order    INTEGER NOT NULL,
		role          TEXT NOT NULL,
		approver      TEXT NOT NULL DEFAULT '',
		status        TEXT NOT NULL,
		comment       TEXT NOT NULL DEFAULT '',
		decided_by    TEXT NOT NULL DEFAULT '',
		decided_at_ns INTEGER,
		created_at_ns INTEGER NOT NULL,
		UNIQUE (proposal_id, generation, step_order)
	);
	CREATE INDEX IF NOT EXISTS idx_steps_proposal ON steps(proposal_id, generation);

	CREATE TABLE IF NOT EXISTS orders (
		proposal_id   TEXT PRIMARY KEY REFERENCES proposals(id),
		id            TEXT NOT NULL UNIQUE,
		total_amount  REAL NOT NULL,
		erp_reference TEXT NOT NULL,
		created_at_ns INTEGER NOT NULL,
		document      TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS vendors (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		category    TEXT NOT NULL,
		rating      REAL NOT NULL,
		reliability REAL NOT NULL,
		price_index REAL NOT NULL,
		past_orders INTEGER NOT NULL,
		active      INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_vendors_category ON vendors(category);

	CREATE TABLE IF NOT EXISTS quotations (
		id              TEXT PRIMARY KEY,
		proposal_id     TEXT NOT NULL REFERENCES proposals(id),
		vendor_id       TEXT NOT NULL,
		amount          REAL NOT NULL,
		notes           TEXT NOT NULL DEFAULT '',
		submitted_by    TEXT NOT NULL DEFAULT '',
		submitted_at_ns INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_quotations_proposal ON quotations(proposal_id, submitted_at_ns);
	`)
	return err
}

// checkpointLoop periodically folds the WAL back into the main database.
func (s *SQLiteStore) checkpointLoop(interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
				s.logger.Warn("wal checkpoint failed", "error", err)
			}
		case <-s.done:
			return
		}
	}
}

// SaveProposal implements workflow.Store.
func (s *SQLiteStore) SaveProposal(ctx context.Context, p *proposal.Proposal, steps ...*workflow.Step) error {
	return s.withTx(ctx, "save_proposal", func(tx *sql.Tx) error {
		if err := upsertProposal(ctx, tx, p); err != nil {
			return err
		}
		for _, st := range steps {
			if err := upsertStep(ctx, tx, st); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetProposal implements workflow.Store.
func (s *SQLiteStore) GetProposal(ctx context.Context, id string) (*proposal.Proposal, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM proposals WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &workflow.NotFoundError{Kind: "proposal", ID: id}
	}
	if err != nil {
		return nil, workflow.NewStoreError("sqlite", "get_proposal", err)
	}
	return decodeProposal(doc)
}

// ListProposals implements workflow.Store.
func (s *SQLiteStore) ListProposals(ctx context.Context, filter workflow.ProposalFilter) ([]*proposal.Proposal, error) {
	var (
		conds []string
		args  []any
	)
	if len(filter.Statuses) > 0 {
		marks := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			marks[i] = "?"
			args = append(args, string(st))
		}
		conds = append(conds, "status IN ("+strings.Join(marks, ", ")+")")
	}
	if filter.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, string(filter.Category))
	}
	if filter.Department != "" {
		conds = append(conds, "department = ?")
		args = append(args, filter.Department)
	}
	if filter.SubmittedBy != "" {
		conds = append(conds, "submitted_by = ?")
		args = append(args, filter.SubmittedBy)
	}
	if filter.Since != nil {
		conds = append(conds, "created_at_ns >= ?")
		args = append(args, filter.Since.UnixNano())
	}

	query := "SELECT document FROM proposals"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at_ns DESC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, workflow.NewStoreError("sqlite", "list_proposals", err)
	}
	defer rows.Close()

	var out []*proposal.Proposal
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, workflow.NewStoreError("sqlite", "list_proposals", err)
		}
		p, err := decodeProposal(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, workflow.NewStoreError("sqlite", "list_proposals", err)
	}
	return out, nil
}

const stepColumns = `id, proposal_id, generation, step_order, role, approver, status, comment, decided_by, decided_at_ns, created_at_ns`

// GetStep implements workflow.Store.
func (s *SQLiteStore) GetStep(ctx context.Context, id string) (*workflow.Step, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+stepColumns+` FROM steps WHERE id = ?`, id)
	st, err := scanStep(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &workflow.NotFoundError{Kind: "step", ID: id}
	}
	if err != nil {
		return nil, workflow.NewStoreError("sqlite", "get_step", err)
	}
	return st, nil
}

// ListSteps implements workflow.Store.
func (s *SQLiteStore) ListSteps(ctx context.Context, proposalID string, generation int) ([]*workflow.Step, error) {
	query := `SELECT ` + stepColumns + ` FROM steps WHERE proposal_id = ?`
	args := []any{proposalID}
	if generation > 0 {
		query += ` AND generation = ?`
		args = append(args, generation)
	}
	query += ` ORDER BY generation, step_order`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, workflow.NewStoreError("sqlite", "list_steps", err)
	}
	defer rows.Close()

	var out []*workflow.Step
	for rows.Next() {
		st, err := scanStep(rows)
		if err != nil {
			return nil, workflow.NewStoreError("sqlite", "list_steps", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, workflow.NewStoreError("sqlite", "list_steps", err)
	}
	return out, nil
}

// DecideStep implements workflow.Store. Both updates are conditional so a
// decision from another process that landed first makes this one a no-op.
func (s *SQLiteStore) DecideStep(ctx context.Context, p *proposal.Proposal, step *workflow.Step) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return workflow.NewStoreError("sqlite", "decide_step", fmt.Errorf("marshal proposal: %w", err))
	}
	var decidedAt sql.NullInt64
	if step.DecidedAt != nil {
		decidedAt = sql.NullInt64{Int64: step.DecidedAt.UnixNano(), Valid: true}
	}

	var conflict error
	err = s.withTx(ctx, "decide_step", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE steps SET status = ?, comment = ?, decided_by = ?, decided_at_ns = ?
			WHERE id = ? AND status = ?`,
			string(step.Status), step.Comment, step.DecidedBy, decidedAt,
			step.ID, string(workflow.StepPending))
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			conflict = workflow.ErrAlreadyDecided
			return conflict
		}

		res, err = tx.ExecContext(ctx, `
			UPDATE proposals SET status = ?, revision = ?, updated_at_ns = ?, document = ?
			WHERE id = ? AND status = ?`,
			string(p.Status), p.Revision, p.UpdatedAt.UnixNano(), string(doc),
			p.ID, string(proposal.StatusInReview))
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			conflict = workflow.ErrOutOfOrder
			return conflict
		}
		return nil
	})
	if conflict != nil {
		return conflict
	}
	return err
}

// SaveOrder implements workflow.Store.
func (s *SQLiteStore) SaveOrder(ctx context.Context, p *proposal.Proposal, o *procurement.Order) error {
	doc, err := json.Marshal(o)
	if err != nil {
		return workflow.NewStoreError("sqlite", "save_order", fmt.Errorf("marshal order: %w", err))
	}
	return s.withTx(ctx, "save_order", func(tx *sql.Tx) error {
		if err := upsertProposal(ctx, tx, p); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO orders (proposal_id, id, total_amount, erp_reference, created_at_ns, document)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (proposal_id) DO UPDATE SET
				id = excluded.id,
				total_amount = excluded.total_amount,
				erp_reference = excluded.erp_reference,
				created_at_ns = excluded.created_at_ns,
				document = excluded.document`,
			o.ProposalID, o.ID, o.TotalAmount, o.ERPReference, o.CreatedAt.UnixNano(), string(doc))
		return err
	})
}

// GetOrder implements workflow.Store.
func (s *SQLiteStore) GetOrder(ctx context.Context, proposalID string) (*procurement.Order, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM orders WHERE proposal_id = ?`, proposalID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &workflow.NotFoundError{Kind: "order", ID: proposalID}
	}
	if err != nil {
		return nil, workflow.NewStoreError("sqlite", "get_order", err)
	}
	return decodeOrder(doc)
}

// ListOrders implements workflow.Store.
func (s *SQLiteStore) ListOrders(ctx context.Context) ([]*procurement.Order, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT document FROM orders ORDER BY created_at_ns, id`)
	if err != nil {
		return nil, workflow.NewStoreError("sqlite", "list_orders", err)
	}
	defer rows.Close()

	var out []*procurement.Order
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, workflow.NewStoreError("sqlite", "list_orders", err)
		}
		o, err := decodeOrder(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, workflow.NewStoreError("sqlite", "list_orders", err)
	}
	return out, nil
}

// SaveQuotation implements workflow.Store.
func (s *SQLiteStore) SaveQuotation(ctx context.Context, q *vendor.Quotation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quotations (id, proposal_id, vendor_id, amount, notes, submitted_by, submitted_at_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.ProposalID, q.Vendor.ID, q.Amount, q.Notes, q.SubmittedBy, q.SubmittedAt.UnixNano())
	if err != nil {
		return workflow.NewStoreError("sqlite", "save_quotation", err)
	}
	return nil
}

// ListQuotations implements workflow.Store.
func (s *SQLiteStore) ListQuotations(ctx context.Context, proposalID string) ([]*vendor.Quotation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, proposal_id, vendor_id, amount, notes, submitted_by, submitted_at_ns
		FROM quotations WHERE proposal_id = ?
		ORDER BY submitted_at_ns, id`, proposalID)
	if err != nil {
		return nil, workflow.NewStoreError("sqlite", "list_quotations", err)
	}
	defer rows.Close()

	var out []*vendor.Quotation
	for rows.Next() {
		var (
			q           vendor.Quotation
			submittedAt int64
		)
		if err := rows.Scan(&q.ID, &q.ProposalID, &q.Vendor.ID, &q.Amount, &q.Notes, &q.SubmittedBy, &submittedAt); err != nil {
			return nil, workflow.NewStoreError("sqlite", "list_quotations", err)
		}
		q.SubmittedAt = time.Unix(0, submittedAt).UTC()
		out = append(out, &q)
	}
	if err := rows.Err(); err != nil {
		return nil, workflow.NewStoreError("sqlite", "list_quotations", err)
	}
	return out, nil
}

// SaveVendors implements workflow.Store.
func (s *SQLiteStore) SaveVendors(ctx context.Context, vendors []vendor.Vendor) error {
	return s.withTx(ctx, "save_vendors", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO vendors (id, name, category, rating, reliability, price_index, past_orders, active)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				name = excluded.name,
				category = excluded.category,
				rating = excluded.rating,
				reliability = excluded.reliability,
				price_index = excluded.price_index,
				past_orders = excluded.past_orders,
				active = excluded.active`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, v := range vendors {
			if _, err := stmt.ExecContext(ctx, v.ID, v.Name, string(v.Category), v.Rating,
				v.Reliability, v.PriceIndex, v.PastOrders, v.Active); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListVendors implements workflow.Store.
func (s *SQLiteStore) ListVendors(ctx context.Context, category vendor.Category) ([]vendor.Vendor, error) {
	query := `SELECT id, name, category, rating, reliability, price_index, past_orders, active FROM vendors`
	var args []any
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, string(category))
	}
	query += ` ORDER BY name, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, workflow.NewStoreError("sqlite", "list_vendors", err)
	}
	defer rows.Close()

	var out []vendor.Vendor
	for rows.Next() {
		var (
			v   vendor.Vendor
			cat string
		)
		if err := rows.Scan(&v.ID, &v.Name, &cat, &v.Rating, &v.Reliability, &v.PriceIndex, &v.PastOrders, &v.Active); err != nil {
			return nil, workflow.NewStoreError("sqlite", "list_vendors", err)
		}
		v.Category = vendor.Category(cat)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, workflow.NewStoreError("sqlite", "list_vendors", err)
	}
	return out, nil
}

// Ping implements workflow.Store.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return workflow.NewStoreError("sqlite", "ping", err)
	}
	return nil
}

// Close stops the checkpoint loop and closes the database. Close is
// idempotent.
func (s *SQLiteStore) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		closeErr = s.db.Close()
	})
	return closeErr
}

func (s *SQLiteStore) withTx(ctx context.Context, op string, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return workflow.NewStoreError("sqlite", op, err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return workflow.NewStoreError("sqlite", op, err)
	}
	if err := tx.Commit(); err != nil {
		return workflow.NewStoreError("sqlite", op, err)
	}
	return nil
}

func upsertProposal(ctx context.Context, tx *sql.Tx, p *proposal.Proposal) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal proposal: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO proposals (id, status, category, department, submitted_by, revision, created_at_ns, updated_at_ns, document)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			category = excluded.category,
			department = excluded.department,
			submitted_by = excluded.submitted_by,
			revision = excluded.revision,
			updated_at_ns = excluded.updated_at_ns,
			document = excluded.document`,
		p.ID, string(p.Status), string(p.Category), p.Department, p.SubmittedBy, p.Revision,
		p.CreatedAt.UnixNano(), p.UpdatedAt.UnixNano(), string(doc))
	return err
}

func upsertStep(ctx context.Context, tx *sql.Tx, st *workflow.Step) error {
	var decidedAt sql.NullInt64
	if st.DecidedAt != nil {
		decidedAt = sql.NullInt64{Int64: st.DecidedAt.UnixNano(), Valid: true}
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO steps (`+stepColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			approver = excluded.approver,
			status = excluded.status,
			comment = excluded.comment,
			decided_by = excluded.decided_by,
			decided_at_ns = excluded.decided_at_ns`,
		st.ID, st.ProposalID, st.Generation, st.Order, string(st.Role), st.Approver,
		string(st.Status), st.Comment, st.DecidedBy, decidedAt, st.CreatedAt.UnixNano())
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStep(row rowScanner) (*workflow.Step, error) {
	var (
		st        workflow.Step
		role      string
		status    string
		decidedAt sql.NullInt64
		createdAt int64
	)
	if err := row.Scan(&st.ID, &st.ProposalID, &st.Generation, &st.Order, &role, &st.Approver,
		&status, &st.Comment, &st.DecidedBy, &decidedAt, &createdAt); err != nil {
		return nil, err
	}
	st.Role = policy.Role(role)
	st.Status = workflow.StepStatus(status)
	st.CreatedAt = time.Unix(0, createdAt).UTC()
	if decidedAt.Valid {
		t := time.Unix(0, decidedAt.Int64).UTC()
		st.DecidedAt = &t
	}
	return &st, nil
}

func decodeProposal(doc string) (*proposal.Proposal, error) {
	var p proposal.Proposal
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return nil, workflow.NewStoreError("sqlite", "decode_proposal", err)
	}
	return &p, nil
}

func decodeOrder(doc string) (*procurement.Order, error) {
	var o procurement.Order
	if err := json.Unmarshal([]byte(doc), &o); err != nil {
		return nil, workflow.NewStoreError("sqlite", "decode_order", err)
	}
	return &o, nil
}
