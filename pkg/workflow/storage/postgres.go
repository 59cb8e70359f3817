package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"mercator-hq/quorum/pkg/policy"
	"mercator-hq/quorum/pkg/procurement"
	"mercator-hq/quorum/pkg/proposal"
	"mercator-hq/quorum/pkg/vendor"
	"mercator-hq/quorum/pkg/workflow"
)

// PostgresConfig configures the Postgres workflow store.
type PostgresConfig struct {
	// DSN is a libpq connection string or URL.
	DSN string

	// MaxOpenConns caps the connection pool.
	// Default: 10
	MaxOpenConns int

	// ConnectAttempts is how many times to try the initial connection.
	// Default: 5
	ConnectAttempts int

	// RetryDelay is the pause between connection attempts.
	// Default: 2 seconds
	RetryDelay time.Duration
}

type proposalRecord struct {
	ID          string             `gorm:"primaryKey;type:text"`
	Status      string             `gorm:"size:32;not null;index"`
	Category    string             `gorm:"size:64;not null;index"`
	Department  string             `gorm:"size:128;index"`
	SubmittedBy string             `gorm:"size:128;not null;index"`
	Revision    int                `gorm:"not null"`
	CreatedAt   time.Time          `gorm:"not null;index"`
	UpdatedAt   time.Time          `gorm:"not null;autoUpdateTime:false"`
	Document    *proposal.Proposal `gorm:"type:jsonb;serializer:json;not null"`
}

func (proposalRecord) TableName() string { return "proposals" }

type stepRecord struct {
	ID         string `gorm:"primaryKey;type:text"`
	ProposalID string `gorm:"type:text;not null;uniqueIndex:idx_step_position,priority:1"`
	Generation int    `gorm:"not null;uniqueIndex:idx_step_position,priority:2"`
	StepOrder  int    `gorm:"not null;uniqueIndex:idx_step_position,priority:3"`
	Role       string `gorm:"size:64;not null"`
	Approver   string `gorm:"size:128"`
	Status     string `gorm:"size:32;not null"`
	Comment    string `gorm:"type:text"`
	DecidedBy  string `gorm:"size:128"`
	DecidedAt  *time.Time
	CreatedAt  time.Time `gorm:"not null"`
}

func (stepRecord) TableName() string { return "steps" }

type orderRecord struct {
	ProposalID   string             `gorm:"primaryKey;type:text"`
	ID           string             `gorm:"type:text;not null;uniqueIndex"`
	TotalAmount  float64            `gorm:"not null"`
	ERPReference string             `gorm:"size:32;not null"`
	CreatedAt    time.Time          `gorm:"not null;index"`
	Document     *procurement.Order `gorm:"type:jsonb;serializer:json;not null"`
}

func (orderRecord) TableName() string { return "orders" }

type vendorRecord struct {
	ID          string  `gorm:"primaryKey;type:text"`
	Name        string  `gorm:"size:255;not null"`
	Category    string  `gorm:"size:64;not null;index"`
	Rating      float64 `gorm:"not null"`
	Reliability float64 `gorm:"not null"`
	PriceIndex  float64 `gorm:"not null"`
	PastOrders  int     `gorm:"not null"`
	Active      bool    `gorm:"not null"`
}

func (vendorRecord) TableName() string { return "vendors" }

type quotationRecord struct {
	ID          string    `gorm:"primaryKey;type:text"`
	ProposalID  string    `gorm:"type:text;not null;index"`
	VendorID    string    `gorm:"type:text;not null"`
	Amount      float64   `gorm:"not null"`
	Notes       string    `gorm:"type:text"`
	SubmittedBy string    `gorm:"size:128"`
	SubmittedAt time.Time `gorm:"not null;index"`
}

func (quotationRecord) TableName() string { return "quotations" }

// PostgresStore implements workflow.Store on PostgreSQL through gorm. It
// suits deployments where several services read the same workflow state.
type PostgresStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewPostgresStore connects, retrying per cfg, and migrates the schema.
func NewPostgresStore(cfg *PostgresConfig) (*PostgresStore, error) {
	if cfg == nil || cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn cannot be empty")
	}
	attempts := cfg.ConnectAttempts
	if attempts <= 0 {
		attempts = 5
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = 2 * time.Second
	}

	log := slog.Default().With("component", "workflow.storage.postgres")

	var (
		db  *gorm.DB
		err error
	)
	for i := 1; i <= attempts; i++ {
		db, err = gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err == nil {
			break
		}
		log.Warn("postgres connect failed", "attempt", i, "max_attempts", attempts, "error", err)
		if i < attempts {
			time.Sleep(delay)
		}
	}
	if err != nil {
		return nil, workflow.NewStoreError("postgres", "open", err)
	}

	return newPostgresStore(db, cfg.MaxOpenConns, log)
}

func newPostgresStore(db *gorm.DB, maxOpen int, log *slog.Logger) (*PostgresStore, error) {
	if maxOpen <= 0 {
		maxOpen = 10
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, workflow.NewStoreError("postgres", "open", err)
	}
	sqlDB.SetMaxOpenConns(maxOpen)

	if err := db.AutoMigrate(&proposalRecord{}, &stepRecord{}, &orderRecord{}, &vendorRecord{}, &quotationRecord{}); err != nil {
		return nil, workflow.NewStoreError("postgres", "migrate", err)
	}

	log.Info("workflow store opened", "backend", "postgres")
	return &PostgresStore{db: db, logger: log}, nil
}

// SaveProposal implements workflow.Store.
func (s *PostgresStore) SaveProposal(ctx context.Context, p *proposal.Proposal, steps ...*workflow.Step) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsert(tx, toProposalRecord(p)); err != nil {
			return err
		}
		for _, st := range steps {
			if err := upsert(tx, toStepRecord(st)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return workflow.NewStoreError("postgres", "save_proposal", err)
	}
	return nil
}

// GetProposal implements workflow.Store.
func (s *PostgresStore) GetProposal(ctx context.Context, id string) (*proposal.Proposal, error) {
	var rec proposalRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &workflow.NotFoundError{Kind: "proposal", ID: id}
	}
	if err != nil {
		return nil, workflow.NewStoreError("postgres", "get_proposal", err)
	}
	return rec.Document, nil
}

// ListProposals implements workflow.Store.
func (s *PostgresStore) ListProposals(ctx context.Context, filter workflow.ProposalFilter) ([]*proposal.Proposal, error) {
	q := s.db.WithContext(ctx).Model(&proposalRecord{})
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		q = q.Where("status IN ?", statuses)
	}
	if filter.Category != "" {
		q = q.Where("category = ?", string(filter.Category))
	}
	if filter.Department != "" {
		q = q.Where("department = ?", filter.Department)
	}
	if filter.SubmittedBy != "" {
		q = q.Where("submitted_by = ?", filter.SubmittedBy)
	}
	if filter.Since != nil {
		q = q.Where("created_at >= ?", *filter.Since)
	}
	q = q.Order("created_at DESC").Order("id ASC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var recs []proposalRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, workflow.NewStoreError("postgres", "list_proposals", err)
	}
	out := make([]*proposal.Proposal, len(recs))
	for i := range recs {
		out[i] = recs[i].Document
	}
	return out, nil
}

// GetStep implements workflow.Store.
func (s *PostgresStore) GetStep(ctx context.Context, id string) (*workflow.Step, error) {
	var rec stepRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &workflow.NotFoundError{Kind: "step", ID: id}
	}
	if err != nil {
		return nil, workflow.NewStoreError("postgres", "get_step", err)
	}
	return rec.toStep(), nil
}

// ListSteps implements workflow.Store.
func (s *PostgresStore) ListSteps(ctx context.Context, proposalID string, generation int) ([]*workflow.Step, error) {
	q := s.db.WithContext(ctx).Where("proposal_id = ?", proposalID)
	if generation > 0 {
		q = q.Where("generation = ?", generation)
	}
	var recs []stepRecord
	if err := q.Order("generation").Order("step_order").Find(&recs).Error; err != nil {
		return nil, workflow.NewStoreError("postgres", "list_steps", err)
	}
	out := make([]*workflow.Step, len(recs))
	for i := range recs {
		out[i] = recs[i].toStep()
	}
	return out, nil
}

// DecideStep implements workflow.Store. Both updates carry a status
// condition so a decision committed first by another process wins.
func (s *PostgresStore) DecideStep(ctx context.Context, p *proposal.Proposal, step *workflow.Step) error {
	var conflict error
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&stepRecord{ID: step.ID}).
			Where("status = ?", string(workflow.StepPending)).
			Select("status", "comment", "decided_by", "decided_at").
			Updates(toStepRecord(step))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			conflict = workflow.ErrAlreadyDecided
			return conflict
		}

		rec := toProposalRecord(p)
		res = tx.Model(&proposalRecord{ID: p.ID}).
			Where("status = ?", string(proposal.StatusInReview)).
			Select("status", "revision", "updated_at", "document").
			Updates(rec)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			conflict = workflow.ErrOutOfOrder
			return conflict
		}
		return nil
	})
	if conflict != nil {
		return conflict
	}
	if err != nil {
		return workflow.NewStoreError("postgres", "decide_step", err)
	}
	return nil
}

// SaveOrder implements workflow.Store.
func (s *PostgresStore) SaveOrder(ctx context.Context, p *proposal.Proposal, o *procurement.Order) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsert(tx, toProposalRecord(p)); err != nil {
			return err
		}
		return upsert(tx, &orderRecord{
			ProposalID:   o.ProposalID,
			ID:           o.ID,
			TotalAmount:  o.TotalAmount,
			ERPReference: o.ERPReference,
			CreatedAt:    o.CreatedAt,
			Document:     o,
		})
	})
	if err != nil {
		return workflow.NewStoreError("postgres", "save_order", err)
	}
	return nil
}

// GetOrder implements workflow.Store.
func (s *PostgresStore) GetOrder(ctx context.Context, proposalID string) (*procurement.Order, error) {
	var rec orderRecord
	err := s.db.WithContext(ctx).First(&rec, "proposal_id = ?", proposalID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &workflow.NotFoundError{Kind: "order", ID: proposalID}
	}
	if err != nil {
		return nil, workflow.NewStoreError("postgres", "get_order", err)
	}
	return rec.Document, nil
}

// ListOrders implements workflow.Store.
func (s *PostgresStore) ListOrders(ctx context.Context) ([]*procurement.Order, error) {
	var recs []orderRecord
	if err := s.db.WithContext(ctx).Order("created_at").Order("id").Find(&recs).Error; err != nil {
		return nil, workflow.NewStoreError("postgres", "list_orders", err)
	}
	out := make([]*procurement.Order, len(recs))
	for i := range recs {
		out[i] = recs[i].Document
	}
	return out, nil
}

// SaveQuotation implements workflow.Store.
func (s *PostgresStore) SaveQuotation(ctx context.Context, q *vendor.Quotation) error {
	if err := s.db.WithContext(ctx).Create(toQuotationRecord(q)).Error; err != nil {
		return workflow.NewStoreError("postgres", "save_quotation", err)
	}
	return nil
}

// ListQuotations implements workflow.Store.
func (s *PostgresStore) ListQuotations(ctx context.Context, proposalID string) ([]*vendor.Quotation, error) {
	var recs []quotationRecord
	err := s.db.WithContext(ctx).Where("proposal_id = ?", proposalID).
		Order("submitted_at").Order("id").Find(&recs).Error
	if err != nil {
		return nil, workflow.NewStoreError("postgres", "list_quotations", err)
	}
	out := make([]*vendor.Quotation, len(recs))
	for i := range recs {
		out[i] = recs[i].toQuotation()
	}
	return out, nil
}

// SaveVendors implements workflow.Store.
func (s *PostgresStore) SaveVendors(ctx context.Context, vendors []vendor.Vendor) error {
	if len(vendors) == 0 {
		return nil
	}
	recs := make([]vendorRecord, len(vendors))
	for i, v := range vendors {
		recs[i] = toVendorRecord(v)
	}
	if err := upsert(s.db.WithContext(ctx), &recs); err != nil {
		return workflow.NewStoreError("postgres", "save_vendors", err)
	}
	return nil
}

// ListVendors implements workflow.Store.
func (s *PostgresStore) ListVendors(ctx context.Context, category vendor.Category) ([]vendor.Vendor, error) {
	q := s.db.WithContext(ctx)
	if category != "" {
		q = q.Where("category = ?", string(category))
	}
	var recs []vendorRecord
	if err := q.Order("name").Order("id").Find(&recs).Error; err != nil {
		return nil, workflow.NewStoreError("postgres", "list_vendors", err)
	}
	out := make([]vendor.Vendor, len(recs))
	for i := range recs {
		out[i] = recs[i].toVendor()
	}
	return out, nil
}

// Ping implements workflow.Store.
func (s *PostgresStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		return workflow.NewStoreError("postgres", "ping", err)
	}
	return nil
}

// Close implements workflow.Store.
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func upsert(tx *gorm.DB, value any) error {
	return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(value).Error
}

func toProposalRecord(p *proposal.Proposal) *proposalRecord {
	return &proposalRecord{
		ID:          p.ID,
		Status:      string(p.Status),
		Category:    string(p.Category),
		Department:  p.Department,
		SubmittedBy: p.SubmittedBy,
		Revision:    p.Revision,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		Document:    p,
	}
}

func toStepRecord(st *workflow.Step) *stepRecord {
	return &stepRecord{
		ID:         st.ID,
		ProposalID: st.ProposalID,
		Generation: st.Generation,
		StepOrder:  st.Order,
		Role:       string(st.Role),
		Approver:   st.Approver,
		Status:     string(st.Status),
		Comment:    st.Comment,
		DecidedBy:  st.DecidedBy,
		DecidedAt:  st.DecidedAt,
		CreatedAt:  st.CreatedAt,
	}
}

func (r *stepRecord) toStep() *workflow.Step {
	return &workflow.Step{
		ID:         r.ID,
		ProposalID: r.ProposalID,
		Generation: r.Generation,
		Order:      r.StepOrder,
		Role:       policy.Role(r.Role),
		Approver:   r.Approver,
		Status:     workflow.StepStatus(r.Status),
		Comment:    r.Comment,
		DecidedBy:  r.DecidedBy,
		DecidedAt:  r.DecidedAt,
		CreatedAt:  r.CreatedAt,
	}
}

func toVendorRecord(v vendor.Vendor) vendorRecord {
	return vendorRecord{
		ID:          v.ID,
		Name:        v.Name,
		Category:    string(v.Category),
		Rating:      v.Rating,
		Reliability: v.Reliability,
		PriceIndex:  v.PriceIndex,
		PastOrders:  v.PastOrders,
		Active:      v.Active,
	}
}

func (r *vendorRecord) toVendor() vendor.Vendor {
	return vendor.Vendor{
		ID:          r.ID,
		Name:        r.Name,
		Category:    vendor.Category(r.Category),
		Rating:      r.Rating,
		Reliability: r.Reliability,
		PriceIndex:  r.PriceIndex,
		PastOrders:  r.PastOrders,
		Active:      r.Active,
	}
}

func toQuotationRecord(q *vendor.Quotation) *quotationRecord {
	return &quotationRecord{
		ID:          q.ID,
		ProposalID:  q.ProposalID,
		VendorID:    q.Vendor.ID,
		Amount:      q.Amount,
		Notes:       q.Notes,
		SubmittedBy: q.SubmittedBy,
		SubmittedAt: q.SubmittedAt,
	}
}

func (r *quotationRecord) toQuotation() *vendor.Quotation {
	return &vendor.Quotation{
		ID:          r.ID,
		ProposalID:  r.ProposalID,
		Vendor:      vendor.Vendor{ID: r.VendorID},
		Amount:      r.Amount,
		Notes:       r.Notes,
		SubmittedBy: r.SubmittedBy,
		SubmittedAt: r.SubmittedAt.UTC(),
	}
}
