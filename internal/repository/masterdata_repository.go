package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/admission-portal-api/internal/models"
)

// MasterDataRepository serves every lookup table through its KindSpec.
type MasterDataRepository struct {
	db *sqlx.DB
}

// NewMasterDataRepository constructs the repository.
func NewMasterDataRepository(db *sqlx.DB) *MasterDataRepository {
	return &MasterDataRepository{db: db}
}

func recordColumns(kindSpec models.KindSpec) string {
	sequence := "NULL::INTEGER AS sequence"
	if kindSpec.HasSequence {
		sequence = "sequence"
	}
	return fmt.Sprintf(`id, %q AS label, %s, status, created_at, updated_at`, kindSpec.LabelColumn, sequence)
}

func orderBy(kindSpec models.KindSpec) string {
	if kindSpec.HasSequence {
		return fmt.Sprintf(" ORDER BY sequence NULLS LAST, %q", kindSpec.LabelColumn)
	}
	return fmt.Sprintf(" ORDER BY %q", kindSpec.LabelColumn)
}

func withKind(kindSpec models.KindSpec, records []models.MasterDataRecord) []models.MasterDataRecord {
	for i := range records {
		records[i].Kind = kindSpec.Kind
	}
	return records
}

// List returns a page of records and the total count.
func (r *MasterDataRepository) List(ctx context.Context, kindSpec models.KindSpec, filter models.MasterDataFilter) ([]models.MasterDataRecord, int, error) {
	conditions := make([]string, 0, 2)
	args := make([]interface{}, 0, 2)
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+strings.ToLower(s)+"%")
		conditions = append(conditions, fmt.Sprintf("LOWER(%q) LIKE $%d", kindSpec.LabelColumn, len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	page, size := models.NormalizePage(filter.Page, filter.Size)
	query := fmt.Sprintf("SELECT %s FROM %s%s%s LIMIT %d OFFSET %d",
		recordColumns(kindSpec), kindSpec.Table, where, orderBy(kindSpec), size, (page-1)*size)
	var records []models.MasterDataRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", kindSpec.Kind, err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) FROM %s%s", kindSpec.Table, where), args...); err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", kindSpec.Kind, err)
	}
	return withKind(kindSpec, records), total, nil
}

// ListAll returns every record of the kind, used for export.
func (r *MasterDataRepository) ListAll(ctx context.Context, kindSpec models.KindSpec) ([]models.MasterDataRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM %s%s", recordColumns(kindSpec), kindSpec.Table, orderBy(kindSpec))
	var records []models.MasterDataRecord
	if err := r.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("export %s: %w", kindSpec.Kind, err)
	}
	return withKind(kindSpec, records), nil
}

// ListActive returns the dropdown options of a kind.
func (r *MasterDataRepository) ListActive(ctx context.Context, kindSpec models.KindSpec) ([]models.LookupOption, error) {
	query := fmt.Sprintf("SELECT id, %q AS label FROM %s WHERE status = $1%s", kindSpec.LabelColumn, kindSpec.Table, orderBy(kindSpec))
	var options []models.LookupOption
	if err := r.db.SelectContext(ctx, &options, query, models.RecordStatusActive); err != nil {
		return nil, fmt.Errorf("lookup %s: %w", kindSpec.Kind, err)
	}
	return options, nil
}

// ActiveIDs reports which of ids exist with ACTIVE status.
func (r *MasterDataRepository) ActiveIDs(ctx context.Context, kindSpec models.KindSpec, ids []string) (map[string]bool, error) {
	active := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return active, nil
	}
	query := fmt.Sprintf("SELECT id FROM %s WHERE status = $1 AND id = ANY($2)", kindSpec.Table)
	var found []string
	if err := r.db.SelectContext(ctx, &found, query, models.RecordStatusActive, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("check active %s: %w", kindSpec.Kind, err)
	}
	for _, id := range found {
		active[id] = true
	}
	return active, nil
}

// GetByID fetches one record. Missing rows return sql.ErrNoRows.
func (r *MasterDataRepository) GetByID(ctx context.Context, kindSpec models.KindSpec, id string) (*models.MasterDataRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", recordColumns(kindSpec), kindSpec.Table)
	var record models.MasterDataRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get %s: %w", kindSpec.Kind, err)
	}
	record.Kind = kindSpec.Kind
	return &record, nil
}

// Create inserts a record.
func (r *MasterDataRepository) Create(ctx context.Context, kindSpec models.KindSpec, record *models.MasterDataRecord) error {
	return insertRecord(ctx, r.db, kindSpec, record)
}

func insertRecord(ctx context.Context, ext sqlx.ExecerContext, kindSpec models.KindSpec, record *models.MasterDataRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Status == "" {
		record.Status = models.RecordStatusActive
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	record.Kind = kindSpec.Kind

	var err error
	if kindSpec.HasSequence {
		query := fmt.Sprintf("INSERT INTO %s (id, %q, sequence, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)", kindSpec.Table, kindSpec.LabelColumn)
		_, err = ext.ExecContext(ctx, query, record.ID, record.Label, record.Sequence, record.Status, now, now)
	} else {
		query := fmt.Sprintf("INSERT INTO %s (id, %q, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)", kindSpec.Table, kindSpec.LabelColumn)
		_, err = ext.ExecContext(ctx, query, record.ID, record.Label, record.Status, now, now)
	}
	if err != nil {
		return fmt.Errorf("create %s: %w", kindSpec.Kind, err)
	}
	return nil
}

// Update changes label and sequence.
func (r *MasterDataRepository) Update(ctx context.Context, kindSpec models.KindSpec, record *models.MasterDataRecord) error {
	record.UpdatedAt = time.Now().UTC()
	var (
		res sql.Result
		err error
	)
	if kindSpec.HasSequence {
		query := fmt.Sprintf("UPDATE %s SET %q = $2, sequence = $3, updated_at = $4 WHERE id = $1", kindSpec.Table, kindSpec.LabelColumn)
		res, err = r.db.ExecContext(ctx, query, record.ID, record.Label, record.Sequence, record.UpdatedAt)
	} else {
		query := fmt.Sprintf("UPDATE %s SET %q = $2, updated_at = $3 WHERE id = $1", kindSpec.Table, kindSpec.LabelColumn)
		res, err = r.db.ExecContext(ctx, query, record.ID, record.Label, record.UpdatedAt)
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", kindSpec.Kind, err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetStatus changes the lifecycle status of a record.
func (r *MasterDataRepository) SetStatus(ctx context.Context, kindSpec models.KindSpec, id string, status models.RecordStatus) error {
	query := fmt.Sprintf("UPDATE %s SET status = $2, updated_at = $3 WHERE id = $1", kindSpec.Table)
	res, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set %s status: %w", kindSpec.Kind, err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// BulkInsert stores all records or none of them.
func (r *MasterDataRepository) BulkInsert(ctx context.Context, kindSpec models.KindSpec, records []models.MasterDataRecord) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import %s: %w", kindSpec.Kind, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i := range records {
		if err = insertRecord(ctx, tx, kindSpec, &records[i]); err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit import %s: %w", kindSpec.Kind, err)
	}
	return nil
}
