package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/admission-portal-api/internal/dto"
	"github.com/noah-isme/admission-portal-api/internal/models"
	appErrors "github.com/noah-isme/admission-portal-api/pkg/errors"
	"github.com/noah-isme/admission-portal-api/pkg/export"
)

type masterDataStore interface {
	List(ctx context.Context, kindSpec models.KindSpec, filter models.MasterDataFilter) ([]models.MasterDataRecord, int, error)
	ListAll(ctx context.Context, kindSpec models.KindSpec) ([]models.MasterDataRecord, error)
	ListActive(ctx context.Context, kindSpec models.KindSpec) ([]models.LookupOption, error)
	GetByID(ctx context.Context, kindSpec models.KindSpec, id string) (*models.MasterDataRecord, error)
	Create(ctx context.Context, kindSpec models.KindSpec, record *models.MasterDataRecord) error
	Update(ctx context.Context, kindSpec models.KindSpec, record *models.MasterDataRecord) error
	SetStatus(ctx context.Context, kindSpec models.KindSpec, id string, status models.RecordStatus) error
	BulkInsert(ctx context.Context, kindSpec models.KindSpec, records []models.MasterDataRecord) error
}

const workbookContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func lookupCacheKey(kind models.MasterDataKind) string {
	return fmt.Sprintf("lookup:%s", kind)
}

// MasterDataService manages the lookup tables behind the form dropdowns.
type MasterDataService struct {
	repo      masterDataStore
	cache     statsCache
	audit     auditWriter
	metrics   *MetricsService
	workbook  *export.WorkbookExporter
	lookupTTL time.Duration
	logger    *zap.Logger
}

// NewMasterDataService constructs the service. cache and audit may be nil.
func NewMasterDataService(repo masterDataStore, cache statsCache, audit auditWriter, metrics *MetricsService, lookupTTL time.Duration, logger *zap.Logger) *MasterDataService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if lookupTTL <= 0 {
		lookupTTL = 10 * time.Minute
	}
	return &MasterDataService{
		repo:      repo,
		cache:     cache,
		audit:     audit,
		metrics:   metrics,
		workbook:  export.NewWorkbookExporter(),
		lookupTTL: lookupTTL,
		logger:    logger,
	}
}

// Kind resolves a URL segment into its table definition.
func (s *MasterDataService) Kind(raw string) (models.KindSpec, error) {
	kindSpec, ok := models.LookupKind(raw)
	if !ok {
		return models.KindSpec{}, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("unknown master data kind %q", raw))
	}
	return kindSpec, nil
}

// List returns one page of records.
func (s *MasterDataService) List(ctx context.Context, kind string, query dto.MasterDataQuery) ([]models.MasterDataRecord, *models.Pagination, error) {
	kindSpec, err := s.Kind(kind)
	if err != nil {
		return nil, nil, err
	}
	filter := models.MasterDataFilter{Search: query.Search, Page: query.Page, Size: query.Size}
	if raw := strings.ToUpper(strings.TrimSpace(query.Status)); raw != "" {
		status := models.RecordStatus(raw)
		if !status.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "status must be ACTIVE, DISABLED or ARCHIVED")
		}
		filter.Status = &status
	}
	records, total, err := s.repo.List(ctx, kindSpec, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list master data")
	}
	if records == nil {
		records = []models.MasterDataRecord{}
	}
	return records, models.NewPagination(query.Page, query.Size, total), nil
}

// Lookups returns active options of a kind, served from cache when possible.
func (s *MasterDataService) Lookups(ctx context.Context, kind string) ([]models.LookupOption, error) {
	kindSpec, err := s.Kind(kind)
	if err != nil {
		return nil, err
	}
	key := lookupCacheKey(kindSpec.Kind)
	var options []models.LookupOption
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, key, &options); err == nil && hit {
			return options, nil
		}
	}
	options, err = s.repo.ListActive(ctx, kindSpec)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lookups")
	}
	if options == nil {
		options = []models.LookupOption{}
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, options, s.lookupTTL); err != nil {
			s.logger.Warn("failed to cache lookups", zap.String("kind", string(kindSpec.Kind)), zap.Error(err))
		}
	}
	return options, nil
}

// Create inserts a new active record.
func (s *MasterDataService) Create(ctx context.Context, session *models.Session, kind string, req dto.MasterDataRequest) (*models.MasterDataRecord, error) {
	kindSpec, err := s.Kind(kind)
	if err != nil {
		return nil, err
	}
	record, err := recordFromRequest(kindSpec, req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, kindSpec, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create master data")
	}
	s.changed(ctx, session, kindSpec, models.AuditActionMasterDataCreate, &record.ID, record)
	return record, nil
}

// Update replaces label and sequence of an existing record.
func (s *MasterDataService) Update(ctx context.Context, session *models.Session, kind, id string, req dto.MasterDataRequest) (*models.MasterDataRecord, error) {
	kindSpec, err := s.Kind(kind)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "id is required")
	}
	existing, err := s.get(ctx, kindSpec, id)
	if err != nil {
		return nil, err
	}
	update, err := recordFromRequest(kindSpec, req)
	if err != nil {
		return nil, err
	}
	existing.Label = update.Label
	if kindSpec.HasSequence {
		existing.Sequence = update.Sequence
	}
	if err := s.repo.Update(ctx, kindSpec, existing); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update master data")
	}
	s.changed(ctx, session, kindSpec, models.AuditActionMasterDataUpdate, &existing.ID, existing)
	return existing, nil
}

// SetStatus applies an explicit status, the legacy disabled flag, or flips
// between ACTIVE and DISABLED when neither is given.
func (s *MasterDataService) SetStatus(ctx context.Context, session *models.Session, kind, id string, req dto.MasterDataStatusRequest) (*models.MasterDataRecord, error) {
	kindSpec, err := s.Kind(kind)
	if err != nil {
		return nil, err
	}
	existing, err := s.get(ctx, kindSpec, id)
	if err != nil {
		return nil, err
	}
	next := nextStatus(existing.Status, req)
	if !next.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be ACTIVE, DISABLED or ARCHIVED")
	}
	if err := s.repo.SetStatus(ctx, kindSpec, existing.ID, next); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update status")
	}
	existing.Status = next
	s.changed(ctx, session, kindSpec, models.AuditActionMasterDataStatus, &existing.ID, existing)
	return existing, nil
}

func nextStatus(current models.RecordStatus, req dto.MasterDataStatusRequest) models.RecordStatus {
	switch {
	case req.Status != nil:
		return models.RecordStatus(strings.ToUpper(string(*req.Status)))
	case req.Disabled != nil && *req.Disabled:
		return models.RecordStatusDisabled
	case req.Disabled != nil:
		return models.RecordStatusActive
	case current == models.RecordStatusActive:
		return models.RecordStatusDisabled
	default:
		return models.RecordStatusActive
	}
}

// Import inserts every data row of the uploaded workbook or none of them.
func (s *MasterDataService) Import(ctx context.Context, session *models.Session, kind string, r io.Reader) (*dto.ImportResult, error) {
	kindSpec, err := s.Kind(kind)
	if err != nil {
		return nil, err
	}
	data, err := s.workbook.Parse(r, kindSpec.RequiredHeaders())
	if err != nil {
		var missing *export.MissingHeadersError
		if errors.As(err, &missing) {
			return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrInvalidHeaders, missing.Error()),
				map[string]interface{}{"missing": missing.Missing, "required": kindSpec.RequiredHeaders()})
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "file is not a readable workbook")
	}

	records := make([]models.MasterDataRecord, 0, len(data.Rows))
	for i, row := range data.Rows {
		label := row[kindSpec.LabelColumn]
		if label == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("row %d: %s is required", i+2, kindSpec.LabelColumn))
		}
		record := models.MasterDataRecord{Label: label, Status: models.RecordStatusActive}
		if kindSpec.HasSequence {
			if raw := row["sequence"]; raw != "" {
				seq, err := strconv.Atoi(raw)
				if err != nil {
					return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("row %d: sequence must be a number", i+2))
				}
				record.Sequence = &seq
			}
		}
		records = append(records, record)
	}
	if len(records) == 0 {
		return &dto.ImportResult{Kind: kindSpec.Kind}, nil
	}

	if err := s.repo.BulkInsert(ctx, kindSpec, records); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to import master data")
	}
	s.metrics.RecordImport(string(kindSpec.Kind), len(records))
	s.changed(ctx, session, kindSpec, models.AuditActionMasterDataImport, nil, map[string]int{"imported": len(records)})
	return &dto.ImportResult{Kind: kindSpec.Kind, Imported: len(records)}, nil
}

// Export renders the active rows of a kind into a single sheet workbook.
func (s *MasterDataService) Export(ctx context.Context, kind string) ([]byte, string, error) {
	kindSpec, err := s.Kind(kind)
	if err != nil {
		return nil, "", err
	}
	records, err := s.repo.ListAll(ctx, kindSpec)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export master data")
	}
	data := export.Dataset{Headers: kindSpec.ExportHeaders()}
	for _, record := range records {
		if record.Disabled() {
			continue
		}
		row := map[string]string{kindSpec.LabelColumn: record.Label}
		if kindSpec.HasSequence && record.Sequence != nil {
			row["sequence"] = strconv.Itoa(*record.Sequence)
		}
		data.Rows = append(data.Rows, row)
	}
	payload, err := s.workbook.Render(string(kindSpec.Kind), data)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render workbook")
	}
	return payload, string(kindSpec.Kind) + ".xlsx", nil
}

// ContentType is the media type of exported workbooks.
func (s *MasterDataService) ContentType() string {
	return workbookContentType
}

func (s *MasterDataService) get(ctx context.Context, kindSpec models.KindSpec, id string) (*models.MasterDataRecord, error) {
	record, err := s.repo.GetByID(ctx, kindSpec, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load master data")
	}
	return record, nil
}

func (s *MasterDataService) changed(ctx context.Context, session *models.Session, kindSpec models.KindSpec, action string, id *string, values interface{}) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, lookupCacheKey(kindSpec.Kind)); err != nil {
			s.logger.Warn("failed to invalidate lookup cache", zap.String("kind", string(kindSpec.Kind)), zap.Error(err))
		}
	}
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(values)
	entry := &models.AuditLog{
		UserID:     session.ActorID(),
		Action:     action,
		Resource:   string(kindSpec.Kind),
		ResourceID: id,
		NewValues:  payload,
		IPAddress:  sessionIP(session),
	}
	if session != nil {
		entry.UserAgent = session.UserAgent
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}

func recordFromRequest(kindSpec models.KindSpec, req dto.MasterDataRequest) (*models.MasterDataRecord, error) {
	label := strings.TrimSpace(req.ResolvedLabel())
	if label == "" {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, kindSpec.LabelColumn+" is required"),
			[]dto.FieldError{{Field: kindSpec.LabelColumn, Message: "is required"}})
	}
	record := &models.MasterDataRecord{Label: label, Status: models.RecordStatusActive, Kind: kindSpec.Kind}
	if kindSpec.HasSequence {
		record.Sequence = req.Sequence
	}
	return record, nil
}
