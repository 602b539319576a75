// Package services holds the session-scoped dashboard pipeline: upload,
// mapping, normalization, metrics, insights and export, one session per
// dataset.
package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"loanpulse/internal/analytics"
	"loanpulse/internal/config"
	"loanpulse/internal/dataprocessing"
	"loanpulse/internal/exporter"
	"loanpulse/internal/infrastructure"
	"loanpulse/internal/insights"
	"loanpulse/internal/mapper"
	"loanpulse/internal/sampledata"
	"loanpulse/pkg/contracts/domain"
)

// Session is one dataset's pipeline state. A failed upload or
// normalization never clears the last good record set.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Table    *domain.RawTable        `json:"-"`
	Proposal *domain.MappingProposal `json:"proposal,omitempty"`
	Records  *domain.RecordSet       `json:"-"`
}

// SessionService runs the analysis pipeline over in-memory sessions
type SessionService struct {
	cfg    *config.Config
	logger *slog.Logger

	mapper     *mapper.Mapper
	reader     *dataprocessing.Reader
	normalizer *dataprocessing.Normalizer

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionService creates the service and its pipeline components
func NewSessionService(cfg *config.Config, logger *slog.Logger) *SessionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{
		cfg:        cfg,
		logger:     logger.With(slog.String("service", "session")),
		mapper:     mapper.New(cfg.Analysis.MinMappingConfidence, cfg.Analysis.ExtraAliases, logger),
		reader:     dataprocessing.NewReader(cfg.Analysis.MaxRows),
		normalizer: dataprocessing.NewNormalizer(cfg.Analysis, logger),
		sessions:   make(map[string]*Session),
	}
}

// CreateSession registers a new empty session
func (s *SessionService) CreateSession(ctx context.Context) *Session {
	now := time.Now().UTC()
	session := &Session{
		ID:        uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "session created", slog.String("session_id", session.ID))
	return session
}

// GetSession returns a point-in-time view of a session. The view shares
// the table, proposal and record set, all of which are immutable once
// published, so callers may read it without holding the service lock.
func (s *SessionService) GetSession(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	view := *session
	return &view, nil
}

// session returns the live session pointer. Callers must take s.mu
// before touching its fields.
func (s *SessionService) session(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Upload reads an uploaded CSV or XLSX file into the session and
// proposes a column mapping. On failure the session keeps its previous
// table, proposal and records.
func (s *SessionService) Upload(ctx context.Context, sessionID, filename string, src io.Reader) (*domain.MappingProposal, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	format, err := detectFormat(filename)
	if err != nil {
		return nil, err
	}

	var table *domain.RawTable
	switch format {
	case "xlsx":
		table, err = s.reader.ReadExcel(src, filename)
	default:
		table, err = s.reader.ReadCSV(src, filename)
	}
	if err != nil {
		return nil, err
	}

	proposal := s.mapper.ProposeMapping(table.Headers)

	s.mu.Lock()
	session.Table = table
	session.Proposal = proposal
	session.UpdatedAt = time.Now().UTC()
	s.mu.Unlock()

	infrastructure.UploadsTotal.WithLabelValues(format).Inc()
	s.logger.InfoContext(ctx, "table uploaded",
		slog.String("session_id", sessionID),
		slog.String("source", filename),
		slog.String("format", format),
		slog.Int("rows", table.RowCount()),
		slog.Int("mapped_fields", len(proposal.Mapping)))

	return proposal, nil
}

// LoadSample replaces the session's records with the built-in sample
// dataset, skipping upload and mapping entirely
func (s *SessionService) LoadSample(ctx context.Context, sessionID string) (*domain.RecordSet, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	set := sampledata.Generate()

	s.mu.Lock()
	session.Table = nil
	session.Proposal = nil
	session.Records = set
	session.UpdatedAt = time.Now().UTC()
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "sample dataset loaded",
		slog.String("session_id", sessionID),
		slog.Int("records", len(set.Records)))
	return set, nil
}

// OverrideMapping replaces one field's mapped column on the session's
// current proposal. An empty header clears the field.
func (s *SessionService) OverrideMapping(ctx context.Context, sessionID, field, header string) (*domain.MappingProposal, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	canonical, ok := parseField(field)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if session.Proposal == nil {
		return nil, ErrNoTable
	}
	// Override a clone and publish it; proposals already handed out to
	// concurrent normalizations or responses stay untouched.
	proposal := session.Proposal.Clone()
	if err := s.mapper.ApplyOverride(proposal, canonical, header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownHeader, err)
	}
	session.Proposal = proposal
	session.UpdatedAt = time.Now().UTC()

	s.logger.InfoContext(ctx, "mapping override applied",
		slog.String("session_id", sessionID),
		slog.String("field", field),
		slog.String("header", header))
	return proposal, nil
}

// Normalize validates the session's mapping and normalizes the uploaded
// table into canonical records. On any failure the previous record set
// stays in place.
func (s *SessionService) Normalize(ctx context.Context, sessionID string) (*domain.RecordSet, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	// Snapshot the mapping under the lock; the normalization pass runs
	// without it, so a concurrent override must not reach this copy.
	s.mu.RLock()
	table := session.Table
	var mapping domain.ColumnMapping
	if session.Proposal != nil {
		mapping = session.Proposal.Mapping.Clone()
	}
	s.mu.RUnlock()

	if table == nil || mapping == nil {
		return nil, ErrNoTable
	}
	if err := s.mapper.Validate(mapping); err != nil {
		return nil, err
	}

	set, err := s.normalizer.Normalize(table, mapping)
	if err != nil {
		return nil, err
	}
	dataprocessing.SortRecords(set.Records)

	s.mu.Lock()
	session.Records = set
	session.UpdatedAt = time.Now().UTC()
	s.mu.Unlock()

	infrastructure.RowsNormalizedTotal.Add(float64(set.Summary.KeptRows))
	infrastructure.RowsDroppedTotal.WithLabelValues("missing_id").Add(float64(set.Summary.DroppedMissingID))
	infrastructure.RowsDroppedTotal.WithLabelValues("bad_date").Add(float64(set.Summary.DroppedBadDate))
	infrastructure.RowsDroppedTotal.WithLabelValues("bad_amount").Add(float64(set.Summary.DroppedBadAmount))

	return set, nil
}

// Metrics computes the metric snapshot for the session's record set.
// An empty period defaults to month.
func (s *SessionService) Metrics(ctx context.Context, sessionID, period string) (*domain.MetricSet, error) {
	set, err := s.records(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	trendPeriod, err := parsePeriod(period)
	if err != nil {
		return nil, err
	}
	return analytics.BuildMetricSet(set.Records, s.cfg.Analysis, trendPeriod), nil
}

// Insights generates the ordered insight and recommendation lists from
// a fresh metric snapshot
func (s *SessionService) Insights(ctx context.Context, sessionID string) ([]domain.Insight, []domain.Recommendation, error) {
	metricSet, err := s.Metrics(ctx, sessionID, "")
	if err != nil {
		return nil, nil, err
	}
	found := insights.Generate(metricSet, insights.ThresholdsFromConfig(s.cfg.Analysis))
	recs := insights.Recommend(found, s.cfg.Analysis.MinRecommendations)
	return found, recs, nil
}

// Export serializes the session's records (csv) or the full metric
// snapshot (xlsx) to w
func (s *SessionService) Export(ctx context.Context, sessionID, format string, w io.Writer) error {
	set, err := s.records(ctx, sessionID)
	if err != nil {
		return err
	}

	switch format {
	case "csv":
		err = exporter.WriteRecordsCSV(w, set)
	case "metrics-csv":
		metricSet, merr := s.Metrics(ctx, sessionID, "")
		if merr != nil {
			return merr
		}
		err = exporter.WriteMetricsCSV(w, metricSet)
	case "xlsx":
		metricSet, merr := s.Metrics(ctx, sessionID, "")
		if merr != nil {
			return merr
		}
		found := insights.Generate(metricSet, insights.ThresholdsFromConfig(s.cfg.Analysis))
		err = exporter.WriteWorkbook(w, set, metricSet, found)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return err
	}

	infrastructure.ExportsTotal.WithLabelValues(format).Inc()
	s.logger.InfoContext(ctx, "export written",
		slog.String("session_id", sessionID),
		slog.String("format", format),
		slog.Int("records", len(set.Records)))
	return nil
}

// records returns the session's normalized record set or ErrNoRecords
func (s *SessionService) records(ctx context.Context, sessionID string) (*domain.RecordSet, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if session.Records == nil || len(session.Records.Records) == 0 {
		return nil, ErrNoRecords
	}
	return session.Records, nil
}

// detectFormat resolves the upload format from the file extension
func detectFormat(filename string) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt", "":
		return "csv", nil
	case ".xlsx", ".xlsm":
		return "xlsx", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

func parseField(name string) (domain.CanonicalField, bool) {
	field := domain.CanonicalField(name)
	switch field {
	case domain.FieldApplicationID, domain.FieldApplicationDate, domain.FieldDecisionDate,
		domain.FieldStatus, domain.FieldLoanAmount, domain.FieldRejectionReason,
		domain.FieldCreditScore, domain.FieldIncome, domain.FieldLoanPurpose:
		return field, true
	}
	return "", false
}

func parsePeriod(period string) (domain.TrendPeriod, error) {
	switch period {
	case "":
		return domain.PeriodMonth, nil
	case string(domain.PeriodDay):
		return domain.PeriodDay, nil
	case string(domain.PeriodWeek):
		return domain.PeriodWeek, nil
	case string(domain.PeriodMonth):
		return domain.PeriodMonth, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}
}
