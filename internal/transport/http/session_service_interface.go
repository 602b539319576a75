package http

import (
	"context"
	"io"

	"loanpulse/internal/services"
	"loanpulse/pkg/contracts/domain"
)

// SessionServiceInterface defines the session pipeline operations the
// dashboard handler depends on
type SessionServiceInterface interface {
	CreateSession(ctx context.Context) *services.Session
	GetSession(ctx context.Context, id string) (*services.Session, error)
	Upload(ctx context.Context, sessionID, filename string, src io.Reader) (*domain.MappingProposal, error)
	LoadSample(ctx context.Context, sessionID string) (*domain.RecordSet, error)
	OverrideMapping(ctx context.Context, sessionID, field, header string) (*domain.MappingProposal, error)
	Normalize(ctx context.Context, sessionID string) (*domain.RecordSet, error)
	Metrics(ctx context.Context, sessionID, period string) (*domain.MetricSet, error)
	Insights(ctx context.Context, sessionID string) ([]domain.Insight, []domain.Recommendation, error)
	Export(ctx context.Context, sessionID, format string, w io.Writer) error
}
