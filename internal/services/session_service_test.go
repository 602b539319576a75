package services

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanpulse/internal/config"
	"loanpulse/internal/dataprocessing"
	"loanpulse/internal/mapper"
	"loanpulse/pkg/contracts/domain"
)

const testCSV = "application_id,application_date,decision_date,status,loan_amount,rejection_reason\n" +
	"LN-001,2024-01-10,2024-01-15,Approved,25000,\n" +
	"LN-002,2024-01-11,2024-01-20,Rejected,18000,Low credit score\n" +
	"LN-003,2024-02-12,,Pending,30000,\n"

func newTestService() *SessionService {
	return NewSessionService(config.Default(), nil)
}

func uploadCSV(t *testing.T, svc *SessionService, sessionID, csv string) *domain.MappingProposal {
	t.Helper()
	proposal, err := svc.Upload(context.Background(), sessionID, "loans.csv", strings.NewReader(csv))
	require.NoError(t, err)
	return proposal
}

func TestSessionLifecycle(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	session := svc.CreateSession(ctx)
	require.NotEmpty(t, session.ID)

	got, err := svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)

	_, err = svc.GetSession(ctx, "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestUploadAndNormalize(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	session := svc.CreateSession(ctx)

	proposal := uploadCSV(t, svc, session.ID, testCSV)
	assert.Equal(t, "application_id", proposal.Mapping[domain.FieldApplicationID])
	assert.Equal(t, "status", proposal.Mapping[domain.FieldStatus])

	set, err := svc.Normalize(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, set.Records, 3)
	assert.Equal(t, 3, set.Summary.KeptRows)
	assert.Equal(t, domain.StatusApproved, set.Records[0].Status)
}

func TestUpload_UnsupportedExtension(t *testing.T) {
	svc := newTestService()
	session := svc.CreateSession(context.Background())

	_, err := svc.Upload(context.Background(), session.ID, "loans.pdf", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestUpload_BadTableKeepsPreviousState(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	session := svc.CreateSession(ctx)

	uploadCSV(t, svc, session.ID, testCSV)
	_, err := svc.Normalize(ctx, session.ID)
	require.NoError(t, err)

	_, err = svc.Upload(ctx, session.ID, "empty.csv", strings.NewReader(""))
	var validationErr *dataprocessing.ValidationError
	require.ErrorAs(t, err, &validationErr)

	// The previous table and records survive the failed upload
	set, err := svc.Metrics(ctx, session.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 3, set.Summary.TotalApplications)
}

func TestNormalize_WithoutUpload(t *testing.T) {
	svc := newTestService()
	session := svc.CreateSession(context.Background())

	_, err := svc.Normalize(context.Background(), session.ID)
	assert.ErrorIs(t, err, ErrNoTable)
}

func TestNormalize_IncompleteMapping(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	session := svc.CreateSession(ctx)

	// No header resembles a status column, so the required field stays
	// unmapped and normalization refuses to run.
	uploadCSV(t, svc, session.ID, "application_id,warehouse\nLN-001,west\n")

	_, err := svc.Normalize(ctx, session.ID)
	var mappingErr *mapper.MappingError
	require.ErrorAs(t, err, &mappingErr)
	assert.Equal(t, []domain.CanonicalField{domain.FieldStatus}, mappingErr.Missing)

	_, err = svc.Metrics(ctx, session.ID, "")
	assert.ErrorIs(t, err, ErrNoRecords, "failed normalization must not produce records")
}

func TestOverrideMapping(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	session := svc.CreateSession(ctx)

	uploadCSV(t, svc, session.ID, "application_id,outcome_code\nLN-001,approved\n")

	t.Run("unknown field", func(t *testing.T) {
		_, err := svc.OverrideMapping(ctx, session.ID, "bogus", "outcome_code")
		assert.ErrorIs(t, err, ErrUnknownField)
	})

	t.Run("unknown header", func(t *testing.T) {
		_, err := svc.OverrideMapping(ctx, session.ID, "status", "missing_column")
		assert.ErrorIs(t, err, ErrUnknownHeader)
	})

	t.Run("valid override enables normalization", func(t *testing.T) {
		proposal, err := svc.OverrideMapping(ctx, session.ID, "status", "outcome_code")
		require.NoError(t, err)
		assert.Equal(t, "outcome_code", proposal.Mapping[domain.FieldStatus])

		set, err := svc.Normalize(ctx, session.ID)
		require.NoError(t, err)
		require.Len(t, set.Records, 1)
		assert.Equal(t, domain.StatusApproved, set.Records[0].Status)
	})
}

func TestConcurrentOverrideAndNormalize(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	session := svc.CreateSession(ctx)
	uploadCSV(t, svc, session.ID, testCSV)

	// Overrides, session reads and normalizations race on one session;
	// run with -race to catch unsynchronized mapping access.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			header := "loan_amount"
			if i%2 == 1 {
				header = "rejection_reason"
			}
			_, err := svc.OverrideMapping(ctx, session.ID, "loan_purpose", header)
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			view, err := svc.GetSession(ctx, session.ID)
			assert.NoError(t, err)
			_, _ = view.Proposal.Mapping.Source(domain.FieldStatus)
		}
	}()
	for i := 0; i < 50; i++ {
		_, err := svc.Normalize(ctx, session.ID)
		require.NoError(t, err)
	}
	wg.Wait()

	set, err := svc.Normalize(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, set.Records, 3)
}

func TestLoadSample(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	session := svc.CreateSession(ctx)

	set, err := svc.LoadSample(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, set.Records, 500)

	metricSet, err := svc.Metrics(ctx, session.ID, "month")
	require.NoError(t, err)
	assert.Equal(t, 500, metricSet.Summary.TotalApplications)
	assert.NotEmpty(t, metricSet.Trend)
}

func TestMetrics_PeriodValidation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	session := svc.CreateSession(ctx)
	_, err := svc.LoadSample(ctx, session.ID)
	require.NoError(t, err)

	for _, period := range []string{"", "day", "week", "month"} {
		_, err := svc.Metrics(ctx, session.ID, period)
		assert.NoError(t, err, "period %q", period)
	}

	_, err = svc.Metrics(ctx, session.ID, "quarter")
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestInsights(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	session := svc.CreateSession(ctx)
	_, err := svc.LoadSample(ctx, session.ID)
	require.NoError(t, err)

	insights, recs, err := svc.Insights(ctx, session.ID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(recs), config.Default().Analysis.MinRecommendations)

	// Insight order is stable across repeated generation
	again, _, err := svc.Insights(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, insights, again)
}

func TestExport(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	session := svc.CreateSession(ctx)
	_, err := svc.LoadSample(ctx, session.ID)
	require.NoError(t, err)

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, svc.Export(ctx, session.ID, "csv", &buf))
		assert.Contains(t, buf.String(), "application_id")
	})

	t.Run("metrics-csv", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, svc.Export(ctx, session.ID, "metrics-csv", &buf))
		assert.Contains(t, buf.String(), "SUMMARY")
	})

	t.Run("xlsx", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, svc.Export(ctx, session.ID, "xlsx", &buf))
		assert.Greater(t, buf.Len(), 0)
	})

	t.Run("unknown format", func(t *testing.T) {
		var buf bytes.Buffer
		err := svc.Export(ctx, session.ID, "pdf", &buf)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("no records", func(t *testing.T) {
		empty := svc.CreateSession(ctx)
		var buf bytes.Buffer
		err := svc.Export(ctx, empty.ID, "csv", &buf)
		assert.ErrorIs(t, err, ErrNoRecords)
	})
}
