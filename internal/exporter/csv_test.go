package exporter

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"loanpulse/pkg/contracts/domain"
)

func testRecordSet(t *testing.T) *domain.RecordSet {
	t.Helper()
	appDate, err := time.Parse("2006-01-02", "2024-01-10")
	require.NoError(t, err)
	decDate := appDate.AddDate(0, 0, 5)
	amount := 25000.0

	return &domain.RecordSet{
		Records: []domain.LoanRecord{
			{
				ApplicationID:   "LN-001",
				ApplicationDate: appDate,
				DecisionDate:    &decDate,
				Status:          domain.StatusApproved,
				LoanAmount:      &amount,
				Attributes: map[string]float64{
					string(domain.FieldCreditScore): 720,
					string(domain.FieldIncome):      85000,
				},
				Labels: map[string]string{
					string(domain.FieldLoanPurpose): "Home Improvement",
				},
			},
			{
				ApplicationID:   "LN-002",
				ApplicationDate: appDate,
				Status:          domain.StatusRejected,
				RejectionReason: "Low credit score",
			},
		},
		Summary: domain.NormalizationSummary{TotalRows: 2, KeptRows: 2},
	}
}

func testMetricSet() *domain.MetricSet {
	return &domain.MetricSet{
		GeneratedAt: time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC),
		Summary: domain.SummaryMetrics{
			TotalApplications: 2,
			ApprovedCount:     1,
			RejectedCount:     1,
			ApprovalRate:      0.5,
		},
		ProcessingTime: domain.ProcessingTimeStats{
			Count:    1,
			MeanDays: 5,
			Histogram: []domain.HistogramBucket{
				{Label: "0-1d", FromDays: 0, ToDays: 1, Count: 0},
				{Label: "1d+", FromDays: 1, ToDays: -1, Count: 1},
			},
		},
		RejectionReasons: []domain.ReasonCount{
			{Reason: "low credit score", Count: 1, Share: 1},
		},
		Trend: []domain.TrendPoint{
			{Period: "2024-01", Total: 2, Approved: 1, Rejected: 1, ApprovalRate: 0.5},
		},
		TrendPeriod: domain.PeriodMonth,
		Correlations: []domain.CorrelationResult{
			{Attribute: "credit_score", Coefficient: 0.42, SampleSize: 2},
			{Attribute: "income", Omitted: true, Reason: "insufficient data"},
		},
		AmountsByStatus: []domain.AmountStats{
			{Status: domain.StatusApproved, Count: 1, Mean: 25000, Median: 25000, Min: 25000, Max: 25000},
		},
	}
}

func TestWriteRecordsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRecordsCSV(&buf, testRecordSet(t)))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\xEF\xBB\xBF"), "records CSV must start with a BOM")

	rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(out, "\xEF\xBB\xBF"))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, recordHeaders, rows[0])

	first := rows[1]
	assert.Equal(t, "LN-001", first[0])
	assert.Equal(t, "2024-01-10", first[1])
	assert.Equal(t, "2024-01-15", first[2])
	assert.Equal(t, "approved", first[3])
	assert.Equal(t, "25000", first[4])
	assert.Equal(t, "", first[5])
	assert.Equal(t, "720", first[6])
	assert.Equal(t, "85000", first[7])
	assert.Equal(t, "Home Improvement", first[8])

	second := rows[2]
	assert.Equal(t, "LN-002", second[0])
	assert.Equal(t, "", second[2], "missing decision date stays blank")
	assert.Equal(t, "Low credit score", second[5])
}

func TestWriteMetricsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMetricsCSV(&buf, testMetricSet()))

	out := buf.String()
	for _, section := range []string{
		"SUMMARY",
		"PROCESSING TIME",
		"PROCESSING TIME HISTOGRAM",
		"REJECTION REASONS",
		"APPROVAL TREND (month)",
		"CORRELATIONS",
		"LOAN AMOUNTS BY STATUS",
	} {
		assert.Contains(t, out, section)
	}

	assert.Contains(t, out, "low credit score,1,1")
	assert.Contains(t, out, "2024-01,2,1,1,0.5")
	assert.Contains(t, out, "income,0,0,true,insufficient data")
}

func TestWriteWorkbook(t *testing.T) {
	insights := []domain.Insight{
		{Category: "approval_rate", Severity: domain.SeverityHigh, Message: "Approval rate is low"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, testRecordSet(t), testMetricSet(), insights))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	for _, name := range []string{"Loan Data", "Summary", "Rejection Reasons", "Approval Trend", "Insights"} {
		assert.Contains(t, sheets, name)
	}
	assert.NotContains(t, sheets, "Sheet1")

	rows, err := f.GetRows("Loan Data")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, recordHeaders, rows[0])
	assert.Equal(t, "LN-001", rows[1][0])

	insightRows, err := f.GetRows("Insights")
	require.NoError(t, err)
	require.Len(t, insightRows, 2)
	assert.Equal(t, []string{"approval_rate", "high", "Approval rate is low"}, insightRows[1])
}
