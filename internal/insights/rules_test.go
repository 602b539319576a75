package insights

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanpulse/internal/config"
	"loanpulse/pkg/contracts/domain"
)

func defaultThresholds() Thresholds {
	return ThresholdsFromConfig(config.Default().Analysis)
}

func healthyMetrics() *domain.MetricSet {
	return &domain.MetricSet{
		Summary: domain.SummaryMetrics{
			TotalApplications: 100,
			ApprovedCount:     60,
			RejectedCount:     40,
			ApprovalRate:      0.6,
		},
		ProcessingTime: domain.ProcessingTimeStats{
			Count:   100,
			P90Days: 12,
		},
		RejectionReasons: []domain.ReasonCount{
			{Reason: "low credit score", Count: 12, Share: 0.3},
			{Reason: "insufficient income", Count: 10, Share: 0.25},
		},
	}
}

func TestGenerate_HealthyMetricsQuiet(t *testing.T) {
	insights := Generate(healthyMetrics(), defaultThresholds())
	assert.Empty(t, insights)
}

func TestGenerate_NilMetricSet(t *testing.T) {
	assert.Nil(t, Generate(nil, defaultThresholds()))
}

func TestApprovalRateFloor(t *testing.T) {
	m := healthyMetrics()
	m.Summary.ApprovalRate = 0.25

	insights := Generate(m, defaultThresholds())
	require.Len(t, insights, 1)
	assert.Equal(t, "approval_rate", insights[0].Category)
	assert.Equal(t, domain.SeverityHigh, insights[0].Severity)
	assert.Contains(t, insights[0].Message, "25.0%")
}

func TestApprovalRateFloor_SkippedWithoutDecisions(t *testing.T) {
	m := healthyMetrics()
	m.Summary.ApprovedCount = 0
	m.Summary.RejectedCount = 0
	m.Summary.ApprovalRate = 0

	insights := Generate(m, defaultThresholds())
	assert.Empty(t, insights)
}

func TestProcessingP90Ceiling(t *testing.T) {
	m := healthyMetrics()
	m.ProcessingTime.P90Days = 35

	insights := Generate(m, defaultThresholds())
	require.Len(t, insights, 1)
	assert.Equal(t, "processing_time", insights[0].Category)
	assert.Equal(t, domain.SeverityHigh, insights[0].Severity)
}

func TestProcessingOutliers(t *testing.T) {
	t.Run("share above ceiling reports a bottleneck", func(t *testing.T) {
		m := healthyMetrics()
		m.ProcessingTime.Outliers = 15
		m.ProcessingTime.OutlierFenceDays = 20

		insights := Generate(m, defaultThresholds())
		require.Len(t, insights, 1)
		assert.Equal(t, "processing_bottleneck", insights[0].Category)
		assert.Equal(t, domain.SeverityMedium, insights[0].Severity)
		assert.Contains(t, insights[0].Message, "15 of 100")
		assert.Contains(t, insights[0].Message, "20 days")
	})

	t.Run("share at or below ceiling stays quiet", func(t *testing.T) {
		m := healthyMetrics()
		m.ProcessingTime.Outliers = 10

		assert.Empty(t, Generate(m, defaultThresholds()))
	})

	t.Run("no decided durations stays quiet", func(t *testing.T) {
		m := healthyMetrics()
		m.ProcessingTime.Count = 0
		m.ProcessingTime.Outliers = 0

		assert.Empty(t, Generate(m, defaultThresholds()))
	})
}

func TestDominantRejectionReason(t *testing.T) {
	t.Run("above ceiling is medium", func(t *testing.T) {
		m := healthyMetrics()
		m.RejectionReasons[0].Share = 0.6

		insights := Generate(m, defaultThresholds())
		require.Len(t, insights, 1)
		assert.Equal(t, "rejection_reason", insights[0].Category)
		assert.Equal(t, domain.SeverityMedium, insights[0].Severity)
	})

	t.Run("dominant share escalates to high", func(t *testing.T) {
		m := healthyMetrics()
		m.RejectionReasons[0].Share = 0.8

		insights := Generate(m, defaultThresholds())
		require.Len(t, insights, 1)
		assert.Equal(t, domain.SeverityHigh, insights[0].Severity)
	})
}

func TestApprovalTrend(t *testing.T) {
	trend := func(rates ...float64) []domain.TrendPoint {
		points := make([]domain.TrendPoint, len(rates))
		for i, r := range rates {
			points[i] = domain.TrendPoint{ApprovalRate: r}
		}
		return points
	}

	t.Run("decreasing is medium", func(t *testing.T) {
		m := healthyMetrics()
		m.Trend = trend(0.8, 0.6, 0.4)

		insights := Generate(m, defaultThresholds())
		require.Len(t, insights, 1)
		assert.Equal(t, "approval_trend", insights[0].Category)
		assert.Equal(t, domain.SeverityMedium, insights[0].Severity)
		assert.Contains(t, insights[0].Message, "decreasing")
	})

	t.Run("increasing is low", func(t *testing.T) {
		m := healthyMetrics()
		m.Trend = trend(0.4, 0.6, 0.8)

		insights := Generate(m, defaultThresholds())
		require.Len(t, insights, 1)
		assert.Equal(t, domain.SeverityLow, insights[0].Severity)
		assert.Contains(t, insights[0].Message, "increasing")
	})

	t.Run("stable stays quiet", func(t *testing.T) {
		m := healthyMetrics()
		m.Trend = trend(0.6, 0.61, 0.6)

		assert.Empty(t, Generate(m, defaultThresholds()))
	})

	t.Run("too few periods stays quiet", func(t *testing.T) {
		m := healthyMetrics()
		m.Trend = trend(0.8, 0.2)

		assert.Empty(t, Generate(m, defaultThresholds()))
	})
}

func TestStrongCorrelation(t *testing.T) {
	t.Run("strongest attribute above floor reported", func(t *testing.T) {
		m := healthyMetrics()
		m.Correlations = []domain.CorrelationResult{
			{Attribute: "credit_score", Coefficient: 0.62, SampleSize: 100},
			{Attribute: "income", Coefficient: 0.31, SampleSize: 100},
			{Attribute: "loan_amount", Omitted: true, Reason: "insufficient data"},
		}

		insights := Generate(m, defaultThresholds())
		require.Len(t, insights, 1)
		assert.Equal(t, "correlation", insights[0].Category)
		assert.Contains(t, insights[0].Message, "credit_score")
		assert.Contains(t, insights[0].Message, "strong")
		assert.Contains(t, insights[0].Message, "positive")
	})

	t.Run("negative moderate correlation", func(t *testing.T) {
		m := healthyMetrics()
		m.Correlations = []domain.CorrelationResult{
			{Attribute: "loan_amount", Coefficient: -0.35, SampleSize: 100},
		}

		insights := Generate(m, defaultThresholds())
		require.Len(t, insights, 1)
		assert.Contains(t, insights[0].Message, "moderate")
		assert.Contains(t, insights[0].Message, "negative")
	})

	t.Run("below floor stays quiet", func(t *testing.T) {
		m := healthyMetrics()
		m.Correlations = []domain.CorrelationResult{
			{Attribute: "income", Coefficient: 0.1, SampleSize: 100},
		}

		assert.Empty(t, Generate(m, defaultThresholds()))
	})
}

func TestGenerate_OrderFollowsRuleDeclaration(t *testing.T) {
	m := healthyMetrics()
	m.Summary.ApprovalRate = 0.2
	m.ProcessingTime.P90Days = 40
	m.ProcessingTime.Outliers = 20
	m.ProcessingTime.OutlierFenceDays = 25
	m.RejectionReasons[0].Share = 0.75
	m.Trend = []domain.TrendPoint{
		{ApprovalRate: 0.8}, {ApprovalRate: 0.5}, {ApprovalRate: 0.2},
	}
	m.Correlations = []domain.CorrelationResult{
		{Attribute: "credit_score", Coefficient: 0.7, SampleSize: 100},
	}

	first := Generate(m, defaultThresholds())
	second := Generate(m, defaultThresholds())

	require.Len(t, first, 6)
	assert.Equal(t, first, second, "insight generation must be deterministic")

	categories := make([]string, len(first))
	for i, insight := range first {
		categories[i] = insight.Category
	}
	assert.Equal(t, []string{
		"approval_rate", "processing_time", "processing_bottleneck",
		"rejection_reason", "approval_trend", "correlation",
	}, categories)
}

func TestRecommend(t *testing.T) {
	t.Run("insight categories map to recommendations", func(t *testing.T) {
		insights := []domain.Insight{
			{Category: "approval_rate", Severity: domain.SeverityHigh},
			{Category: "rejection_reason", Severity: domain.SeverityMedium},
		}

		recs := Recommend(insights, 0)
		require.Len(t, recs, 2)
		assert.Equal(t, "approval_rate", recs[0].Category)
		assert.Equal(t, "rejection_reason", recs[1].Category)
	})

	t.Run("decreasing trend maps to approval_rate", func(t *testing.T) {
		insights := []domain.Insight{
			{Category: "approval_trend", Message: "Approval rate shows a decreasing trend across 4 periods"},
		}

		recs := Recommend(insights, 0)
		require.Len(t, recs, 1)
		assert.Equal(t, "approval_rate", recs[0].Category)
	})

	t.Run("increasing trend adds nothing", func(t *testing.T) {
		insights := []domain.Insight{
			{Category: "approval_trend", Message: "Approval rate shows an increasing trend across 4 periods"},
		}

		assert.Empty(t, Recommend(insights, 0))
	})

	t.Run("padded to minimum with general advice", func(t *testing.T) {
		recs := Recommend(nil, 2)
		require.Len(t, recs, 2)
		for _, r := range recs {
			assert.Equal(t, "general", r.Category)
		}
	})

	t.Run("no duplicate categories", func(t *testing.T) {
		insights := []domain.Insight{
			{Category: "approval_rate"},
			{Category: "approval_trend", Message: "decreasing trend"},
		}

		recs := Recommend(insights, 0)
		require.Len(t, recs, 1)
		assert.Equal(t, "approval_rate", recs[0].Category)
	})
}
