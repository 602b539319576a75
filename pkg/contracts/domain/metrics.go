package domain

import (
	"time"
)

// TrendPeriod is the truncation applied to application dates when
// bucketing the trend series
type TrendPeriod string

const (
	PeriodDay   TrendPeriod = "day"
	PeriodWeek  TrendPeriod = "week"
	PeriodMonth TrendPeriod = "month"
)

// SummaryMetrics is the headline snapshot of one record set
type SummaryMetrics struct {
	TotalApplications    int     `json:"total_applications"`
	ApprovedCount        int     `json:"approved_count"`
	RejectedCount        int     `json:"rejected_count"`
	PendingCount         int     `json:"pending_count"`
	ApprovalRate         float64 `json:"approval_rate"` // approved/(approved+rejected)
	MeanProcessingDays   float64 `json:"mean_processing_days"`
	MedianProcessingDays float64 `json:"median_processing_days"`
}

// HistogramBucket is one fixed-width bucket of the processing-time
// distribution. The final bucket may be an overflow bucket.
type HistogramBucket struct {
	Label    string `json:"label"` // e.g. "0-1d", "30d+"
	FromDays int    `json:"from_days"`
	ToDays   int    `json:"to_days"` // exclusive; -1 for the overflow bucket
	Count    int    `json:"count"`
}

// ProcessingTimeStats describes elapsed days between application and
// decision across records where both dates are present
type ProcessingTimeStats struct {
	Count            int               `json:"count"`
	MeanDays         float64           `json:"mean_days"`
	MedianDays       float64           `json:"median_days"`
	P25Days          float64           `json:"p25_days"`
	P75Days          float64           `json:"p75_days"`
	P90Days          float64           `json:"p90_days"`
	MinDays          int               `json:"min_days"`
	MaxDays          int               `json:"max_days"`
	OutlierFenceDays float64           `json:"outlier_fence_days"` // p75 + 1.5*IQR
	Outliers         int               `json:"outliers"`           // durations above the fence
	Histogram        []HistogramBucket `json:"histogram"`
	Anomalies        int               `json:"anomalies"` // negative durations, excluded from the stats above
}

// ReasonCount is one rejection reason with its frequency
type ReasonCount struct {
	Reason string  `json:"reason"`
	Count  int     `json:"count"`
	Share  float64 `json:"share"` // of all rejections, 0-1
}

// TrendPoint is the approval rate for one period bucket
type TrendPoint struct {
	Period       string    `json:"period"` // formatted bucket label, e.g. "2024-03"
	PeriodStart  time.Time `json:"period_start"`
	Total        int       `json:"total"`
	Approved     int       `json:"approved"`
	Rejected     int       `json:"rejected"`
	ApprovalRate float64   `json:"approval_rate"`
}

// CorrelationResult is the Pearson correlation between one numeric
// applicant attribute and the approved/rejected outcome
type CorrelationResult struct {
	Attribute   string  `json:"attribute"`
	Coefficient float64 `json:"coefficient"`
	SampleSize  int     `json:"sample_size"`
	Omitted     bool    `json:"omitted,omitempty"`
	Reason      string  `json:"reason,omitempty"` // set when Omitted
}

// AmountStats summarizes loan amounts for one status
type AmountStats struct {
	Status LoanStatus `json:"status"`
	Count  int        `json:"count"`
	Mean   float64    `json:"mean"`
	Median float64    `json:"median"`
	Min    float64    `json:"min"`
	Max    float64    `json:"max"`
}

// MetricSet is the complete computed snapshot for one record set. It is
// recomputed on demand and never mutated after construction.
type MetricSet struct {
	GeneratedAt      time.Time           `json:"generated_at"`
	Summary          SummaryMetrics      `json:"summary"`
	ProcessingTime   ProcessingTimeStats `json:"processing_time"`
	RejectionReasons []ReasonCount       `json:"rejection_reasons"`
	Trend            []TrendPoint        `json:"trend"`
	TrendPeriod      TrendPeriod         `json:"trend_period"`
	Correlations     []CorrelationResult `json:"correlations"`
	AmountsByStatus  []AmountStats       `json:"amounts_by_status"`
}

// InsightSeverity grades how urgent an insight is
type InsightSeverity string

const (
	SeverityHigh   InsightSeverity = "high"
	SeverityMedium InsightSeverity = "medium"
	SeverityLow    InsightSeverity = "low"
)

// Insight is one finding produced by the rule engine
type Insight struct {
	Category string          `json:"category"`
	Severity InsightSeverity `json:"severity"`
	Message  string          `json:"message"`
}

// Recommendation is actionable advice derived from insights
type Recommendation struct {
	Category string `json:"category"`
	Priority string `json:"priority"` // high, medium, low
	Message  string `json:"message"`
}
