// Package analytics computes the metric snapshot for a normalized
// record set. Every function is pure: records in, numbers out.
package analytics

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"loanpulse/internal/config"
	"loanpulse/pkg/contracts/domain"
)

// InsufficientDataError reports that a metric cannot be computed from
// the available observations. The rest of the metric set is unaffected.
type InsufficientDataError struct {
	Metric   string
	Needed   int
	Observed int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s requires at least %d paired observations, got %d", e.Metric, e.Needed, e.Observed)
}

// unspecifiedReason buckets rejected records with no recorded reason
const unspecifiedReason = "unspecified"

// ApprovalRate returns approved/(approved+rejected). Pending records
// are excluded from the denominator; an empty denominator yields 0.
func ApprovalRate(records []domain.LoanRecord) float64 {
	approved, rejected := 0, 0
	for _, r := range records {
		switch r.Status {
		case domain.StatusApproved:
			approved++
		case domain.StatusRejected:
			rejected++
		}
	}
	if approved+rejected == 0 {
		return 0
	}
	return float64(approved) / float64(approved+rejected)
}

// ProcessingTimeStats computes the distribution of whole days between
// application and decision dates. Records with a decision date before
// the application date are excluded and counted as anomalies rather
// than contributing negative durations.
func ProcessingTimeStats(records []domain.LoanRecord, bucketDays, capDays int) domain.ProcessingTimeStats {
	var durations []int
	anomalies := 0
	for _, r := range records {
		if r.DecisionDate == nil || r.ApplicationDate.IsZero() {
			continue
		}
		if r.DateConflict {
			anomalies++
			continue
		}
		if days, ok := r.ProcessingDays(); ok {
			durations = append(durations, days)
		}
	}

	stats := domain.ProcessingTimeStats{
		Count:     len(durations),
		Anomalies: anomalies,
		Histogram: buildHistogram(durations, bucketDays, capDays),
	}
	if len(durations) == 0 {
		return stats
	}

	sort.Ints(durations)
	total := 0
	for _, d := range durations {
		total += d
	}
	stats.MeanDays = float64(total) / float64(len(durations))
	stats.MedianDays = medianInts(durations)
	stats.P25Days = percentileInts(durations, 0.25)
	stats.P75Days = percentileInts(durations, 0.75)
	stats.P90Days = percentileInts(durations, 0.9)
	stats.MinDays = durations[0]
	stats.MaxDays = durations[len(durations)-1]

	// Tukey fence: durations beyond p75 + 1.5*IQR are bottleneck
	// candidates. They stay in the stats; only the count is surfaced.
	stats.OutlierFenceDays = stats.P75Days + 1.5*(stats.P75Days-stats.P25Days)
	for _, d := range durations {
		if float64(d) > stats.OutlierFenceDays {
			stats.Outliers++
		}
	}
	return stats
}

// buildHistogram bins durations into fixed-width buckets up to capDays,
// with a single overflow bucket for outliers
func buildHistogram(durations []int, bucketDays, capDays int) []domain.HistogramBucket {
	if bucketDays < 1 {
		bucketDays = 1
	}
	if capDays < bucketDays {
		capDays = bucketDays
	}

	numBuckets := capDays / bucketDays
	buckets := make([]domain.HistogramBucket, 0, numBuckets+1)
	for i := 0; i < numBuckets; i++ {
		from := i * bucketDays
		to := from + bucketDays
		buckets = append(buckets, domain.HistogramBucket{
			Label:    fmt.Sprintf("%d-%dd", from, to),
			FromDays: from,
			ToDays:   to,
		})
	}
	buckets = append(buckets, domain.HistogramBucket{
		Label:    fmt.Sprintf("%dd+", capDays),
		FromDays: capDays,
		ToDays:   -1,
	})

	for _, d := range durations {
		idx := d / bucketDays
		if idx >= numBuckets {
			idx = numBuckets // overflow bucket
		}
		buckets[idx].Count++
	}
	return buckets
}

// RejectionReasonCounts groups rejected records by normalized reason
// (trimmed, case-folded; empty becomes "unspecified"), sorted by count
// descending with alphabetical tie-break.
func RejectionReasonCounts(records []domain.LoanRecord) []domain.ReasonCount {
	counts := make(map[string]int)
	totalRejected := 0
	for _, r := range records {
		if r.Status != domain.StatusRejected {
			continue
		}
		totalRejected++
		reason := strings.ToLower(strings.TrimSpace(r.RejectionReason))
		if reason == "" {
			reason = unspecifiedReason
		}
		counts[reason]++
	}
	if totalRejected == 0 {
		return nil
	}

	out := make([]domain.ReasonCount, 0, len(counts))
	for reason, count := range counts {
		out = append(out, domain.ReasonCount{
			Reason: reason,
			Count:  count,
			Share:  float64(count) / float64(totalRejected),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Reason < out[j].Reason
	})
	return out
}

// TrendSeries buckets records by application date truncated to the
// given period and computes the approval rate per bucket. Buckets with
// no decided (approved or rejected) records are omitted, not
// zero-filled; output is chronological.
func TrendSeries(records []domain.LoanRecord, period domain.TrendPeriod) []domain.TrendPoint {
	type bucket struct {
		start    time.Time
		total    int
		approved int
		rejected int
	}
	buckets := make(map[string]*bucket)

	for _, r := range records {
		if r.ApplicationDate.IsZero() {
			continue
		}
		start, label := truncatePeriod(r.ApplicationDate, period)
		b := buckets[label]
		if b == nil {
			b = &bucket{start: start}
			buckets[label] = b
		}
		b.total++
		switch r.Status {
		case domain.StatusApproved:
			b.approved++
		case domain.StatusRejected:
			b.rejected++
		}
	}

	out := make([]domain.TrendPoint, 0, len(buckets))
	for label, b := range buckets {
		decided := b.approved + b.rejected
		if decided == 0 {
			continue
		}
		out = append(out, domain.TrendPoint{
			Period:       label,
			PeriodStart:  b.start,
			Total:        b.total,
			Approved:     b.approved,
			Rejected:     b.rejected,
			ApprovalRate: float64(b.approved) / float64(decided),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PeriodStart.Before(out[j].PeriodStart)
	})
	return out
}

// truncatePeriod truncates a date to the start of its period bucket.
// Weeks start on Monday (ISO convention).
func truncatePeriod(t time.Time, period domain.TrendPeriod) (time.Time, string) {
	t = t.UTC()
	switch period {
	case domain.PeriodWeek:
		weekday := int(t.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		start := time.Date(t.Year(), t.Month(), t.Day()-weekday+1, 0, 0, 0, 0, time.UTC)
		year, week := start.ISOWeek()
		return start, fmt.Sprintf("%d-W%02d", year, week)
	case domain.PeriodMonth:
		start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.Format("2006-01")
	default:
		start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return start, start.Format("2006-01-02")
	}
}

// Correlate computes the Pearson correlation between a numeric
// applicant attribute and the binary approved/rejected outcome.
// Only records with the attribute present and a decided status count
// as observations; fewer than minSample observations fails with
// *InsufficientDataError.
func Correlate(records []domain.LoanRecord, attribute string, minSample int) (domain.CorrelationResult, error) {
	var xs, ys []float64
	for _, r := range records {
		if r.Status != domain.StatusApproved && r.Status != domain.StatusRejected {
			continue
		}
		v, ok := r.Attributes[attribute]
		if !ok {
			continue
		}
		xs = append(xs, v)
		if r.Status == domain.StatusApproved {
			ys = append(ys, 1)
		} else {
			ys = append(ys, 0)
		}
	}

	if len(xs) < minSample {
		return domain.CorrelationResult{}, &InsufficientDataError{
			Metric:   "correlation(" + attribute + ")",
			Needed:   minSample,
			Observed: len(xs),
		}
	}

	r := pearson(xs, ys)
	if math.IsNaN(r) {
		// Zero variance on either side; report no correlation rather
		// than NaN in the snapshot.
		r = 0
	}
	return domain.CorrelationResult{
		Attribute:   attribute,
		Coefficient: r,
		SampleSize:  len(xs),
	}, nil
}

func pearson(xs, ys []float64) float64 {
	n := float64(len(xs))
	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/n, sumY/n

	var cov, varX, varY float64
	for i := range xs {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	return cov / math.Sqrt(varX*varY)
}

// AmountsByStatus summarizes loan amounts per status in a fixed
// approved/rejected/pending order
func AmountsByStatus(records []domain.LoanRecord) []domain.AmountStats {
	grouped := make(map[domain.LoanStatus][]float64)
	for _, r := range records {
		if r.LoanAmount == nil {
			continue
		}
		grouped[r.Status] = append(grouped[r.Status], *r.LoanAmount)
	}

	var out []domain.AmountStats
	for _, status := range []domain.LoanStatus{domain.StatusApproved, domain.StatusRejected, domain.StatusPending} {
		amounts := grouped[status]
		if len(amounts) == 0 {
			continue
		}
		sort.Float64s(amounts)
		total := 0.0
		for _, a := range amounts {
			total += a
		}
		out = append(out, domain.AmountStats{
			Status: status,
			Count:  len(amounts),
			Mean:   total / float64(len(amounts)),
			Median: medianFloats(amounts),
			Min:    amounts[0],
			Max:    amounts[len(amounts)-1],
		})
	}
	return out
}

// Summary computes the headline metrics of a record set
func Summary(records []domain.LoanRecord, processing domain.ProcessingTimeStats) domain.SummaryMetrics {
	s := domain.SummaryMetrics{TotalApplications: len(records)}
	for _, r := range records {
		switch r.Status {
		case domain.StatusApproved:
			s.ApprovedCount++
		case domain.StatusRejected:
			s.RejectedCount++
		default:
			s.PendingCount++
		}
	}
	s.ApprovalRate = ApprovalRate(records)
	s.MeanProcessingDays = processing.MeanDays
	s.MedianProcessingDays = processing.MedianDays
	return s
}

// BuildMetricSet assembles the full snapshot. Correlations that fail
// with insufficient data are recorded as omitted with a reason; any
// other outcome would hide the rest of the snapshot for no benefit.
func BuildMetricSet(records []domain.LoanRecord, cfg config.AnalysisConfig, period domain.TrendPeriod) *domain.MetricSet {
	if period == "" {
		period = domain.PeriodMonth
	}

	processing := ProcessingTimeStats(records, cfg.HistogramBucketDays, cfg.HistogramCapDays)
	set := &domain.MetricSet{
		GeneratedAt:      time.Now().UTC(),
		Summary:          Summary(records, processing),
		ProcessingTime:   processing,
		RejectionReasons: RejectionReasonCounts(records),
		Trend:            TrendSeries(records, period),
		TrendPeriod:      period,
		AmountsByStatus:  AmountsByStatus(records),
	}

	for _, field := range domain.NumericAttributeFields {
		attribute := string(field)
		result, err := Correlate(records, attribute, cfg.MinCorrelationSample)
		if err != nil {
			set.Correlations = append(set.Correlations, domain.CorrelationResult{
				Attribute: attribute,
				Omitted:   true,
				Reason:    err.Error(),
			})
			continue
		}
		set.Correlations = append(set.Correlations, result)
	}

	return set
}

func medianInts(sorted []int) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return float64(sorted[n/2-1]+sorted[n/2]) / 2
}

func medianFloats(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// percentileInts returns the pth percentile using nearest-rank on a
// sorted slice
func percentileInts(sorted []int, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return float64(sorted[rank])
}
