// Package insights turns a metric snapshot into ordered findings and
// recommendations via a fixed list of pure rules.
package insights

import (
	"fmt"

	"loanpulse/internal/config"
	"loanpulse/pkg/contracts/domain"
)

// Thresholds are the tunable limits the rules check against
type Thresholds struct {
	ApprovalRateFloor      float64
	ProcessingP90Ceiling   float64
	OutlierShareCeiling    float64
	RejectionShareCeiling  float64
	CorrelationReportFloor float64
}

// ThresholdsFromConfig extracts the insight thresholds from the
// analysis configuration
func ThresholdsFromConfig(cfg config.AnalysisConfig) Thresholds {
	return Thresholds{
		ApprovalRateFloor:      cfg.ApprovalRateFloor,
		ProcessingP90Ceiling:   cfg.ProcessingP90Ceiling,
		OutlierShareCeiling:    cfg.OutlierShareCeiling,
		RejectionShareCeiling:  cfg.RejectionShareCeiling,
		CorrelationReportFloor: cfg.CorrelationReportFloor,
	}
}

// Rule is one check over the metric set. Evaluate returns nil when the
// rule has nothing to say.
type Rule struct {
	Name     string
	Evaluate func(m *domain.MetricSet, t Thresholds) *domain.Insight
}

// rules is the fixed evaluation order. Output order follows this
// declaration order, never severity.
var rules = []Rule{
	{
		Name: "approval_rate_floor",
		Evaluate: func(m *domain.MetricSet, t Thresholds) *domain.Insight {
			if m.Summary.ApprovedCount+m.Summary.RejectedCount == 0 {
				return nil
			}
			if m.Summary.ApprovalRate >= t.ApprovalRateFloor {
				return nil
			}
			return &domain.Insight{
				Category: "approval_rate",
				Severity: domain.SeverityHigh,
				Message: fmt.Sprintf("Approval rate %.1f%% is below the %.1f%% floor",
					m.Summary.ApprovalRate*100, t.ApprovalRateFloor*100),
			}
		},
	},
	{
		Name: "processing_p90_ceiling",
		Evaluate: func(m *domain.MetricSet, t Thresholds) *domain.Insight {
			if m.ProcessingTime.Count == 0 || m.ProcessingTime.P90Days <= t.ProcessingP90Ceiling {
				return nil
			}
			return &domain.Insight{
				Category: "processing_time",
				Severity: domain.SeverityHigh,
				Message: fmt.Sprintf("90th percentile processing time of %.0f days exceeds the %.0f day ceiling",
					m.ProcessingTime.P90Days, t.ProcessingP90Ceiling),
			}
		},
	},
	{
		Name: "processing_outliers",
		Evaluate: func(m *domain.MetricSet, t Thresholds) *domain.Insight {
			pt := m.ProcessingTime
			if pt.Count == 0 || pt.Outliers == 0 {
				return nil
			}
			share := float64(pt.Outliers) / float64(pt.Count)
			if share <= t.OutlierShareCeiling {
				return nil
			}
			return &domain.Insight{
				Category: "processing_bottleneck",
				Severity: domain.SeverityMedium,
				Message: fmt.Sprintf("%d of %d decided applications took longer than %.0f days, well outside the typical range",
					pt.Outliers, pt.Count, pt.OutlierFenceDays),
			}
		},
	},
	{
		Name: "dominant_rejection_reason",
		Evaluate: func(m *domain.MetricSet, t Thresholds) *domain.Insight {
			if len(m.RejectionReasons) == 0 {
				return nil
			}
			top := m.RejectionReasons[0]
			if top.Share <= t.RejectionShareCeiling {
				return nil
			}
			severity := domain.SeverityMedium
			if top.Share > 0.7 {
				severity = domain.SeverityHigh
			}
			return &domain.Insight{
				Category: "rejection_reason",
				Severity: severity,
				Message: fmt.Sprintf("%q accounts for %.1f%% of all rejections",
					top.Reason, top.Share*100),
			}
		},
	},
	{
		Name: "approval_trend",
		Evaluate: func(m *domain.MetricSet, t Thresholds) *domain.Insight {
			direction, change := trendDirection(m.Trend)
			if direction == "" || direction == "stable" {
				return nil
			}
			severity := domain.SeverityLow
			if direction == "decreasing" {
				severity = domain.SeverityMedium
			}
			msg := fmt.Sprintf("Approval rate shows a %s trend across %d periods", direction, len(m.Trend))
			if change != 0 {
				msg += fmt.Sprintf(" (recent change %+.1f%%)", change*100)
			}
			return &domain.Insight{
				Category: "approval_trend",
				Severity: severity,
				Message:  msg,
			}
		},
	},
	{
		Name: "strong_correlation",
		Evaluate: func(m *domain.MetricSet, t Thresholds) *domain.Insight {
			// Report the single strongest attribute above the floor
			var best *domain.CorrelationResult
			for i := range m.Correlations {
				c := &m.Correlations[i]
				if c.Omitted {
					continue
				}
				if abs(c.Coefficient) < t.CorrelationReportFloor {
					continue
				}
				if best == nil || abs(c.Coefficient) > abs(best.Coefficient) {
					best = c
				}
			}
			if best == nil {
				return nil
			}
			direction := "positive"
			if best.Coefficient < 0 {
				direction = "negative"
			}
			strength := "moderate"
			if abs(best.Coefficient) > 0.5 {
				strength = "strong"
			}
			return &domain.Insight{
				Category: "correlation",
				Severity: domain.SeverityLow,
				Message: fmt.Sprintf("%s shows a %s %s correlation (%.2f) with approval outcomes",
					best.Attribute, strength, direction, best.Coefficient),
			}
		},
	},
}

// Generate evaluates the fixed rule list against the metric set. Each
// rule contributes zero or one insight; output order follows rule
// declaration order. Deterministic for identical input.
func Generate(m *domain.MetricSet, t Thresholds) []domain.Insight {
	if m == nil {
		return nil
	}
	var out []domain.Insight
	for _, rule := range rules {
		if insight := rule.Evaluate(m, t); insight != nil {
			out = append(out, *insight)
		}
	}
	return out
}

// trendDirection classifies the approval-rate trend by the slope
// between the first and last bucket, plus the relative change over the
// final three buckets
func trendDirection(trend []domain.TrendPoint) (string, float64) {
	if len(trend) < 3 {
		return "", 0
	}
	first := trend[0].ApprovalRate
	last := trend[len(trend)-1].ApprovalRate
	slope := (last - first) / float64(len(trend)-1)

	direction := "stable"
	if slope > 0.01 {
		direction = "increasing"
	} else if slope < -0.01 {
		direction = "decreasing"
	}

	recent := trend[len(trend)-3:]
	change := 0.0
	if recent[0].ApprovalRate != 0 {
		change = (recent[len(recent)-1].ApprovalRate - recent[0].ApprovalRate) / recent[0].ApprovalRate
	}
	return direction, change
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
