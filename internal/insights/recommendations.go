package insights

import (
	"strings"

	"loanpulse/pkg/contracts/domain"
)

// recommendation templates keyed by insight category. Each insight
// contributes at most one recommendation.
var recommendationTemplates = map[string]domain.Recommendation{
	"approval_rate": {
		Category: "approval_rate",
		Priority: "high",
		Message:  "Investigate reasons for the low approval rate and consider adjusting lending criteria or the application process",
	},
	"processing_time": {
		Category: "processing_time",
		Priority: "high",
		Message:  "Review the loan processing workflow to bring slow applications back under the processing-time ceiling",
	},
	"processing_bottleneck": {
		Category: "processing_bottleneck",
		Priority: "medium",
		Message:  "Audit the slowest applications individually; a small group of outliers is inflating overall processing times",
	},
	"rejection_reason": {
		Category: "rejection_reason",
		Priority: "high",
		Message:  "Focus on the dominant rejection reason to improve application quality or revisit the related lending criterion",
	},
	"correlation": {
		Category: "correlation",
		Priority: "medium",
		Message:  "Evaluate how the correlated applicant attribute is weighted in the decision process",
	},
}

// generalRecommendations pad the list when few specific ones fired
var generalRecommendations = []domain.Recommendation{
	{
		Category: "general",
		Priority: "medium",
		Message:  "Schedule regular data reviews to track key metrics and catch trends early",
	},
	{
		Category: "general",
		Priority: "medium",
		Message:  "Standardize loan origination reporting so stakeholders see the same metric definitions",
	},
	{
		Category: "general",
		Priority: "low",
		Message:  "Collect applicant attributes consistently so correlation analysis has complete data",
	},
}

// Recommend derives actionable recommendations from the generated
// insights. A decreasing approval trend escalates the approval_rate
// recommendation; fewer than minCount specific recommendations are
// padded with general ones.
func Recommend(insights []domain.Insight, minCount int) []domain.Recommendation {
	var out []domain.Recommendation
	seen := make(map[string]bool)

	for _, insight := range insights {
		category := insight.Category
		if category == "approval_trend" {
			if !strings.Contains(insight.Message, "decreasing") {
				continue
			}
			category = "approval_rate"
		}
		template, ok := recommendationTemplates[category]
		if !ok || seen[category] {
			continue
		}
		seen[category] = true
		out = append(out, template)
	}

	for _, general := range generalRecommendations {
		if len(out) >= minCount {
			break
		}
		out = append(out, general)
	}
	return out
}
