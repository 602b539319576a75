// Package sampledata ships a built-in loan dataset so the dashboard is
// usable without an upload. Generation is seeded, so every run produces
// the same records.
package sampledata

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"loanpulse/pkg/contracts/domain"
)

const (
	defaultRecords = 500
	seed           = 20240315
)

var rejectionReasons = []string{
	"Low Credit Score",
	"Insufficient Income",
	"Loan Amount Too High",
	"Incomplete Documentation",
	"High Existing Debt",
	"Unstable Employment History",
	"Other",
}

var loanPurposes = []string{
	"Home Improvement",
	"Debt Consolidation",
	"Business",
	"Education",
	"Auto Purchase",
	"Medical Expenses",
	"Vacation",
	"Other",
}

// Generate returns the built-in sample record set: one year of loan
// applications ending at the fixed reference date, with approval odds
// driven by credit score and income so the metrics look plausible.
func Generate() *domain.RecordSet {
	return GenerateN(defaultRecords)
}

// GenerateN generates n sample records with the fixed seed
func GenerateN(n int) *domain.RecordSet {
	rng := rand.New(rand.NewSource(seed))
	end := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	start := end.AddDate(-1, 0, 0)
	span := int(end.Sub(start).Hours() / 24)

	records := make([]domain.LoanRecord, 0, n)
	for i := 0; i < n; i++ {
		appDate := start.AddDate(0, 0, rng.Intn(span+1))

		amount := clamp(math.Round(rng.NormFloat64()*10000+25000), 5000, 100000)
		creditScore := clamp(math.Round(rng.NormFloat64()*75+680), 300, 850)
		income := math.Round(math.Exp(rng.NormFloat64()*0.5+11) / 100) * 100

		record := domain.LoanRecord{
			ApplicationID:   fmt.Sprintf("LOAN-%06d", i+1),
			ApplicationDate: appDate,
			LoanAmount:      &amount,
			Attributes: map[string]float64{
				string(domain.FieldLoanAmount):  amount,
				string(domain.FieldCreditScore): creditScore,
				string(domain.FieldIncome):      income,
			},
			Labels: map[string]string{
				string(domain.FieldLoanPurpose): loanPurposes[rng.Intn(len(loanPurposes))],
			},
		}

		// Recent applications are sometimes still pending
		if end.Sub(appDate).Hours() < 7*24 && rng.Float64() < 0.3 {
			record.Status = domain.StatusPending
			records = append(records, record)
			continue
		}

		processDays := processingDays(rng, creditScore)
		decision := appDate.AddDate(0, 0, processDays)
		if decision.After(end) {
			decision = end
		}
		record.DecisionDate = &decision

		if rng.Float64() < approvalProbability(creditScore, income, amount) {
			record.Status = domain.StatusApproved
		} else {
			record.Status = domain.StatusRejected
			record.RejectionReason = pickRejectionReason(rng, creditScore, income, amount)
		}
		records = append(records, record)
	}

	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].ApplicationDate.Equal(records[j].ApplicationDate) {
			return records[i].ApplicationDate.Before(records[j].ApplicationDate)
		}
		return records[i].ApplicationID < records[j].ApplicationID
	})

	return &domain.RecordSet{
		Records: records,
		Summary: domain.NormalizationSummary{
			TotalRows: len(records),
			KeptRows:  len(records),
		},
		NormalizedAt: end,
	}
}

// approvalProbability biases approvals toward strong credit scores and
// healthy income-to-loan ratios, clamped to [0.1, 0.9]
func approvalProbability(creditScore, income, amount float64) float64 {
	prob := 0.5
	switch {
	case creditScore >= 750:
		prob += 0.3
	case creditScore >= 700:
		prob += 0.2
	case creditScore >= 650:
		prob += 0.1
	case creditScore < 550:
		prob -= 0.3
	case creditScore < 600:
		prob -= 0.2
	}
	if income > amount*0.5 {
		prob += 0.15
	} else if income < amount*0.25 {
		prob -= 0.15
	}
	return clamp(prob, 0.1, 0.9)
}

// processingDays models faster decisions for better credit, with a
// small share of long-tail outliers
func processingDays(rng *rand.Rand, creditScore float64) int {
	var days float64
	switch {
	case creditScore > 750:
		days = rng.NormFloat64()*2 + 5
	case creditScore > 650:
		days = rng.NormFloat64()*4 + 10
	default:
		days = rng.NormFloat64()*7 + 15
	}
	if days < 1 {
		days = 1
	}
	if rng.Float64() < 0.05 {
		days *= 2 + 2*rng.Float64()
	}
	return int(days)
}

func pickRejectionReason(rng *rand.Rand, creditScore, income, amount float64) string {
	switch {
	case creditScore < 600:
		return rejectionReasons[0]
	case income < amount*0.25:
		return rejectionReasons[1]
	case amount > 50000 && rng.Float64() < 0.3:
		return rejectionReasons[2]
	case rng.Float64() < 0.2:
		return rejectionReasons[3]
	case rng.Float64() < 0.15:
		return rejectionReasons[4]
	case rng.Float64() < 0.1:
		return rejectionReasons[5]
	default:
		return rejectionReasons[6]
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
