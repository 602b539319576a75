package sampledata

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanpulse/pkg/contracts/domain"
)

func TestGenerate_Deterministic(t *testing.T) {
	first := Generate()
	second := Generate()

	assert.Equal(t, first.Records, second.Records)
	assert.Equal(t, first.Summary, second.Summary)
}

func TestGenerate_RecordShape(t *testing.T) {
	set := Generate()
	require.Len(t, set.Records, 500)
	assert.Equal(t, 500, set.Summary.KeptRows)

	ids := make(map[string]bool, len(set.Records))
	for _, r := range set.Records {
		assert.True(t, strings.HasPrefix(r.ApplicationID, "LOAN-"))
		assert.False(t, ids[r.ApplicationID], "duplicate id %s", r.ApplicationID)
		ids[r.ApplicationID] = true

		require.NotNil(t, r.LoanAmount)
		assert.GreaterOrEqual(t, *r.LoanAmount, 5000.0)
		assert.LessOrEqual(t, *r.LoanAmount, 100000.0)

		credit := r.Attributes[string(domain.FieldCreditScore)]
		assert.GreaterOrEqual(t, credit, 300.0)
		assert.LessOrEqual(t, credit, 850.0)

		assert.NotEmpty(t, r.Labels[string(domain.FieldLoanPurpose)])

		switch r.Status {
		case domain.StatusApproved:
			require.NotNil(t, r.DecisionDate)
			assert.Empty(t, r.RejectionReason)
		case domain.StatusRejected:
			require.NotNil(t, r.DecisionDate)
			assert.NotEmpty(t, r.RejectionReason)
		case domain.StatusPending:
			assert.Nil(t, r.DecisionDate)
		default:
			t.Fatalf("unexpected status %q", r.Status)
		}

		if days, ok := r.ProcessingDays(); ok {
			assert.GreaterOrEqual(t, days, 0)
		}
	}
}

func TestGenerate_SortedByDate(t *testing.T) {
	set := Generate()
	for i := 1; i < len(set.Records); i++ {
		prev, cur := set.Records[i-1], set.Records[i]
		assert.False(t, cur.ApplicationDate.Before(prev.ApplicationDate),
			"records must be ordered by application date")
	}
}

func TestGenerate_HasAllOutcomes(t *testing.T) {
	set := GenerateN(5000)
	counts := make(map[domain.LoanStatus]int)
	for _, r := range set.Records {
		counts[r.Status]++
	}
	assert.Greater(t, counts[domain.StatusApproved], 0)
	assert.Greater(t, counts[domain.StatusRejected], 0)
	assert.Greater(t, counts[domain.StatusPending], 0)
}

func TestGenerateN(t *testing.T) {
	set := GenerateN(25)
	assert.Len(t, set.Records, 25)
}
