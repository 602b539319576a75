package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanpulse/pkg/contracts/domain"
)

func newTestMapper(t *testing.T) *Mapper {
	t.Helper()
	return New(0.4, nil, nil)
}

func TestProposeMapping_ExactHeaders(t *testing.T) {
	m := newTestMapper(t)

	proposal := m.ProposeMapping([]string{
		"application_id", "application_date", "decision_date",
		"status", "loan_amount", "rejection_reason",
	})

	assert.Equal(t, "application_id", proposal.Mapping[domain.FieldApplicationID])
	assert.Equal(t, "application_date", proposal.Mapping[domain.FieldApplicationDate])
	assert.Equal(t, "decision_date", proposal.Mapping[domain.FieldDecisionDate])
	assert.Equal(t, "status", proposal.Mapping[domain.FieldStatus])
	assert.Equal(t, "loan_amount", proposal.Mapping[domain.FieldLoanAmount])
	assert.Equal(t, "rejection_reason", proposal.Mapping[domain.FieldRejectionReason])

	for _, field := range []domain.CanonicalField{
		domain.FieldApplicationID, domain.FieldStatus, domain.FieldLoanAmount,
	} {
		assert.InDelta(t, 1.0, proposal.Confidence(field), 1e-9)
	}
}

func TestProposeMapping_AbbreviatedHeaders(t *testing.T) {
	// Compact headers with camelCase and abbreviations still map
	m := newTestMapper(t)

	proposal := m.ProposeMapping([]string{"AppID", "AppDate", "DecDate", "Outcome", "Amt"})

	assert.Equal(t, "AppID", proposal.Mapping[domain.FieldApplicationID])
	assert.Equal(t, "AppDate", proposal.Mapping[domain.FieldApplicationDate])
	assert.Equal(t, "DecDate", proposal.Mapping[domain.FieldDecisionDate])
	assert.Equal(t, "Outcome", proposal.Mapping[domain.FieldStatus])
	assert.Equal(t, "Amt", proposal.Mapping[domain.FieldLoanAmount])

	for field := range proposal.Mapping {
		assert.GreaterOrEqual(t, proposal.Confidence(field), 0.4,
			"field %s must clear the confidence threshold", field)
	}
}

func TestProposeMapping_OnlyInputHeaders(t *testing.T) {
	m := newTestMapper(t)
	headers := []string{"loan_id", "outcome", "amount", "notes", "branch"}

	proposal := m.ProposeMapping(headers)

	allowed := make(map[string]bool, len(headers))
	for _, h := range headers {
		allowed[h] = true
	}
	for field, header := range proposal.Mapping {
		assert.True(t, allowed[header], "field %s mapped to foreign header %q", field, header)
	}
}

func TestProposeMapping_NoDoubleMapping(t *testing.T) {
	m := newTestMapper(t)

	proposal := m.ProposeMapping([]string{"date", "status", "amount"})

	seen := make(map[string]domain.CanonicalField)
	for field, header := range proposal.Mapping {
		prev, dup := seen[header]
		require.False(t, dup, "header %q mapped to both %s and %s", header, prev, field)
		seen[header] = field
	}
}

func TestProposeMapping_UnrelatedHeadersStayUnmapped(t *testing.T) {
	m := newTestMapper(t)

	proposal := m.ProposeMapping([]string{"warehouse", "pallet_count", "zone"})

	assert.Empty(t, proposal.Mapping)
	assert.Empty(t, proposal.Candidates)
}

func TestProposeMapping_ExtraAliases(t *testing.T) {
	m := New(0.4, map[string][]string{
		"application_id": {"dossier_ref"},
	}, nil)

	proposal := m.ProposeMapping([]string{"dossier_ref", "status"})

	assert.Equal(t, "dossier_ref", proposal.Mapping[domain.FieldApplicationID])
}

func TestApplyOverride(t *testing.T) {
	m := newTestMapper(t)
	proposal := m.ProposeMapping([]string{"loan_id", "status", "internal_code"})

	t.Run("valid header", func(t *testing.T) {
		err := m.ApplyOverride(proposal, domain.FieldRejectionReason, "internal_code")
		require.NoError(t, err)
		assert.Equal(t, "internal_code", proposal.Mapping[domain.FieldRejectionReason])
	})

	t.Run("unknown header rejected", func(t *testing.T) {
		err := m.ApplyOverride(proposal, domain.FieldStatus, "not_a_column")
		assert.Error(t, err)
	})

	t.Run("empty header clears field", func(t *testing.T) {
		require.NoError(t, m.ApplyOverride(proposal, domain.FieldRejectionReason, ""))
		_, ok := proposal.Mapping[domain.FieldRejectionReason]
		assert.False(t, ok)
	})
}

func TestValidate(t *testing.T) {
	m := newTestMapper(t)

	t.Run("complete mapping passes", func(t *testing.T) {
		mapping := domain.ColumnMapping{
			domain.FieldApplicationID: "id",
			domain.FieldStatus:        "status",
		}
		assert.NoError(t, m.Validate(mapping))
	})

	t.Run("missing required fields fails", func(t *testing.T) {
		mapping := domain.ColumnMapping{
			domain.FieldApplicationID: "id",
		}
		err := m.Validate(mapping)
		require.Error(t, err)

		var mappingErr *MappingError
		require.ErrorAs(t, err, &mappingErr)
		assert.Equal(t, []domain.CanonicalField{domain.FieldStatus}, mappingErr.Missing)
	})
}

func TestScoreAlias(t *testing.T) {
	tests := []struct {
		name   string
		alias  string
		header string
		want   float64
	}{
		{"exact", "status", "status", 1.0},
		{"case folded", "status", "Status", 0.95},
		{"token normalized", "application_id", "ApplicationId", 0.9},
		{"no relation", "status", "warehouse", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, scoreAlias(tt.alias, tt.header), 1e-9)
		})
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"application_id", []string{"application", "id"}},
		{"AppDate", []string{"app", "date"}},
		{"AppID", []string{"app", "id"}},
		{"loan-amount", []string{"loan", "amount"}},
		{"Loan Amount (USD)", []string{"loan", "amount", "usd"}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, tokenize(tt.in))
		})
	}
}
