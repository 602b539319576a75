package domain

// CanonicalField names one of the fixed semantic columns all analyses
// operate on. Applicant attributes beyond the fixed set are carried as
// open fields on LoanRecord.Attributes / Labels.
type CanonicalField string

const (
	FieldApplicationID   CanonicalField = "application_id"
	FieldApplicationDate CanonicalField = "application_date"
	FieldDecisionDate    CanonicalField = "decision_date"
	FieldStatus          CanonicalField = "status"
	FieldLoanAmount      CanonicalField = "loan_amount"
	FieldRejectionReason CanonicalField = "rejection_reason"
	FieldCreditScore     CanonicalField = "credit_score"
	FieldIncome          CanonicalField = "income"
	FieldLoanPurpose     CanonicalField = "loan_purpose"
)

// RequiredFields are the canonical fields that must be mapped before
// normalization can run
var RequiredFields = []CanonicalField{FieldApplicationID, FieldStatus}

// NumericAttributeFields are the open applicant attributes treated as
// numeric for correlation analysis
var NumericAttributeFields = []CanonicalField{FieldLoanAmount, FieldCreditScore, FieldIncome}

// ColumnMapping maps canonical fields to source column names. A field
// maps to at most one column; unmapped optional fields are absent.
type ColumnMapping map[CanonicalField]string

// Source returns the mapped source column for a field, if any
func (m ColumnMapping) Source(field CanonicalField) (string, bool) {
	col, ok := m[field]
	return col, ok && col != ""
}

// Clone returns an independent copy of the mapping
func (m ColumnMapping) Clone() ColumnMapping {
	out := make(ColumnMapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// MissingRequired returns the required fields with no mapped column
func (m ColumnMapping) MissingRequired() []CanonicalField {
	var missing []CanonicalField
	for _, f := range RequiredFields {
		if _, ok := m.Source(f); !ok {
			missing = append(missing, f)
		}
	}
	return missing
}

// FieldCandidate is a proposed source column for one canonical field
type FieldCandidate struct {
	Field      CanonicalField `json:"field"`
	Header     string         `json:"header"`
	Confidence float64        `json:"confidence"` // 0-1
}

// MappingProposal is the mapper's suggestion for an uploaded header set
type MappingProposal struct {
	Mapping    ColumnMapping    `json:"mapping"`
	Candidates []FieldCandidate `json:"candidates"`
	RawHeaders []string         `json:"raw_headers"`
}

// Clone returns an independent copy of the proposal. Overrides are
// applied to a clone and the clone published, so a proposal is never
// mutated after it becomes visible to concurrent readers.
func (p *MappingProposal) Clone() *MappingProposal {
	if p == nil {
		return nil
	}
	return &MappingProposal{
		Mapping:    p.Mapping.Clone(),
		Candidates: append([]FieldCandidate(nil), p.Candidates...),
		RawHeaders: append([]string(nil), p.RawHeaders...),
	}
}

// Confidence returns the proposal's score for a field, 0 if unmapped
func (p *MappingProposal) Confidence(field CanonicalField) float64 {
	for _, c := range p.Candidates {
		if c.Field == field {
			return c.Confidence
		}
	}
	return 0
}
