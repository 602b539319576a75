// Package mapper proposes and validates mappings from uploaded column
// headers onto the canonical loan-application schema.
package mapper

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"loanpulse/pkg/contracts/domain"
)

// MappingError reports required canonical fields left unmapped
type MappingError struct {
	Missing []domain.CanonicalField
}

func (e *MappingError) Error() string {
	names := make([]string, len(e.Missing))
	for i, f := range e.Missing {
		names[i] = string(f)
	}
	return fmt.Sprintf("required fields unmapped: %s", strings.Join(names, ", "))
}

// defaultAliases lists the known header spellings per canonical field.
// Extended per-deployment via config.
var defaultAliases = map[domain.CanonicalField][]string{
	domain.FieldApplicationID:   {"application_id", "loan_id", "id", "app_id"},
	domain.FieldApplicationDate: {"application_date", "app_date", "date", "submission_date"},
	domain.FieldDecisionDate:    {"decision_date", "approval_date", "completed_date"},
	domain.FieldStatus:          {"status", "decision", "approval_status", "result", "outcome"},
	domain.FieldLoanAmount:      {"loan_amount", "amount", "requested_amount", "amt"},
	domain.FieldRejectionReason: {"rejection_reason", "decline_reason", "reason", "notes"},
	domain.FieldCreditScore:     {"credit_score", "fico", "credit", "score"},
	domain.FieldIncome:          {"income", "annual_income", "yearly_income", "monthly_income"},
	domain.FieldLoanPurpose:     {"loan_purpose", "purpose", "loan_type"},
}

// fieldOrder fixes the iteration order over canonical fields so that
// proposals are deterministic
var fieldOrder = []domain.CanonicalField{
	domain.FieldApplicationID,
	domain.FieldApplicationDate,
	domain.FieldDecisionDate,
	domain.FieldStatus,
	domain.FieldLoanAmount,
	domain.FieldRejectionReason,
	domain.FieldCreditScore,
	domain.FieldIncome,
	domain.FieldLoanPurpose,
}

// Mapper scores uploaded headers against per-field alias lists
type Mapper struct {
	aliases       map[domain.CanonicalField][]string
	minConfidence float64
	logger        *slog.Logger
}

// New creates a Mapper. extraAliases entries are appended to the
// built-in alias lists for their field.
func New(minConfidence float64, extraAliases map[string][]string, logger *slog.Logger) *Mapper {
	if logger == nil {
		logger = slog.Default()
	}
	aliases := make(map[domain.CanonicalField][]string, len(defaultAliases))
	for field, list := range defaultAliases {
		aliases[field] = append(append([]string(nil), list...), extraAliases[string(field)]...)
	}
	return &Mapper{
		aliases:       aliases,
		minConfidence: minConfidence,
		logger:        logger.With(slog.String("component", "mapper")),
	}
}

// ProposeMapping scores every raw header against every canonical field
// and returns the best candidate per field. A field stays unmapped when
// no header clears the confidence threshold; ties go to the leftmost
// header.
func (m *Mapper) ProposeMapping(rawHeaders []string) *domain.MappingProposal {
	proposal := &domain.MappingProposal{
		Mapping:    make(domain.ColumnMapping),
		RawHeaders: append([]string(nil), rawHeaders...),
	}

	claimed := make(map[string]bool, len(rawHeaders))
	for _, field := range fieldOrder {
		bestScore := 0.0
		bestHeader := ""
		for _, header := range rawHeaders {
			if claimed[header] {
				continue
			}
			score := m.scoreHeader(field, header)
			// Strict > keeps the leftmost header on ties
			if score > bestScore {
				bestScore = score
				bestHeader = header
			}
		}
		if bestScore >= m.minConfidence && bestHeader != "" {
			proposal.Mapping[field] = bestHeader
			proposal.Candidates = append(proposal.Candidates, domain.FieldCandidate{
				Field:      field,
				Header:     bestHeader,
				Confidence: bestScore,
			})
			claimed[bestHeader] = true
			m.logger.Debug("column mapped",
				slog.String("field", string(field)),
				slog.String("header", bestHeader),
				slog.Float64("confidence", bestScore))
		}
	}

	return proposal
}

// ApplyOverride replaces a single field's mapped column. The only
// validation is that the header exists in rawHeaders; an empty header
// clears the field.
func (m *Mapper) ApplyOverride(proposal *domain.MappingProposal, field domain.CanonicalField, header string) error {
	if header == "" {
		delete(proposal.Mapping, field)
		return nil
	}
	found := false
	for _, h := range proposal.RawHeaders {
		if h == header {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("header %q not present in uploaded table", header)
	}
	proposal.Mapping[field] = header
	return nil
}

// Validate fails with *MappingError when a required field remains
// unmapped after overrides
func (m *Mapper) Validate(mapping domain.ColumnMapping) error {
	missing := mapping.MissingRequired()
	if len(missing) > 0 {
		return &MappingError{Missing: missing}
	}
	return nil
}

// scoreHeader returns the best score of the header against any of the
// field's aliases
func (m *Mapper) scoreHeader(field domain.CanonicalField, header string) float64 {
	best := 0.0
	for _, alias := range m.aliases[field] {
		if s := scoreAlias(alias, header); s > best {
			best = s
		}
	}
	return best
}

// scoreAlias grades one alias/header pair. Exact beats case-folded
// beats token-normalized beats substring beats token overlap.
func scoreAlias(alias, header string) float64 {
	if alias == header {
		return 1.0
	}
	aliasLower := strings.ToLower(alias)
	headerLower := strings.ToLower(strings.TrimSpace(header))
	if aliasLower == headerLower {
		return 0.95
	}

	aliasTokens := tokenize(alias)
	headerTokens := tokenize(header)
	if strings.Join(aliasTokens, "") == strings.Join(headerTokens, "") {
		return 0.9
	}

	if strings.Contains(headerLower, aliasLower) || strings.Contains(aliasLower, headerLower) {
		shorter, longer := len(aliasLower), len(headerLower)
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		return 0.5 + 0.3*float64(shorter)/float64(longer)
	}

	return tokenOverlap(aliasTokens, headerTokens)
}

// tokenOverlap scores two token sets by counting tokens where one is a
// prefix of the other, scaled by the Dice coefficient
func tokenOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	matches := 0
	used := make([]bool, len(b))
	for _, at := range a {
		for j, bt := range b {
			if used[j] {
				continue
			}
			if strings.HasPrefix(at, bt) || strings.HasPrefix(bt, at) {
				matches++
				used[j] = true
				break
			}
		}
	}
	if matches == 0 {
		return 0
	}
	return 0.8 * 2 * float64(matches) / float64(len(a)+len(b))
}

// tokenize splits an identifier into lowercase tokens on separators and
// camelCase boundaries, so "DecDate" becomes ["dec", "date"]
func tokenize(s string) []string {
	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, strings.ToLower(current.String()))
			current.Reset()
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case unicode.IsUpper(r) && i > 0 && (unicode.IsLower(runes[i-1]) ||
			(i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))):
			flush()
			current.WriteRune(r)
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return tokens
}
