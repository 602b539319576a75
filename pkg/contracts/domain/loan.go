package domain

import (
	"strconv"
	"time"
)

// LoanStatus represents the standardized outcome of a loan application
type LoanStatus string

const (
	StatusApproved LoanStatus = "approved"
	StatusRejected LoanStatus = "rejected"
	StatusPending  LoanStatus = "pending"
)

// CellKind identifies the resolved type of a raw table cell
type CellKind string

const (
	CellEmpty  CellKind = "empty"
	CellString CellKind = "string"
	CellNumber CellKind = "number"
	CellDate   CellKind = "date"
)

// Cell is a tagged raw value read from an uploaded table. Exactly one of
// the value fields is meaningful, selected by Kind.
type Cell struct {
	Kind   CellKind  `json:"kind"`
	String string    `json:"string,omitempty"`
	Number float64   `json:"number,omitempty"`
	Date   time.Time `json:"date,omitempty"`
}

// Text returns the cell's best-effort textual form for parsing
func (c Cell) Text() string {
	switch c.Kind {
	case CellString:
		return c.String
	case CellNumber:
		// Prefer the original spelling when the reader kept it, so
		// numeric-looking identifiers keep leading zeros.
		if c.String != "" {
			return c.String
		}
		return formatNumber(c.Number)
	case CellDate:
		return c.Date.Format("2006-01-02")
	default:
		return ""
	}
}

// IsEmpty reports whether the cell carries no value
func (c Cell) IsEmpty() bool {
	return c.Kind == CellEmpty || (c.Kind == CellString && c.String == "")
}

// RawTable is an uploaded table before normalization. Headers preserve
// the source column order; each row maps source column name to cell.
type RawTable struct {
	Headers []string          `json:"headers"`
	Rows    []map[string]Cell `json:"rows"`
	Source  string            `json:"source,omitempty"` // original filename, if any
}

// RowCount returns the number of data rows
func (t *RawTable) RowCount() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// LoanRecord represents one normalized loan application
type LoanRecord struct {
	ApplicationID   string             `json:"application_id" validate:"required"`
	ApplicationDate time.Time          `json:"application_date"`
	DecisionDate    *time.Time         `json:"decision_date,omitempty"`
	Status          LoanStatus         `json:"status" validate:"required,oneof=approved rejected pending"`
	LoanAmount      *float64           `json:"loan_amount,omitempty" validate:"omitempty,min=0"`
	RejectionReason string             `json:"rejection_reason,omitempty"`
	Attributes      map[string]float64 `json:"attributes,omitempty"`
	Labels          map[string]string  `json:"labels,omitempty"`
	DateConflict    bool               `json:"date_conflict,omitempty"` // decision date precedes application date
}

// ProcessingDays returns the whole days between application and decision
// dates, and whether both dates are present with a non-negative span.
func (r *LoanRecord) ProcessingDays() (int, bool) {
	if r.DecisionDate == nil || r.ApplicationDate.IsZero() {
		return 0, false
	}
	days := int(r.DecisionDate.Sub(r.ApplicationDate).Hours() / 24)
	if days < 0 {
		return 0, false
	}
	return days, true
}

// RecordSet is the immutable result of normalizing one upload
type RecordSet struct {
	Records      []LoanRecord         `json:"records"`
	Summary      NormalizationSummary `json:"summary"`
	NormalizedAt time.Time            `json:"normalized_at"`
}

// NormalizationSummary reports how rows fared during normalization.
// Row-level issues are counted here, never fatal.
type NormalizationSummary struct {
	TotalRows         int `json:"total_rows"`
	KeptRows          int `json:"kept_rows"`
	DroppedMissingID  int `json:"dropped_missing_id"`
	DroppedBadDate    int `json:"dropped_bad_date"`
	DroppedBadAmount  int `json:"dropped_bad_amount"`
	FlaggedDateOrder  int `json:"flagged_date_order"`
	UnmatchedStatuses int `json:"unmatched_statuses"`
}

func formatNumber(v float64) string {
	// Keep integer-valued numbers free of a trailing ".000000"
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
