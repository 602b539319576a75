// Package exporter serializes record sets and metric snapshots for
// download into BI tools. Column ordering is fixed so repeated exports
// never drift.
package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"loanpulse/pkg/contracts/domain"
)

// recordHeaders is the stable column order for record exports
var recordHeaders = []string{
	"application_id",
	"application_date",
	"decision_date",
	"status",
	"loan_amount",
	"rejection_reason",
	"credit_score",
	"income",
	"loan_purpose",
}

const dateLayout = "2006-01-02"

// WriteRecordsCSV writes the canonical record set as CSV with a UTF-8
// BOM so Excel opens it cleanly
func WriteRecordsCSV(w io.Writer, set *domain.RecordSet) error {
	if err := writeBOM(w); err != nil {
		return err
	}
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(recordHeaders); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for i, r := range set.Records {
		if err := writer.Write(recordRow(r)); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	return writer.Error()
}

// WriteMetricsCSV writes every MetricSet sub-part as a sectioned CSV
// report, one section per metric, in a fixed order
func WriteMetricsCSV(w io.Writer, m *domain.MetricSet) error {
	if err := writeBOM(w); err != nil {
		return err
	}
	writer := csv.NewWriter(w)
	defer writer.Flush()

	writer.Write([]string{"Loan Origination Metrics Report"})
	writer.Write([]string{"Generated:", m.GeneratedAt.Format("2006-01-02 15:04:05")})
	writer.Write([]string{""})

	writer.Write([]string{"SUMMARY"})
	writer.Write([]string{"total_applications", "approved", "rejected", "pending", "approval_rate", "mean_processing_days", "median_processing_days"})
	writer.Write([]string{
		strconv.Itoa(m.Summary.TotalApplications),
		strconv.Itoa(m.Summary.ApprovedCount),
		strconv.Itoa(m.Summary.RejectedCount),
		strconv.Itoa(m.Summary.PendingCount),
		formatFloat(m.Summary.ApprovalRate),
		formatFloat(m.Summary.MeanProcessingDays),
		formatFloat(m.Summary.MedianProcessingDays),
	})
	writer.Write([]string{""})

	writer.Write([]string{"PROCESSING TIME"})
	writer.Write([]string{"count", "mean_days", "median_days", "p90_days", "min_days", "max_days", "anomalies"})
	writer.Write([]string{
		strconv.Itoa(m.ProcessingTime.Count),
		formatFloat(m.ProcessingTime.MeanDays),
		formatFloat(m.ProcessingTime.MedianDays),
		formatFloat(m.ProcessingTime.P90Days),
		strconv.Itoa(m.ProcessingTime.MinDays),
		strconv.Itoa(m.ProcessingTime.MaxDays),
		strconv.Itoa(m.ProcessingTime.Anomalies),
	})
	writer.Write([]string{""})

	writer.Write([]string{"PROCESSING TIME HISTOGRAM"})
	writer.Write([]string{"bucket", "count"})
	for _, b := range m.ProcessingTime.Histogram {
		writer.Write([]string{b.Label, strconv.Itoa(b.Count)})
	}
	writer.Write([]string{""})

	writer.Write([]string{"REJECTION REASONS"})
	writer.Write([]string{"reason", "count", "share"})
	for _, r := range m.RejectionReasons {
		writer.Write([]string{r.Reason, strconv.Itoa(r.Count), formatFloat(r.Share)})
	}
	writer.Write([]string{""})

	writer.Write([]string{"APPROVAL TREND (" + string(m.TrendPeriod) + ")"})
	writer.Write([]string{"period", "total", "approved", "rejected", "approval_rate"})
	for _, p := range m.Trend {
		writer.Write([]string{
			p.Period,
			strconv.Itoa(p.Total),
			strconv.Itoa(p.Approved),
			strconv.Itoa(p.Rejected),
			formatFloat(p.ApprovalRate),
		})
	}
	writer.Write([]string{""})

	writer.Write([]string{"CORRELATIONS"})
	writer.Write([]string{"attribute", "coefficient", "sample_size", "omitted", "reason"})
	for _, c := range m.Correlations {
		writer.Write([]string{
			c.Attribute,
			formatFloat(c.Coefficient),
			strconv.Itoa(c.SampleSize),
			strconv.FormatBool(c.Omitted),
			c.Reason,
		})
	}
	writer.Write([]string{""})

	writer.Write([]string{"LOAN AMOUNTS BY STATUS"})
	writer.Write([]string{"status", "count", "mean", "median", "min", "max"})
	for _, a := range m.AmountsByStatus {
		writer.Write([]string{
			string(a.Status),
			strconv.Itoa(a.Count),
			formatFloat(a.Mean),
			formatFloat(a.Median),
			formatFloat(a.Min),
			formatFloat(a.Max),
		})
	}

	return writer.Error()
}

func recordRow(r domain.LoanRecord) []string {
	row := make([]string, 0, len(recordHeaders))
	row = append(row, r.ApplicationID)
	row = append(row, formatDate(r.ApplicationDate))
	if r.DecisionDate != nil {
		row = append(row, r.DecisionDate.Format(dateLayout))
	} else {
		row = append(row, "")
	}
	row = append(row, string(r.Status))
	if r.LoanAmount != nil {
		row = append(row, formatFloat(*r.LoanAmount))
	} else {
		row = append(row, "")
	}
	row = append(row, r.RejectionReason)
	row = append(row, formatAttribute(r, domain.FieldCreditScore))
	row = append(row, formatAttribute(r, domain.FieldIncome))
	row = append(row, r.Labels[string(domain.FieldLoanPurpose)])
	return row
}

func formatAttribute(r domain.LoanRecord, field domain.CanonicalField) string {
	if v, ok := r.Attributes[string(field)]; ok {
		return formatFloat(v)
	}
	return ""
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// writeBOM prefixes UTF-8 output for Excel compatibility
func writeBOM(w io.Writer) error {
	_, err := w.Write([]byte{0xEF, 0xBB, 0xBF})
	return err
}
