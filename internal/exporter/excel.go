package exporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"loanpulse/pkg/contracts/domain"
)

const (
	sheetData       = "Loan Data"
	sheetSummary    = "Summary"
	sheetRejections = "Rejection Reasons"
	sheetTrend      = "Approval Trend"
	sheetInsights   = "Insights"
)

// WriteWorkbook writes the record set, metric snapshot and insights as
// an XLSX workbook suitable for Power BI / Tableau import
func WriteWorkbook(w io.Writer, set *domain.RecordSet, m *domain.MetricSet, insights []domain.Insight) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"D7E4BC"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeDataSheet(f, set, headerStyle); err != nil {
		return err
	}
	if err := writeSummarySheet(f, m, headerStyle); err != nil {
		return err
	}
	if err := writeRejectionSheet(f, m, headerStyle); err != nil {
		return err
	}
	if err := writeTrendSheet(f, m, headerStyle); err != nil {
		return err
	}
	if err := writeInsightsSheet(f, insights, headerStyle); err != nil {
		return err
	}

	// The default sheet excelize creates is replaced by Loan Data
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to drop default sheet: %w", err)
	}
	if idx, err := f.GetSheetIndex(sheetData); err == nil {
		f.SetActiveSheet(idx)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeDataSheet(f *excelize.File, set *domain.RecordSet, headerStyle int) error {
	if _, err := f.NewSheet(sheetData); err != nil {
		return fmt.Errorf("failed to create sheet %q: %w", sheetData, err)
	}
	if err := writeHeaderRow(f, sheetData, recordHeaders, headerStyle); err != nil {
		return err
	}
	for i, r := range set.Records {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := recordRow(r)
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheetData, cell, &values); err != nil {
			return fmt.Errorf("failed to write data row %d: %w", i, err)
		}
	}
	return sizeColumns(f, sheetData, len(recordHeaders))
}

func writeSummarySheet(f *excelize.File, m *domain.MetricSet, headerStyle int) error {
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return fmt.Errorf("failed to create sheet %q: %w", sheetSummary, err)
	}
	if err := writeHeaderRow(f, sheetSummary, []string{"metric", "value"}, headerStyle); err != nil {
		return err
	}
	rows := [][]interface{}{
		{"total_applications", m.Summary.TotalApplications},
		{"approved_count", m.Summary.ApprovedCount},
		{"rejected_count", m.Summary.RejectedCount},
		{"pending_count", m.Summary.PendingCount},
		{"approval_rate", m.Summary.ApprovalRate},
		{"mean_processing_days", m.Summary.MeanProcessingDays},
		{"median_processing_days", m.Summary.MedianProcessingDays},
		{"processing_p90_days", m.ProcessingTime.P90Days},
		{"processing_anomalies", m.ProcessingTime.Anomalies},
	}
	for _, c := range m.Correlations {
		if c.Omitted {
			rows = append(rows, []interface{}{"correlation_" + c.Attribute, c.Reason})
			continue
		}
		rows = append(rows, []interface{}{"correlation_" + c.Attribute, c.Coefficient})
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheetSummary, cell, &row); err != nil {
			return fmt.Errorf("failed to write summary row %d: %w", i, err)
		}
	}
	return sizeColumns(f, sheetSummary, 2)
}

func writeRejectionSheet(f *excelize.File, m *domain.MetricSet, headerStyle int) error {
	if _, err := f.NewSheet(sheetRejections); err != nil {
		return fmt.Errorf("failed to create sheet %q: %w", sheetRejections, err)
	}
	if err := writeHeaderRow(f, sheetRejections, []string{"reason", "count", "share"}, headerStyle); err != nil {
		return err
	}
	for i, r := range m.RejectionReasons {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []interface{}{r.Reason, r.Count, r.Share}
		if err := f.SetSheetRow(sheetRejections, cell, &row); err != nil {
			return fmt.Errorf("failed to write rejection row %d: %w", i, err)
		}
	}
	return sizeColumns(f, sheetRejections, 3)
}

func writeTrendSheet(f *excelize.File, m *domain.MetricSet, headerStyle int) error {
	if _, err := f.NewSheet(sheetTrend); err != nil {
		return fmt.Errorf("failed to create sheet %q: %w", sheetTrend, err)
	}
	if err := writeHeaderRow(f, sheetTrend, []string{"period", "total", "approved", "rejected", "approval_rate"}, headerStyle); err != nil {
		return err
	}
	for i, p := range m.Trend {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []interface{}{p.Period, p.Total, p.Approved, p.Rejected, p.ApprovalRate}
		if err := f.SetSheetRow(sheetTrend, cell, &row); err != nil {
			return fmt.Errorf("failed to write trend row %d: %w", i, err)
		}
	}
	return sizeColumns(f, sheetTrend, 5)
}

func writeInsightsSheet(f *excelize.File, insights []domain.Insight, headerStyle int) error {
	if _, err := f.NewSheet(sheetInsights); err != nil {
		return fmt.Errorf("failed to create sheet %q: %w", sheetInsights, err)
	}
	if err := writeHeaderRow(f, sheetInsights, []string{"category", "severity", "message"}, headerStyle); err != nil {
		return err
	}
	for i, insight := range insights {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []interface{}{insight.Category, string(insight.Severity), insight.Message}
		if err := f.SetSheetRow(sheetInsights, cell, &row); err != nil {
			return fmt.Errorf("failed to write insight row %d: %w", i, err)
		}
	}
	return sizeColumns(f, sheetInsights, 3)
}

func writeHeaderRow(f *excelize.File, sheet string, headers []string, style int) error {
	values := make([]interface{}, len(headers))
	for i, h := range headers {
		values[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &values); err != nil {
		return fmt.Errorf("failed to write header row on %q: %w", sheet, err)
	}
	endCell, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheet, "A1", endCell, style); err != nil {
		return fmt.Errorf("failed to style header row on %q: %w", sheet, err)
	}
	return nil
}

func sizeColumns(f *excelize.File, sheet string, count int) error {
	endCol, _ := excelize.ColumnNumberToName(count)
	if err := f.SetColWidth(sheet, "A", endCol, 18); err != nil {
		return fmt.Errorf("failed to size columns on %q: %w", sheet, err)
	}
	return nil
}
