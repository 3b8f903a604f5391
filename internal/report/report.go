// Package report renders cycle exports as Excel workbooks.
package report

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/mmynk/roomledger/internal/lifecycle"
)

const (
	SummarySheet  = "Summary"
	ExpensesSheet = "Expenses"

	// ContentType is the media type of the generated workbook.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	dateLayout = "2006-01-02 15:04"
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// FileName returns the download name for a cycle export.
func FileName(r *lifecycle.CycleReport) string {
	title := strings.Trim(unsafeFileChars.ReplaceAllString(r.Room.Title, "_"), "_")
	if title == "" {
		title = "room"
	}
	created := time.Unix(r.Cycle.CreatedAt, 0).UTC().Format("20060102")
	return fmt.Sprintf("%s_cycle_%s.xlsx", title, created)
}

// Build renders the report as an in-memory workbook. The caller must
// Close it.
func Build(r *lifecycle.CycleReport) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(ExpensesSheet); err != nil {
		f.Close()
		return nil, err
	}

	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4F46E5"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		f.Close()
		return nil, err
	}

	if err := writeSummary(f, r, header); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeExpenses(f, r, header); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// Render returns the workbook bytes for r.
func Render(r *lifecycle.CycleReport) ([]byte, error) {
	f, err := Build(r)
	if err != nil {
		return nil, fmt.Errorf("failed to build workbook: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSummary(f *excelize.File, r *lifecycle.CycleReport, header int) error {
	status := "open"
	switch {
	case r.Cycle.IsClosed:
		status = "closed"
	case r.Cycle.IsFrozen:
		status = "frozen"
	}
	closedAt := ""
	if r.Cycle.ClosedAt != 0 {
		closedAt = formatTime(r.Cycle.ClosedAt)
	}

	rows := [][]any{
		{"Room", r.Room.Title},
		{"Threshold", r.Room.Threshold.InexactFloat64()},
		{"Cycle total", r.Cycle.TotalAmount.InexactFloat64()},
		{"Status", status},
		{"Opened", formatTime(r.Cycle.CreatedAt)},
		{"Closed", closedAt},
		{},
		{"Member", "Email", "Payment status"},
	}
	for _, m := range r.Members {
		rows = append(rows, []any{m.DisplayName, m.Email, string(m.PaymentStatus)})
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return err
		}
	}

	memberHeader := 8
	if err := f.SetCellStyle(SummarySheet, fmt.Sprintf("A%d", memberHeader), fmt.Sprintf("C%d", memberHeader), header); err != nil {
		return err
	}
	if err := f.SetColWidth(SummarySheet, "A", "A", 18); err != nil {
		return err
	}
	return f.SetColWidth(SummarySheet, "B", "C", 28)
}

func writeExpenses(f *excelize.File, r *lifecycle.CycleReport, header int) error {
	names := make(map[string]string, len(r.Members))
	for _, m := range r.Members {
		names[m.UserID] = m.DisplayName
	}

	headers := []any{"No", "Date", "Item", "Category", "Added by", "Amount"}
	if err := f.SetSheetRow(ExpensesSheet, "A1", &headers); err != nil {
		return err
	}
	if err := f.SetCellStyle(ExpensesSheet, "A1", "F1", header); err != nil {
		return err
	}

	for i, e := range r.Expenses {
		addedBy := names[e.AddedByID]
		if addedBy == "" {
			addedBy = e.AddedByID
		}
		row := []any{i + 1, formatTime(e.CreatedAt), e.ItemName, e.Category, addedBy, e.Amount.InexactFloat64()}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(ExpensesSheet, cell, &row); err != nil {
			return err
		}
	}

	totalRow := len(r.Expenses) + 2
	if err := f.SetCellValue(ExpensesSheet, fmt.Sprintf("E%d", totalRow), "Total"); err != nil {
		return err
	}
	if err := f.SetCellValue(ExpensesSheet, fmt.Sprintf("F%d", totalRow), r.Cycle.TotalAmount.InexactFloat64()); err != nil {
		return err
	}

	widths := []struct {
		from, to string
		width    float64
	}{
		{"A", "A", 5},
		{"B", "B", 18},
		{"C", "C", 30},
		{"D", "E", 16},
		{"F", "F", 14},
	}
	for _, w := range widths {
		if err := f.SetColWidth(ExpensesSheet, w.from, w.to, w.width); err != nil {
			return err
		}
	}
	return nil
}

func formatTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format(dateLayout)
}
