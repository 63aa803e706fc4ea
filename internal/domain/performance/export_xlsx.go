package performance

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"pmds/internal/domain/audit"
	"pmds/internal/domain/auth"
)

const (
	sheetAgreements = "Agreements"
	sheetKRAs       = "KRAs"
)

var (
	agreementHeaders = []string{"Employee", "Status", "Plan start", "Plan end", "KRAs", "Total weight", "Average agreed rating", "Total score"}
	kraHeaders       = []string{"Employee", "KRA", "Weight %", "Employee rating", "Supervisor rating", "Agreed rating", "Weighted score"}
)

// ExportAgreementsXLSX builds the score report for every agreement the user
// can list with filter.
func (s *Service) ExportAgreementsXLSX(ctx context.Context, user auth.UserContext, filter AgreementFilter) (*bytes.Buffer, error) {
	if user.RoleName != auth.RoleHR {
		filter.Involving = user.UserID
	}
	list, err := s.store.ExportAgreements(ctx, user.TenantID, filter)
	if err != nil {
		return nil, err
	}
	buf, err := renderScoreReport(list)
	if err != nil {
		return nil, fmt.Errorf("build score report: %w", err)
	}
	s.record(ctx, user, audit.ActionExport, audit.EntityAgreement, "", "Agreement score report", nil,
		map[string]any{"format": "xlsx", "rows": len(list)})
	return buf, nil
}

func renderScoreReport(list []Agreement) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("xlsx close failed", "err", err)
		}
	}()
	if err := f.SetSheetName("Sheet1", sheetAgreements); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(sheetKRAs); err != nil {
		return nil, err
	}

	row, err := writeHeader(f, sheetAgreements, 0, agreementHeaders)
	if err != nil {
		return nil, err
	}
	for _, a := range list {
		row++
		var agreed []decimal.Decimal
		for _, k := range a.KRAs {
			if k.AgreedRating != nil {
				agreed = append(agreed, *k.AgreedRating)
			}
		}
		average := ""
		if avg := averageRating(agreed); avg != nil {
			average = avg.StringFixed(2)
		}
		values := []any{
			a.EmployeeName,
			string(a.Status),
			a.PlanStartDate.Format("2006-01-02"),
			a.PlanEndDate.Format("2006-01-02"),
			len(a.KRAs),
			TotalWeight(a.KRAs).InexactFloat64(),
			average,
			TotalScore(a.KRAs).InexactFloat64(),
		}
		if err := writeRow(f, sheetAgreements, row, values); err != nil {
			return nil, err
		}
	}

	row, err = writeHeader(f, sheetKRAs, 0, kraHeaders)
	if err != nil {
		return nil, err
	}
	for _, a := range list {
		for _, k := range a.KRAs {
			row++
			values := []any{
				a.EmployeeName,
				k.Description,
				k.Weighting.InexactFloat64(),
				ratingCell(k.EmployeeRating),
				ratingCell(k.SupervisorRating),
				ratingCell(k.AgreedRating),
				k.WeightedScore.InexactFloat64(),
			}
			if err := writeRow(f, sheetKRAs, row, values); err != nil {
				return nil, err
			}
		}
	}
	return f.WriteToBuffer()
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	for i, v := range values {
		if err := writeColumn(f, sheet, i+1, row, v); err != nil {
			return err
		}
	}
	return nil
}

func writeColumn(f *excelize.File, sheet string, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, value)
}

// writeHeader writes a bold header on the row after row and returns it.
func writeHeader(f *excelize.File, sheet string, row int, headers []string) (int, error) {
	row++
	style, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Font:      &excelize.Font{Bold: true, Size: 11},
	})
	if err != nil {
		return row, err
	}
	first, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return row, err
	}
	last, err := excelize.CoordinatesToCellName(len(headers), row)
	if err != nil {
		return row, err
	}
	if err := f.SetCellStyle(sheet, first, last, style); err != nil {
		return row, err
	}
	lastCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return row, err
	}
	if err := f.SetColWidth(sheet, "A", lastCol, 22); err != nil {
		return row, err
	}
	for i, h := range headers {
		if err := writeColumn(f, sheet, i+1, row, h); err != nil {
			return row, err
		}
	}
	return row, nil
}

func ratingCell(v *decimal.Decimal) any {
	if v == nil {
		return ""
	}
	return v.InexactFloat64()
}
