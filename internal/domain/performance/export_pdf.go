package performance

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"

	"pmds/internal/domain/audit"
	"pmds/internal/domain/auth"
	"pmds/internal/domain/users"
)

// ExportAgreementPDF renders a printable copy of one agreement.
func (s *Service) ExportAgreementPDF(ctx context.Context, user auth.UserContext, id string) ([]byte, string, error) {
	a, _, err := s.loadAgreement(ctx, user, id)
	if err != nil {
		return nil, "", err
	}
	employee, err := s.users.Get(ctx, user.TenantID, a.EmployeeID)
	if err != nil {
		slog.Warn("pdf employee lookup failed", "employeeId", a.EmployeeID, "err", err)
		employee = users.User{ID: a.EmployeeID, Username: a.EmployeeName}
	}
	body, err := renderAgreementPDF(a, employee)
	if err != nil {
		return nil, "", err
	}
	s.record(ctx, user, audit.ActionExport, audit.EntityAgreement, id, a.String(), nil, map[string]string{"format": "pdf"})
	filename := fmt.Sprintf("agreement-%s-%d.pdf", a.ID, a.PlanStartDate.Year())
	return body, filename, nil
}

func renderAgreementPDF(a Agreement, employee users.User) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(a.String(), false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Performance Agreement")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	employeeNumber := "-"
	if employee.EmployeeID != nil {
		employeeNumber = *employee.EmployeeID
	}
	pdf.Cell(0, 7, fmt.Sprintf("Employee: %s", employee.FullName()))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Employee ID: %s", employeeNumber))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Department: %s", orDash(employee.Department)))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Period: %s to %s", a.PlanStartDate.Format("2006-01-02"), a.PlanEndDate.Format("2006-01-02")))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Status: %s", a.Status))
	pdf.Ln(10)

	section(pdf, "Key Result Areas")
	tableHeader(pdf, []string{"#", "Description", "Weight %"}, []float64{10, 140, 30})
	for i, k := range a.KRAs {
		pdf.CellFormat(10, 7, strconv.Itoa(i+1), "1", 0, "C", false, 0, "")
		pdf.CellFormat(140, 7, truncate(pdf, k.Description, 138), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 7, k.Weighting.StringFixed(2), "1", 1, "R", false, 0, "")
	}
	pdf.CellFormat(150, 7, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 7, TotalWeight(a.KRAs).StringFixed(2), "1", 1, "R", false, 0, "")
	pdf.Ln(6)

	section(pdf, "Generic Assessment Factors")
	tableHeader(pdf, []string{"#", "Factor", "Applicable"}, []float64{10, 140, 30})
	for i, g := range a.GAFs {
		applicable := "No"
		if g.IsApplicable {
			applicable = "Yes"
		}
		pdf.CellFormat(10, 7, strconv.Itoa(i+1), "1", 0, "C", false, 0, "")
		pdf.CellFormat(140, 7, truncate(pdf, g.Name, 138), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 7, applicable, "1", 1, "C", false, 0, "")
	}
	pdf.Ln(6)

	section(pdf, "Comments")
	for _, c := range []struct{ label, text string }{
		{"Employee", a.EmployeeComments},
		{"Supervisor", a.SupervisorComments},
		{"Manager", a.ManagerComments},
		{"HR", a.HRComments},
	} {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.Cell(0, 6, c.label)
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, orDash(c.text), "", "L", false)
		pdf.Ln(2)
	}
	pdf.Ln(4)

	section(pdf, "Approvals")
	pdf.SetFont("Helvetica", "", 10)
	for _, d := range []struct {
		label string
		at    *time.Time
	}{
		{"Submitted by employee", a.EmployeeSubmittedAt},
		{"Signed off by supervisor", a.SupervisorSignoffAt},
		{"Approved by manager", a.ManagerApprovedAt},
		{"Verified by HR", a.HRVerifiedAt},
		{"Completed", a.CompletedAt},
	} {
		value := "-"
		if d.at != nil {
			value = d.at.Format("2006-01-02")
		}
		pdf.Cell(70, 6, d.label)
		pdf.Cell(0, 6, value)
		pdf.Ln(6)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func section(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, title)
	pdf.Ln(9)
}

func tableHeader(pdf *gofpdf.Fpdf, headers []string, widths []float64) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 10)
}

// truncate shortens text to fit a cell of width mm.
func truncate(pdf *gofpdf.Fpdf, text string, width float64) string {
	if pdf.GetStringWidth(text) <= width {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...") > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
