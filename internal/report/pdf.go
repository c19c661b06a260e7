package report

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"

	"github.com/factorymind/backend/internal/storage/models"
)

// RenderPDF writes the report as an A4 PDF document.
func RenderPDF(rep *models.Report, w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.MultiCell(180, 8, tr(rep.Title), "", "L", false)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(110, 110, 110)
	pdf.CellFormat(180, 6, rep.CreatedAt.Format("2006-01-02 15:04 UTC"), "", 1, "L", false, 0, "")
	pdf.CellFormat(180, 6, tr("Source: "+rep.SourceFile), "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)

	sectionHeader(pdf, "Executive Summary")
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(180, 5, tr(rep.Summary), "", "L", false)
	pdf.Ln(4)

	if len(rep.Metrics) > 0 {
		sectionHeader(pdf, "Key Metrics")
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(235, 235, 235)
		pdf.CellFormat(90, 7, "Metric", "1", 0, "L", true, 0, "")
		pdf.CellFormat(60, 7, "Value", "1", 0, "L", true, 0, "")
		pdf.CellFormat(30, 7, "Trend", "1", 1, "L", true, 0, "")

		pdf.SetFont("Helvetica", "", 9)
		for _, m := range rep.Metrics {
			pdf.CellFormat(90, 7, tr(m.Label), "1", 0, "L", false, 0, "")
			pdf.CellFormat(60, 7, tr(m.Value), "1", 0, "L", false, 0, "")
			pdf.CellFormat(30, 7, m.Trend, "1", 1, "L", false, 0, "")
		}
		pdf.Ln(4)
	}

	bulletSection(pdf, tr, "Observations", rep.Observations)
	bulletSection(pdf, tr, "Recommendations", rep.Recommendations)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render PDF: %w", err)
	}
	return nil
}

func sectionHeader(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(180, 7, title, "", 1, "L", false, 0, "")
	pdf.Ln(1)
}

func bulletSection(pdf *gofpdf.Fpdf, tr func(string) string, title string, items []string) {
	if len(items) == 0 {
		return
	}

	sectionHeader(pdf, title)
	pdf.SetFont("Helvetica", "", 10)
	for _, item := range items {
		pdf.MultiCell(180, 5, tr("- "+item), "", "L", false)
	}
	pdf.Ln(4)
}
