package report

import (
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/MeatBorsa/mailflow/internal/batch"
)

// WritePDF renders a one-page summary of the batch run: counts, status and
// one line per analyzed email.
func WritePDF(r batch.Report, outPath string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, "Mailflow batch report", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Run: %s", r.RunID), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Status: %s", r.Summary.ProcessingStatus), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Emails: %d total, %d with trading info, %d meat related",
		r.TotalEmails, r.TradingEmails, r.MeatRelatedEmails), "", 1, "L", false, 0, "")
	if r.Error != "" {
		pdf.MultiCell(0, 6, "Error: "+r.Error, "", "L", false)
	}
	pdf.Ln(4)

	for _, a := range r.Analyses {
		line := a.Metadata.Subject
		if line == "" {
			line = a.Metadata.MessageID
		}
		if a.Failed() {
			line += " - FAILED: " + a.Failure.Error()
		} else if action, ok := a.Record["action"].(string); ok && action != "" {
			line += " - " + action
		}
		pdf.MultiCell(0, 5, line, "", "L", false)
	}

	return pdf.OutputFileAndClose(outPath)
}
