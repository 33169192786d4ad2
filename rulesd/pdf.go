package rulesd

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/audos/intake/rules"
)

// renderPDF lays out the validated invoice as an A4 document with a
// compliance stamp derived from the validation report.
func renderPDF(p *rules.InvoicePayload, report *rules.ValidationReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Invoice "+p.InvoiceNo, true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, "INVOICE", "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 10)
	left := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(40, 6, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 6, value, "", 1, "L", false, 0, "")
	}

	left("Invoice No.", p.InvoiceNo)
	left("Issue Date", p.InvoiceDate)
	if p.DueDate != "" {
		left("Due Date", p.DueDate)
	}
	pdf.Ln(2)

	left("Seller", p.SellerName)
	left("Registration No.", "T"+p.SellerRegNo)
	left("Address", p.SellerAddress)
	pdf.Ln(2)

	left("Bill To", p.BuyerName)
	left("", p.BuyerAddress)
	pdf.Ln(4)

	// Items table
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(80, 7, "Description", "1", 0, "L", true, 0, "")
	pdf.CellFormat(25, 7, "Qty", "1", 0, "R", true, 0, "")
	pdf.CellFormat(30, 7, "Unit Price", "1", 0, "R", true, 0, "")
	pdf.CellFormat(20, 7, "Tax", "1", 0, "R", true, 0, "")
	pdf.CellFormat(35, 7, "Amount", "1", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	for _, item := range p.Items {
		amount := item.Qty * item.UnitPrice
		pdf.CellFormat(80, 7, item.Description, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 7, trimFloat(item.Qty), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%.2f", item.UnitPrice), "1", 0, "R", false, 0, "")
		pdf.CellFormat(20, 7, item.TaxRate, "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 7, fmt.Sprintf("%.2f", amount), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(3)

	totalRow := func(label string, value float64) {
		pdf.CellFormat(135, 6, "", "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(20, 6, label, "", 0, "R", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", value), "", 1, "R", false, 0, "")
	}
	totalRow("Subtotal", p.Totals.Subtotal)
	totalRow("Tax", p.Totals.TaxTotal)
	totalRow("Total", p.Totals.GrandTotal)
	pdf.Ln(4)

	if p.Remarks != "" {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(0, 6, "Remarks", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.MultiCell(0, 5, p.Remarks, "", "L", false)
		pdf.Ln(2)
	}

	// Compliance stamp
	if report.Compliant {
		pdf.SetTextColor(0, 128, 0)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(0, 8, "Qualified invoice requirements: PASS", "1", 1, "C", false, 0, "")
	} else {
		pdf.SetTextColor(178, 34, 34)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(0, 8, fmt.Sprintf("Qualified invoice requirements: FAIL (%d issues)", report.IssuesCount), "1", 1, "C", false, 0, "")
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(0, 0, 0)
		for _, issue := range report.Issues {
			pdf.CellFormat(0, 5, "- "+issue, "", 1, "L", false, 0, "")
		}
	}
	pdf.SetTextColor(0, 0, 0)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// trimFloat renders a quantity without trailing zero noise.
func trimFloat(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}
