package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/audos/intake/form"
	"github.com/audos/intake/invoice"
	"github.com/audos/intake/output"
)

// CommandError signals a command failure with a specific exit code.
// Commands return this after handling all output (printing errors/warnings to stderr).
// Main centralizes exit handling instead of commands calling os.Exit directly.
type CommandError struct {
	exitCode int
}

// NewCommandError creates a new CommandError with the given exit code.
func NewCommandError(exitCode int) *CommandError {
	return &CommandError{exitCode: exitCode}
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	return "command failed"
}

// ExitCode returns the exit code associated with this error.
func (e *CommandError) ExitCode() int {
	return e.exitCode
}

// renderSubmission writes the outcome of a submission: the line-item
// table, totals, the service's verdict, and any warnings.
//
// Descriptions may mix Japanese and Latin text, so column widths use
// display width rather than rune count.
func renderSubmission(w io.Writer, res *form.SubmissionResult) {
	styles := output.NewStyles(w)

	renderItems(w, styles, res.Form.Items)
	_, _ = fmt.Fprintln(w)

	totals := invoice.ComputeTotals(res.Form.Items)
	_, _ = fmt.Fprintf(w, "  Subtotal   %s\n", styles.Amount(totals.Subtotal.StringFixed(2)))
	_, _ = fmt.Fprintf(w, "  Tax        %s\n", styles.Amount(totals.TaxTotal.StringFixed(2)))
	_, _ = fmt.Fprintf(w, "  Total      %s\n", styles.Amount(totals.GrandTotal.StringFixed(2)))
	_, _ = fmt.Fprintln(w)

	if res.Compliant {
		printSuccess(w, "Invoice meets qualified invoice requirements")
	} else {
		printError(w, fmt.Sprintf("%d issue(s) found", res.IssuesCount))
	}

	for _, warning := range res.Warnings {
		printWarning(w, warning)
	}

	if res.ArtifactPath != "" {
		printInfof(w, "Document written to %s", pathStyle.Render(res.ArtifactPath))
	}
	printInfof(w, "Submission %s", res.ID)
}

// renderItems prints the line items with columns aligned by display
// width.
func renderItems(w io.Writer, styles *output.Styles, items []invoice.LineItem) {
	descWidth := runewidth.StringWidth("Description")
	for _, li := range items {
		if width := runewidth.StringWidth(li.Description); width > descWidth {
			descWidth = width
		}
	}

	header := fmt.Sprintf("  %s  %8s  %12s  %5s  %12s",
		pad("Description", descWidth), "Qty", "Unit Price", "Tax", "Amount")
	_, _ = fmt.Fprintln(w, header)
	_, _ = fmt.Fprintln(w, "  "+styles.Dim(strings.Repeat("-", runewidth.StringWidth(header)-2)))

	for _, li := range items {
		_, _ = fmt.Fprintf(w, "  %s  %8s  %12s  %4d%%  %12s\n",
			pad(li.Description, descWidth),
			li.Qty.String(),
			li.UnitPrice.StringFixed(2),
			li.TaxRate,
			li.Amount().StringFixed(2),
		)
	}
}

// pad right-pads s with spaces to the given display width.
func pad(s string, width int) string {
	gap := width - runewidth.StringWidth(s)
	if gap <= 0 {
		return s
	}
	return s + strings.Repeat(" ", gap)
}
