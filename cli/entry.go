package cli

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strconv"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/huh"

	"github.com/audos/intake/form"
	"github.com/audos/intake/invoice"
	"github.com/audos/intake/rules"
	"github.com/audos/intake/telemetry"
)

type EntryCmd struct {
	Output   string        `help:"Directory to write the generated document to." short:"o" type:"existingdir" optional:""`
	Debounce time.Duration `help:"Quiet period before a live field check fires." default:"500ms"`
}

func (cmd *EntryCmd) Run(ctx *kong.Context, globals *Globals) error {
	if !isTerminal() {
		return fmt.Errorf("interactive entry requires a terminal; use 'audos validate' for scripted use")
	}

	runCtx := context.Background()

	var collector telemetry.Collector
	if globals.Telemetry {
		collector = telemetry.NewTimingCollector()
		runCtx = telemetry.WithCollector(runCtx, collector)

		defer func() {
			_, _ = fmt.Fprintln(ctx.Stderr)
			collector.Report(ctx.Stderr)
		}()
	}

	opts := []form.Option{
		form.WithLanguage(globals.Lang),
		form.WithDebounce(cmd.Debounce),
	}
	if globals.Service != "" {
		opts = append(opts, form.WithClient(rules.NewClient(globals.Service)))
	}
	if cmd.Output != "" {
		opts = append(opts, form.WithArtifactDir(cmd.Output))
	}
	f := form.New(opts...)

	if err := cmd.promptFields(f); err != nil {
		return err
	}
	if err := cmd.promptItems(ctx, f); err != nil {
		return err
	}

	res, err := f.Submit(runCtx)
	if err != nil {
		return renderSubmitError(ctx, err)
	}

	renderSubmission(ctx.Stdout, res)
	return nil
}

// promptFields walks the top-level fields in their form order. Each
// answer flows through SetField/BlurField, so the engine's local rules
// run as the inline huh validators.
func (cmd *EntryCmd) promptFields(f *form.Form) error {
	values := make(map[invoice.Field]*string, len(invoice.Fields()))

	var inputs []huh.Field
	for _, field := range invoice.Fields() {
		field := field
		value := new(string)
		values[field] = value

		title := fieldTitle(field)
		if !field.Required() {
			title += " (optional)"
		}

		inputs = append(inputs, huh.NewInput().
			Title(title).
			Validate(func(s string) error {
				return form.CheckLocal(field, s)
			}).
			Value(value))
	}

	groups := []*huh.Group{
		huh.NewGroup(inputs[0:3]...).Title("Seller"),
		huh.NewGroup(inputs[3:5]...).Title("Buyer"),
		huh.NewGroup(inputs[5:9]...).Title("Details"),
	}

	if err := huh.NewForm(groups...).Run(); err != nil {
		return fmt.Errorf("entry aborted: %w", err)
	}

	for field, value := range values {
		f.SetField(field, *value)
		f.BlurField(field)
	}
	return nil
}

// promptItems collects line items one row at a time until the user
// stops adding more.
func (cmd *EntryCmd) promptItems(ctx *kong.Context, f *form.Form) error {
	for row := 0; ; row++ {
		if row > 0 {
			f.AddRow()
		}

		var (
			description string
			qty         string
			unitPrice   string
			taxRate     string
		)

		group := huh.NewGroup(
			huh.NewInput().
				Title("Description").
				Validate(requireText("description")).
				Value(&description),
			huh.NewInput().
				Title("Quantity").
				Validate(requirePositiveNumber("quantity")).
				Value(&qty),
			huh.NewInput().
				Title("Unit price").
				Validate(requireNonNegativeNumber("unit price")).
				Value(&unitPrice),
			huh.NewSelect[string]().
				Title("Tax rate").
				Options(
					huh.NewOption("10% (standard)", "10"),
					huh.NewOption("8% (reduced)", "8"),
					huh.NewOption("0%", "0"),
				).
				Value(&taxRate),
		).Title(fmt.Sprintf("Item %d", row+1))

		if err := huh.NewForm(group).Run(); err != nil {
			return fmt.Errorf("entry aborted: %w", err)
		}

		f.EditItem(row, form.ColumnDescription, description)
		f.EditItem(row, form.ColumnQty, qty)
		f.EditItem(row, form.ColumnUnitPrice, unitPrice)
		f.EditItem(row, form.ColumnTaxRate, taxRate)
		f.BlurItem(row, form.ColumnQty)
		f.BlurItem(row, form.ColumnUnitPrice)

		more, err := promptYesNo(ctx, "Add another item?")
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

// renderSubmitError prints a submission failure and converts it to an
// exit code. Local problems and remote rejections list their details;
// anything else propagates as-is.
func renderSubmitError(ctx *kong.Context, err error) error {
	var local *form.LocalValidationError
	if stdErrors.As(err, &local) {
		printError(ctx.Stderr, "invoice is not valid")
		for _, problem := range local.Problems {
			_, _ = fmt.Fprintf(ctx.Stderr, "  %s\n", problem)
		}
		return NewCommandError(1)
	}

	var rejected *form.SubmitRejectedError
	if stdErrors.As(err, &rejected) {
		printError(ctx.Stderr, rejected.Message)
		for _, detail := range rejected.Details {
			_, _ = fmt.Fprintf(ctx.Stderr, "  %s\n", detail)
		}
		return NewCommandError(1)
	}

	return err
}

func fieldTitle(field invoice.Field) string {
	switch field {
	case invoice.FieldSellerName:
		return "Seller name"
	case invoice.FieldSellerRegNo:
		return "Registration number (T + 13 digits)"
	case invoice.FieldSellerAddress:
		return "Seller address"
	case invoice.FieldBuyerName:
		return "Buyer name"
	case invoice.FieldBuyerAddress:
		return "Buyer address"
	case invoice.FieldInvoiceNo:
		return "Invoice number"
	case invoice.FieldInvoiceDate:
		return "Invoice date (YYYY-MM-DD)"
	case invoice.FieldDueDate:
		return "Due date (YYYY-MM-DD)"
	case invoice.FieldRemarks:
		return "Remarks"
	}
	return string(field)
}

func requireText(name string) func(string) error {
	return func(s string) error {
		if s == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

func requirePositiveNumber(name string) func(string) error {
	return func(s string) error {
		n, err := strconv.ParseFloat(s, 64)
		if err != nil || n <= 0 {
			return fmt.Errorf("%s must be a positive number", name)
		}
		return nil
	}
}

func requireNonNegativeNumber(name string) func(string) error {
	return func(s string) error {
		n, err := strconv.ParseFloat(s, 64)
		if err != nil || n < 0 {
			return fmt.Errorf("%s must be a non-negative number", name)
		}
		return nil
	}
}
