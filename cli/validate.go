package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/alecthomas/kong"

	"github.com/audos/intake/form"
	"github.com/audos/intake/invoice"
	"github.com/audos/intake/rules"
	"github.com/audos/intake/telemetry"
)

type ValidateCmd struct {
	File   FileOrStdin `help:"Invoice JSON filename (use '-' for stdin, or omit for stdin)." arg:"" optional:""`
	Output string      `help:"Directory to write the generated document to." short:"o" type:"existingdir" optional:""`
	NoPDF  bool        `help:"Validate only, skip document generation." name:"no-pdf"`
}

func (cmd *ValidateCmd) Run(ctx *kong.Context, globals *Globals) error {
	if err := cmd.File.EnsureContents(); err != nil {
		return err
	}

	runCtx := context.Background()

	var collector telemetry.Collector
	if globals.Telemetry {
		collector = telemetry.NewTimingCollector()
		runCtx = telemetry.WithCollector(runCtx, collector)

		validateTimer := collector.Start(fmt.Sprintf("validate %s", filepath.Base(cmd.File.Filename)))
		defer func() {
			validateTimer.End()
			_, _ = fmt.Fprintln(ctx.Stderr)
			collector.Report(ctx.Stderr)
		}()
	}

	contents, err := cmd.File.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var inv invoice.Invoice
	if err := json.Unmarshal(contents, &inv); err != nil {
		printError(ctx.Stderr, fmt.Sprintf("invalid invoice JSON: %v", err))
		return NewCommandError(1)
	}

	opts := []form.Option{form.WithLanguage(globals.Lang)}
	if globals.Service != "" {
		client := rules.NewClient(globals.Service)
		opts = append(opts, form.WithClient(client))
		if cmd.NoPDF {
			opts = append(opts, form.WithGenerator(nil))
		}
	}
	if cmd.Output != "" {
		opts = append(opts, form.WithArtifactDir(cmd.Output))
	}

	f := form.New(opts...)
	f.Apply(inv)

	res, err := f.Submit(runCtx)
	if err != nil {
		return renderSubmitError(ctx, err)
	}

	renderSubmission(ctx.Stdout, res)

	if !res.Compliant {
		return NewCommandError(1)
	}
	return nil
}
