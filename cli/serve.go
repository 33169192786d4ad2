package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/alecthomas/kong"

	"github.com/audos/intake/rulesd"
	"github.com/audos/intake/telemetry"
)

type ServeCmd struct {
	Rules string `help:"Ruleset file to serve (embedded default when omitted)." optional:"" type:"existingfile"`
	Port  int    `help:"Port to listen on." default:"8080"`
	Watch bool   `help:"Reload the ruleset when the file changes." short:"w"`
}

func (cmd *ServeCmd) Run(ctx *kong.Context, globals *Globals) error {
	runCtx := context.Background()

	if globals.Telemetry {
		collector := telemetry.NewTimingCollector()
		runCtx = telemetry.WithCollector(runCtx, collector)

		defer func() {
			_, _ = fmt.Fprintln(ctx.Stderr)
			collector.Report(ctx.Stderr)
		}()
	}

	rulesFile := cmd.Rules
	if rulesFile != "" {
		abs, err := filepath.Abs(rulesFile)
		if err != nil {
			return fmt.Errorf("failed to resolve absolute path: %w", err)
		}
		rulesFile = abs
	}

	server := rulesd.New(cmd.Port, rulesFile)
	server.WatchEnabled = cmd.Watch && rulesFile != ""

	printInfof(ctx.Stdout, "Starting rules service on %s:%d", server.Host, cmd.Port)
	if rulesFile != "" {
		printInfof(ctx.Stdout, "Serving ruleset: %s", pathStyle.Render(rulesFile))
	} else {
		printInfof(ctx.Stdout, "Serving embedded default ruleset")
	}
	if server.WatchEnabled {
		printInfof(ctx.Stdout, "Watching ruleset for changes")
	}

	return server.Start(runCtx)
}
