package cli

var (
	Version   = ""
	CommitSHA = ""
)

// Globals defines global flags available to all commands.
type Globals struct {
	Telemetry bool   `help:"Show timing telemetry for operations."`
	Service   string `help:"Base URL of the invoice rules service." env:"AUDOS_SERVICE" default:"http://127.0.0.1:8080"`
	Lang      string `help:"Language for validation messages." enum:"en,ja" default:"en"`
}

type Commands struct {
	Globals

	Entry    EntryCmd    `cmd:"" help:"Enter an invoice interactively and submit it."`
	Validate ValidateCmd `cmd:"" help:"Validate an invoice JSON file and generate its document."`
	Serve    ServeCmd    `cmd:"" help:"Start the invoice rules service."`
}
