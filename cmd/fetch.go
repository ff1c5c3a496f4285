package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/urlprobe/internal/config"
	"github.com/JakeFAU/urlprobe/internal/probe"
)

// newFetchCmd creates the 'fetch' subcommand. Flag names must match the
// bindings in internal/config.
func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch [url...]",
		Short: "Fetch every URL and write the JSON report",
		Long: `Reads URLs from --input (one per line, "-" for stdin) followed by any
positional arguments, fetches them concurrently and writes the report to
--output ("-" for stdout, gs://bucket/object for Cloud Storage).`,
		Example: `  urlprobe fetch https://example.com https://example.org
  urlprobe fetch -i urls.txt -o report.json -c 20 -a 3`,
		RunE: runFetchCommand,
	}

	f := cmd.Flags()
	f.StringP("input", "i", "", "file with one URL per line, - for stdin")
	f.StringP("output", "o", "result.json", "report destination: path, - or gs://bucket/object")
	f.Bool("pretty", false, "indent the JSON report")
	f.String("backend", config.BackendNetHTTP, "fetch backend: nethttp or colly")
	f.Duration("timeout", probe.DefaultTimeout, "per-attempt timeout")
	f.IntP("concurrency", "c", probe.DefaultMaxConcurrency, "maximum requests in flight")
	f.IntP("attempts", "a", probe.DefaultMaxAttempts, "attempts per URL")
	f.String("user-agent", probe.DefaultUserAgent, "User-Agent header")
	f.Duration("backoff", 0, "initial retry backoff, 0 retries immediately")
	f.Bool("insecure", false, "skip TLS certificate verification")
	f.String("metrics-file", "", "write Prometheus metrics to this textfile")
	f.Bool("progress", false, "show a progress bar on stderr")

	return cmd
}

func runFetchCommand(cmd *cobra.Command, args []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	defer shutdown(appInstance)

	summary, err := appInstance.Run(cmd.Context(), args)
	if err != nil {
		return err //nolint:wrapcheck // app errors already carry context
	}

	appInstance.Logger().Info("Fetch command finished.",
		zap.String("run_id", summary.RunID),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
	)
	return nil
}
