// Command crashbeacon-demo exercises the full capture pipeline against an
// in-process collector stub: it installs both log adapters, emits a few
// events, triggers an error-level report, then panics under Recover.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/send"
	"github.com/spf13/cobra"

	"github.com/crashbeacon/crashbeacon"
	"github.com/crashbeacon/crashbeacon/internal/buildinfo"
	"github.com/crashbeacon/crashbeacon/internal/collector"
	"github.com/crashbeacon/crashbeacon/internal/diag"
)

var (
	apiKey        string
	backendURL    string
	environment   string
	versionTag    string
	logLevel      string
	withCollector bool
	skipPanic     bool
)

func main() {
	cmd := &cobra.Command{
		Use:   "crashbeacon-demo",
		Short: "Send demo crash and error reports to a collector",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&apiKey, "api-key", "demo-project-key", "project API key")
	cmd.Flags().StringVar(&backendURL, "backend-url", "", "collector base URL (default: in-process stub)")
	cmd.Flags().StringVar(&environment, "environment", "development", "environment tag")
	cmd.Flags().StringVar(&versionTag, "version", "", "version tag (default: resolved from build info)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "demo log level")
	cmd.Flags().BoolVar(&withCollector, "with-collector", true, "run an in-process collector stub")
	cmd.Flags().BoolVar(&skipPanic, "skip-panic", false, "skip the final demo panic")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	logger := diag.NewLogger(os.Stdout, logLevel)

	if backendURL == "" {
		if !withCollector {
			return fmt.Errorf("either --backend-url or --with-collector is required")
		}
		stub, err := collector.New("127.0.0.1:0", logger)
		if err != nil {
			return err
		}
		go func() {
			if err := stub.Serve(); err != nil {
				logger.Error("collector stub terminated", "error", err)
			}
		}()
		defer stub.Close()
		backendURL = stub.URL()
		logger.Info("collector stub listening", "url", backendURL)
	}

	if versionTag == "" {
		versionTag = buildinfo.Version()
	}

	client, err := crashbeacon.NewBuilder(apiKey).
		Environment(environment).
		Version(versionTag).
		BackendURL(backendURL).
		Build()
	if err != nil {
		return err
	}

	// Structured logging through the slog adapter.
	appLog := slog.New(client.SlogHandler(logger.Handler()))
	slog.SetDefault(appLog)

	// Classic leveled logging through the grip adapter, sharing the same
	// recent-event buffer.
	if err := grip.SetSender(client.WrapSender(send.MakeNative())); err != nil {
		return err
	}

	slog.Info("demo starting", "pid", os.Getpid())
	slog.Debug("warming up")
	grip.Info("classic logger attached")

	// An error-level event triggers a report of its own, carrying the
	// buffered events above.
	slog.Error("something recoverable went wrong", "attempt", 1)

	if !skipPanic {
		causePanic(client)
	}

	slog.Info("demo finished")
	return nil
}

// causePanic panics under the client's Recover guard. Recover always
// rethrows after reporting; the outer recover here keeps the demo's exit
// clean while still showing the full chain.
func causePanic(client *crashbeacon.Client) {
	defer func() {
		if r := recover(); r != nil {
			slog.Info("panic observed and reported", "panic", fmt.Sprint(r))
		}
	}()
	defer client.Recover()

	var ptr *int
	fmt.Println(*ptr) // demo fault: nil dereference
}
