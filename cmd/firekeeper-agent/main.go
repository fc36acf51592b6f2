// Package main is the entrypoint for the Firekeeper backup agent.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/MacJediWizard/firekeeper/internal/config"
	"github.com/spf13/cobra"
)

// Build-time variables set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serveCmd := newServeCmd()

	rootCmd := &cobra.Command{
		Use:   "firekeeper-agent",
		Short: "Firekeeper agent - Firestore and Firebase Auth backups",
		Long: `Firekeeper Agent runs inside a Firebase project and exports Firestore
documents and Firebase Authentication users into Cloud Storage buckets on
request from a Firekeeper controller.

Without a subcommand the agent serves its HTTP API.`,
		SilenceUsage: true,
		RunE:         serveCmd.RunE,
	}

	rootCmd.AddCommand(
		serveCmd,
		newVersionCmd(),
		newEnvCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Firekeeper Agent %s\n", Version)
			fmt.Printf("  Commit:     %s\n", Commit)
			fmt.Printf("  Built:      %s\n", BuildDate)
			fmt.Printf("  Go version: %s\n", runtime.Version())
			fmt.Printf("  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Print the resolved runtime environment",
		Long: `Resolve the project, function name, region and public URL the agent would
report to its controller. Exits non-zero when any of them is missing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := config.ResolveRuntimeEnvironment(context.Background(), config.NewMetadataSource(nil))

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(env); encErr != nil {
				return encErr
			}
			return err
		},
	}
}
