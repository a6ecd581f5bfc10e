package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clinimetric-scale-server/internal/setup"
)

type setupFlags struct {
	configPath string
	binaryPath string
	dataDir    string
	scalesDir  string
	check      bool
}

func newSetupCmd() *cobra.Command {
	f := &setupFlags{}

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Register the lite MCP server with a desktop MCP client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if !f.check {
				path, err := setup.Register(setup.Options{
					ConfigPath: f.configPath,
					BinaryPath: f.binaryPath,
					DataDir:    f.dataDir,
					ScalesDir:  f.scalesDir,
				})
				if err != nil {
					return exitError(1, "setup failed: %v", err)
				}
				fmt.Fprintf(out, "Registered %s in %s\n", setup.ServerName, path)
			}

			status, err := setup.Check(f.configPath)
			if err != nil {
				return exitError(1, "setup check failed: %v", err)
			}
			fmt.Fprintf(out, "Client config: %s\n", status.ConfigPath)
			fmt.Fprintf(out, "Registered:    %t\n", status.Registered)
			if status.Registered {
				fmt.Fprintf(out, "Server binary: %s\n", status.ServerPath)
				fmt.Fprintf(out, "Scales dir:    %s (%d file(s))\n", status.ScalesDir, status.ScaleFiles)
			}
			for _, issue := range status.Issues {
				fmt.Fprintf(out, "  ! %s\n", issue)
			}
			if !status.Registered {
				return exitError(2, "%s is not registered", setup.ServerName)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.configPath, "config", "", "Client config file (default: desktop client location)")
	flags.StringVar(&f.binaryPath, "binary", "", "Path to the mcp-server-lite binary")
	flags.StringVar(&f.dataDir, "data-dir", "", "Data directory for the lite server")
	flags.StringVar(&f.scalesDir, "scales-dir", "", "Scale definition directory (default: <data-dir>/scales)")
	flags.BoolVar(&f.check, "check", false, "Only report the current registration")

	return cmd
}
