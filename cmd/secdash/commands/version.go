package commands

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/bl4ck0w1/secdash/internal/client"
)

func NewVersionCommand(version, commit, buildDate string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print client and server version information",
		Long: `Print detailed version information about secdash and, unless --offline is
given, the version and health of the configured API server.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "secdash Version: %s\n", version)
			fmt.Fprintf(out, "Git Commit: %s\n", commit)
			fmt.Fprintf(out, "Build Date: %s\n", buildDate)
			fmt.Fprintf(out, "Go Version: %s\n", runtime.Version())
			fmt.Fprintf(out, "Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			fmt.Fprintf(out, "Supported Server Versions: %s\n", client.SupportedServerVersions)

			if offline, _ := cmd.Flags().GetBool("offline"); offline {
				return nil
			}
			return printServerVersion(cmd)
		},
	}
	cmd.Flags().Bool("offline", false, "Do not contact the API server")
	return cmd
}

// printServerVersion never fails the command: an unreachable server is
// reported, not returned.
func printServerVersion(cmd *cobra.Command) error {
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	parent, stop := commandContext(cmd)
	defer stop()
	ctx, cancel := context.WithTimeout(parent, 10*time.Second)
	defer cancel()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nServer: %s\n", sess.client.BaseURL())

	info, err := sess.client.CheckCompatibility(ctx)
	switch {
	case info == nil:
		fmt.Fprintf(out, "Server Version: unavailable (%v)\n", err)
		return nil
	case err != nil:
		fmt.Fprintf(out, "Server Version: %s (incompatible: %v)\n", info.Version, err)
	default:
		fmt.Fprintf(out, "Server Version: %s (compatible)\n", info.Version)
	}
	if info.Name != "" {
		fmt.Fprintf(out, "Server Name: %s\n", info.Name)
	}

	health, err := sess.client.Health(ctx)
	if err != nil {
		fmt.Fprintf(out, "Server Health: unavailable (%v)\n", err)
		return nil
	}
	fmt.Fprintf(out, "Server Health: %s\n", health.Status)
	return nil
}
