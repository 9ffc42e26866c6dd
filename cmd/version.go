package cmd

import (
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/kozaktomas/visagevault/internal/database"
	"github.com/spf13/cobra"
)

// Build metadata variables, set by -ldflags at compile time.
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the VisageVault build and the catalog backends it was built with",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion(cmd.OutOrStdout(), mustGetBool(cmd, "short"))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().Bool("short", false, "Print the version number only")
}

func printVersion(w io.Writer, short bool) {
	if short {
		fmt.Fprintln(w, Version)
		return
	}
	fmt.Fprintf(w, "VisageVault %s (%s/%s, %s)\n", Version, runtime.GOOS, runtime.GOARCH, runtime.Version())
	fmt.Fprintf(w, "  Commit:   %s\n", CommitSHA)
	fmt.Fprintf(w, "  Built:    %s\n", BuildDate)
	fmt.Fprintf(w, "  Catalogs: %s\n", strings.Join(database.Backends(), ", "))
}
