package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	// Catalog backends register themselves by DATABASE_URL scheme.
	_ "github.com/kozaktomas/visagevault/internal/database/mysql"
	_ "github.com/kozaktomas/visagevault/internal/database/postgres"
	_ "github.com/kozaktomas/visagevault/internal/database/sqlite"
)

var rootCmd = &cobra.Command{
	Use:   "visagevault",
	Short: "Catalog a local photo and video library and organize it by the people in it",
	Long: `VisageVault indexes a directory of photos and videos into a catalog grouped by
year and month, detects faces through a face analysis service, clusters
similar faces and lets you resolve the clusters into named people.

Configuration comes from environment variables (optionally from a .env file)
and the settings file managed with "visagevault config".`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
