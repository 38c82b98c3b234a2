package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/gustavonogales/spacetraveling"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	configPath string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "spacetraveling",
	Short: "A blog front-end for a headless content repository",
	Long: `spacetraveling serves a blog whose posts live in a Prismic repository:
a paginated listing with load more, post pages, preview mode, RSS and a
sitemap. It can also export the site as static files.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		// A missing .env is fine; the environment may already be set.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the spacetraveling version",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("spacetraveling %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", spacetraveling.EnvOr("SPACETRAVELING_CONFIG", ""), "YAML config file (environment variables override it)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.AddCommand(versionCmd)
}

// newApp loads the configuration and builds an App. Callers Init or Start it.
func newApp() (*spacetraveling.App, error) {
	cfg, err := spacetraveling.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	app := spacetraveling.New(cfg)
	return app, nil
}
