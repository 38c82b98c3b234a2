package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var buildOut string

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Export the site as static files",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()
		if err := app.Init(); err != nil {
			return err
		}

		stats, err := app.Export(cmd.Context(), buildOut)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d posts (%d listing pages) to %s\n", stats.Posts, stats.Pages, buildOut)
		return nil
	},
}

func init() {
	buildCmd.Flags().StringVarP(&buildOut, "out", "o", "dist", "output directory")
	rootCmd.AddCommand(buildCmd)
}
