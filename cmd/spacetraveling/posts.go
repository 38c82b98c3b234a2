package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var postsJSON bool

var postsCmd = &cobra.Command{
	Use:   "posts",
	Short: "List every published post, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()
		if err := app.Init(); err != nil {
			return err
		}

		posts, err := app.ListPosts(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if postsJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(posts)
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "DATE\tSLUG\tTITLE\tAUTHOR")
		for _, p := range posts {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.PublishedDate, p.Slug, p.Title, p.Author)
		}
		return tw.Flush()
	},
}

func init() {
	postsCmd.Flags().BoolVar(&postsJSON, "json", false, "print JSON instead of a table")
	rootCmd.AddCommand(postsCmd)
}
