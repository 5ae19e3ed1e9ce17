package cmd

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

func newSourcesCmd(opts *options) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List archived videos and documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newAPIClient(opts)
			if err != nil {
				return err
			}
			res, err := c.do(cmd.Context(), http.MethodGet, "/ingestion", nil, nil, "")
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(opts.out, res)
			}
			if len(res.Array()) == 0 {
				fmt.Fprintln(opts.out, "No sources archived yet.")
				return nil
			}
			res.ForEach(func(_, s gjson.Result) bool {
				fmt.Fprintf(opts.out, "%-6s %-24s %s\n", s.Get("source_type").String(), s.Get("source_id").String(), s.Get("display_name").String())
				return true
			})
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON response")
	return cmd
}

func newDeleteCmd(opts *options) *cobra.Command {
	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove archived content",
	}

	sourceCmd := &cobra.Command{
		Use:   "source [source-id]",
		Short: "Remove one video or document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newAPIClient(opts)
			if err != nil {
				return err
			}
			res, err := c.do(cmd.Context(), http.MethodDelete, "/ingestion/user/source", url.Values{"source_id": {args[0]}}, nil, "")
			if err != nil {
				return err
			}
			fmt.Fprintln(opts.out, res.Get("message").String())
			return nil
		},
	}

	var yes bool
	allCmd := &cobra.Command{
		Use:   "all",
		Short: "Remove everything archived for the current user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete all sources without --yes")
			}
			c, err := newAPIClient(opts)
			if err != nil {
				return err
			}
			res, err := c.do(cmd.Context(), http.MethodDelete, "/ingestion/user", nil, nil, "")
			if err != nil {
				return err
			}
			fmt.Fprintln(opts.out, res.Get("message").String())
			return nil
		},
	}
	allCmd.Flags().BoolVar(&yes, "yes", false, "confirm deleting every source")

	deleteCmd.AddCommand(sourceCmd, allCmd)
	return deleteCmd
}
