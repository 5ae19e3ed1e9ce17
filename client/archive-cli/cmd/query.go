package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

type retrievalFlags struct {
	topK     int
	sourceID string
}

func (f *retrievalFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.topK, "top-k", 0, "number of passages to retrieve (0 uses the server default)")
	cmd.Flags().StringVar(&f.sourceID, "source", "", "restrict retrieval to one source id")
}

func newQueryCmd(opts *options) *cobra.Command {
	var (
		flags   retrievalFlags
		session string
	)
	cmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Ask a question answered from the archive",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newAPIClient(opts)
			if err != nil {
				return err
			}
			res, err := c.postJSON(cmd.Context(), "/query", map[string]any{
				"question":   strings.Join(args, " "),
				"session_id": session,
				"top_k":      flags.topK,
				"source_id":  flags.sourceID,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(opts.out, res.Get("answer").String())
			sources := res.Get("sources.#.metadata.source").Array()
			if len(sources) > 0 {
				fmt.Fprintln(opts.out, "\nSources:")
				seen := make(map[string]bool)
				for _, s := range sources {
					if s.String() == "" || seen[s.String()] {
						continue
					}
					seen[s.String()] = true
					fmt.Fprintf(opts.out, "  - %s\n", s.String())
				}
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&session, "session", "", "conversation id; questions in the same session share history")
	return cmd
}

func newSearchCmd(opts *options) *cobra.Command {
	var (
		flags  retrievalFlags
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "search [question]",
		Short: "Show the archived passages closest to a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newAPIClient(opts)
			if err != nil {
				return err
			}
			res, err := c.postJSON(cmd.Context(), "/search", map[string]any{
				"question":  strings.Join(args, " "),
				"top_k":     flags.topK,
				"source_id": flags.sourceID,
			})
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(opts.out, res)
			}
			res.Get("results").ForEach(func(_, r gjson.Result) bool {
				fmt.Fprintf(opts.out, "[%.3f] %s\n  %s\n", r.Get("score").Float(), r.Get("metadata.source").String(), r.Get("text").String())
				return true
			})
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON response")
	return cmd
}
