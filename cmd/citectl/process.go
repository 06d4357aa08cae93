package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"groundchat/internal/citation"
	"groundchat/internal/handlers"
)

func newProcessCmd() *cobra.Command {
	var (
		in       inputFlags
		listMode bool
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Resolve, renumber and clean the citations of an answer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := in.load(cmd)
			if err != nil {
				return err
			}
			input := req.Input()
			input.ListMode = input.ListMode || listMode

			res := citation.NewEngine().Process(cmd.Context(), input)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), handlers.NewProcessResponse(res))
			}
			return printResult(cmd.OutOrStdout(), res)
		},
	}
	in.register(cmd)
	cmd.Flags().BoolVar(&listMode, "list", false, "number the meta pool by listing position")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}

func printResult(w io.Writer, res citation.Result) error {
	if _, err := fmt.Fprintln(w, res.Text); err != nil {
		return err
	}
	if len(res.KBSources)+len(res.WebSources) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Sources:")
	}
	for _, it := range res.KBSources {
		fmt.Fprintf(w, "  [%d] %s\n", it.DisplayIndex, it.Title)
	}
	for _, it := range res.WebSources {
		fmt.Fprintf(w, "  [web:%d] %s <%s>\n", it.DisplayIndex, it.Title, it.URL)
	}
	return nil
}
