package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"groundchat/internal/citation"
)

func newMarkersCmd() *cobra.Command {
	var in inputFlags
	cmd := &cobra.Command{
		Use:   "markers",
		Short: "List the markers of an answer and how each resolves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := in.load(cmd)
			if err != nil {
				return err
			}
			input := req.Input()
			opts := citation.ExtractOptions{DisplayForm: input.DisplayForm}

			markers, malformed := citation.Extract(input.Text, opts)
			validated := citation.ValidateAll(markers, citation.NewPoolIndex(input.Pools, input.ListMode))
			printMarkers(cmd.OutOrStdout(), input.Text, validated, malformed)
			return nil
		},
	}
	in.register(cmd)
	return cmd
}

func printMarkers(w io.Writer, text string, markers []citation.ValidatedMarker, malformed []citation.Span) {
	for _, m := range markers {
		fmt.Fprintf(w, "%d-%d\t%s\t%s", m.Start, m.End, text[m.Start:m.End], m.Action())
		if len(m.Invalid) > 0 {
			fmt.Fprintf(w, "\tinvalid=%s", formatRefs(m.Invalid))
		}
		fmt.Fprintln(w)
	}
	for _, s := range malformed {
		fmt.Fprintf(w, "%d-%d\t%s\tmalformed\n", s.Start, s.End, text[s.Start:s.End])
	}
	fmt.Fprintf(w, "%d markers, %d malformed\n", len(markers), len(malformed))
}

func formatRefs(refs []citation.Reference) string {
	s := ""
	for i, r := range refs {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf("%s:%d", r.Pool, r.Index)
	}
	return s
}
