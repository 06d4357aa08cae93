package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"groundchat/internal/render"
)

func newRenderCmd() *cobra.Command {
	var (
		in       inputFlags
		elements bool
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render an answer to HTML with citation elements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := in.load(cmd)
			if err != nil {
				return err
			}

			out, err := render.NewRenderer(nil).HTML(cmd.Context(), req.Input())
			if err != nil && !errors.Is(err, render.ErrFormat) {
				return err
			}
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", err)
			}
			if elements {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out.HTML)
			return err
		},
	}
	in.register(cmd)
	cmd.Flags().BoolVar(&elements, "json", false, "print HTML, sources and diagnostics as JSON")
	return cmd
}
