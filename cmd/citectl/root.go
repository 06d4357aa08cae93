package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"groundchat/internal/contextutil"
	"groundchat/internal/handlers"
)

// inputFlags are shared by every command that reads an answer file.
type inputFlags struct {
	path    string
	verbose bool
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "citectl",
		Short: "Resolve and renumber citations in model answers",
		Long: "citectl runs the citation engine over a JSON answer file holding the raw text\n" +
			"and the kb, web and meta pools it was generated from.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// process, render, markers
	root.AddCommand(newProcessCmd())
	root.AddCommand(newRenderCmd())
	root.AddCommand(newMarkersCmd())
	return root
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.path, "input", "i", "", "answer JSON file, - for stdin")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "log engine anomalies to stderr")
	_ = cmd.MarkFlagRequired("input")
}

// load reads the request and attaches a logger to the command context.
func (f *inputFlags) load(cmd *cobra.Command) (handlers.ProcessRequest, error) {
	var r io.Reader
	if f.path == "-" {
		r = cmd.InOrStdin()
	} else {
		file, err := os.Open(f.path)
		if err != nil {
			return handlers.ProcessRequest{}, fmt.Errorf("open input: %w", err)
		}
		defer file.Close()
		r = file
	}

	var req handlers.ProcessRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return handlers.ProcessRequest{}, fmt.Errorf("decode %s: %w", f.path, err)
	}

	level := slog.LevelError
	if f.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	cmd.SetContext(contextutil.WithLogger(cmd.Context(), logger))
	return req, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
