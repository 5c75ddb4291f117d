package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bbhunter/fi6s/internal/output"
)

type readFlags struct {
	outputFormat string
	showClosed   bool
	banners      bool
}

// newReadCmd implements --readscan/M_READSCAN: replay a
// binary scan log through any of the three output sinks, applying
// --show-closed/--banners at read time over the superset capture.
func newReadCmd() *cobra.Command {
	f := &readFlags{outputFormat: "list"}

	cmd := &cobra.Command{
		Use:   "read <file>",
		Short: "Replay a binary scan log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRead(cmd, args[0], f)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.outputFormat, "output-format", "list", "output format: list or json")
	fs.BoolVar(&f.showClosed, "show-closed", false, "include closed TCP ports")
	fs.BoolVar(&f.banners, "banners", false, "include captured banners")

	return cmd
}

func runRead(cmd *cobra.Command, path string, f *readFlags) error {
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening binary scan log %q: %w", path, err)
	}
	defer in.Close()

	sink, err := sinkFor(f.outputFormat)
	if err != nil {
		return err
	}
	if _, ok := sink.(output.BinarySink); ok {
		return fmt.Errorf("read's --output-format cannot be binary; re-run the original scan instead")
	}

	w, err := output.NewWriter(cmd.OutOrStdout(), sink)
	if err != nil {
		return err
	}
	defer w.Close()

	return output.Replay(in, w, f.showClosed, f.banners)
}
