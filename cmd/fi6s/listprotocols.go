package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newListProtocolsCmd implements --list-protocols from original_source's
// main.c: print which ports carry a built-in banner query/post-processor.
func newListProtocolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-protocols",
		Short: "List ports with a built-in banner query template or post-processor",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, port := range []uint16{53, 80, 123, 8080} {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\n", port)
			}
			return nil
		},
	}
}
