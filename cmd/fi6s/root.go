package main

import (
	"flag"

	"github.com/spf13/cobra"
)

// newRootCmd assembles the CLI surface: `scan` is both a
// named subcommand and the default/root command for backward-compatible
// single-arg invocation (`fi6s <target-spec>`), and `read` replays a
// binary scan log.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fi6s",
		Short:         "fi6s is a fast IPv6 network scanner",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// bridge glog's flag.FlagSet into this command tree so --v, --logtostderr
	// etc. behave the way every other glog-based tool in this stack expects.
	root.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	scanCmd := newScanCmd()
	root.AddCommand(scanCmd)
	root.AddCommand(newReadCmd())
	root.AddCommand(newListProtocolsCmd())

	// backward-compatible default: `fi6s <target-spec>` runs `scan`.
	root.RunE = scanCmd.RunE
	root.Flags().AddFlagSet(scanCmd.Flags())
	root.Args = scanCmd.Args

	return root
}
