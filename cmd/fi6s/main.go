// Command fi6s is a high-throughput IPv6 network scanner: TCP SYN, UDP
// and ICMPv6 Echo scanning over a raw Ethernet socket, with optional TCP
// banner capture and a choice of text, JSON, or binary output.
package main

import (
	"fmt"
	"os"

	"github.com/golang/glog"
)

func main() {
	defer glog.Flush()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fi6s: %s\n", err)
		os.Exit(1)
	}
}
