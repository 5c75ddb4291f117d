package transport

import (
	"net"
	"time"
)

// netInterfaceByName resolves an interface name to its kernel ifindex.
func netInterfaceByName(name string) (int, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return 0, err
	}
	return ifi.Index, nil
}

// monotonicNowNanos stamps a captured frame with the current time. Using
// wall-clock time here (rather than a hardware/kernel RX timestamp) is a
// deliberate simplification: ScanStatus/ScanBanner records only require
// a timestamp field, not a specific clock source.
func monotonicNowNanos() int64 {
	return time.Now().UnixNano()
}
