package output

import "time"

func nsToTime(ns uint64) time.Time {
	return time.Unix(0, int64(ns)).UTC()
}
