package target

import (
	"fmt"
	"math"
	"strings"
)

// Summary reports target count, total addresses, largest/smallest
// equivalent subnet size, and (if maxRate > 0) an estimated scan
// duration formatted in the coarsest sensible unit pair, exactly as
// fi6s's --print-summary mode does.
func (g *Generator) Summary(maxRate int, nports int) string {
	var sb strings.Builder

	if g.streaming {
		sb.WriteString("???\n")
		return sb.String()
	}

	var total uint64
	var overflowed bool
	largest, smallest := 128, 0
	for _, t := range g.targets {
		v := varyingBits(t.spec.Mask)
		if v >= 64 {
			overflowed = true
		} else {
			one := uint64(1) << uint(v)
			prev := total
			total += one
			if total < prev {
				overflowed = true
			}
		}

		mb := fixedBits(t.spec.Mask)
		if mb < largest {
			largest = mb
		}
		if mb > smallest {
			smallest = mb
		}
	}

	fmt.Fprintf(&sb, "%d target(s) loaded, covering ", len(g.targets))
	if overflowed {
		sb.WriteString("more than 2^64 addresses.\n")
	} else {
		fmt.Fprintf(&sb, "%d addresses.\n", total)
	}
	if len(g.targets) == 1 {
		fmt.Fprintf(&sb, "Target is equivalent to a /%d subnet.\n", largest)
	} else {
		fmt.Fprintf(&sb, "Largest target is equivalent to /%d subnet, smallest /%d.\n", largest, smallest)
	}

	if maxRate <= 0 {
		return sb.String()
	}

	fmt.Fprintf(&sb, "At %d PPS and %d port(s) the estimated scan duration is ", maxRate, nports)

	over := overflowed
	var dur uint32
	if !over {
		dur64 := total * uint64(nports)
		if dur64 < total {
			over = true
		} else {
			dur64 /= uint64(maxRate)
			if dur64 > math.MaxUint32 {
				over = true
			} else {
				dur = uint32(dur64)
			}
		}
	}

	if over {
		sb.WriteString("more than 100 years.\n")
		return sb.String()
	}

	n1, n2, f1, f2 := durationParts(dur)
	switch {
	case n1 == 0:
		fmt.Fprintf(&sb, "%d %s.\n", n2, f2)
	case n2 == 0:
		fmt.Fprintf(&sb, "%d %s.\n", n1, f1)
	default:
		fmt.Fprintf(&sb, "%d %s %d %s.\n", n1, f1, n2, f2)
	}
	return sb.String()
}

func durationParts(dur uint32) (n1, n2 int, f1, f2 string) {
	const (
		minute = 60
		hour   = 60 * minute
		day    = 24 * hour
		week   = 7 * day
	)
	switch {
	case dur > week:
		return int(dur / week), int(dur % week / day), "weeks", "days"
	case dur > day:
		return int(dur / day), int(dur % day / hour), "days", "hours"
	case dur > hour:
		return int(dur / hour), int(dur % hour / minute), "hours", "minutes"
	default:
		return int(dur / minute), int(dur % minute), "minutes", "seconds"
	}
}
