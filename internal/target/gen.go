package target

import (
	"bufio"
	"fmt"
	"io"
	"math/bits"
	"math/rand"
	"strings"
)

// CacheSize is TARGET_RANDOMIZE_SIZE: the number of next-addresses
// buffered and shuffled together.
const CacheSize = 1024

// SanityMaxBits is TARGET_SANITY_MAX_BITS: scans covering 2^this many
// addresses or more are refused outright.
const SanityMaxBits = 40

// state is a single target's enumeration cursor.
type state struct {
	spec         Spec
	cur          [16]byte
	delayedStart uint64
	done         bool
}

// Generator enumerates addresses across one or more target specs,
// without ever materializing the full address space.
type Generator struct {
	randomize bool
	rng       *rand.Rand

	targets []*state

	streaming bool
	stream    *bufio.Scanner

	cache  [][16]byte
	cacheI int
}

// NewGenerator returns an empty generator; rng drives shuffling and
// even-spread jitter: quality of this PRNG only affects visual
// spread, never correctness.
func NewGenerator(rng *rand.Rand) *Generator {
	return &Generator{randomize: true, rng: rng}
}

// SetRandomized toggles cache shuffling and even-spread target ordering.
func (g *Generator) SetRandomized(v bool) { g.randomize = v }

// SetStreaming switches to streaming mode: addresses are parsed lazily,
// one IPv6 literal per non-empty, non-comment line, from r.
func (g *Generator) SetStreaming(r io.Reader) {
	g.streaming = true
	g.stream = bufio.NewScanner(r)
}

// Add registers a target spec. Invalid once streaming mode is active.
func (g *Generator) Add(s Spec) error {
	if g.streaming {
		return fmt.Errorf("cannot add target specs in streaming mode")
	}
	g.targets = append(g.targets, &state{spec: s})
	return nil
}

// FinishAdd performs even-spread delayed-start assignment and, if
// randomization is enabled, shuffles target order. Must be called once
// after all Add calls and before the first Next.
func (g *Generator) FinishAdd() error {
	if g.streaming {
		return nil
	}
	if len(g.targets) == 0 {
		return fmt.Errorf("no target specification(s) given")
	}

	var max uint64
	for _, t := range g.targets {
		total, _ := progressSingle(t)
		if total > max {
			max = total
		}
	}
	for _, t := range g.targets {
		total, _ := progressSingle(t)
		if total == max {
			continue
		}
		span := max - total + 1
		if span > 0 {
			t.delayedStart = g.rng.Uint64() % span
		}
	}

	if g.randomize {
		g.rng.Shuffle(len(g.targets), func(i, j int) {
			g.targets[i], g.targets[j] = g.targets[j], g.targets[i]
		})
	}
	return nil
}

// Next returns the next address to probe, or ok=false once every target
// is exhausted (or, in streaming mode, at EOF).
func (g *Generator) Next() (addr [16]byte, ok bool) {
	if g.cacheI >= len(g.cache) {
		g.refill()
		g.cacheI = 0
		if len(g.cache) == 0 {
			return addr, false
		}
		if g.randomize {
			g.rng.Shuffle(len(g.cache), func(i, j int) {
				g.cache[i], g.cache[j] = g.cache[j], g.cache[i]
			})
		}
	}
	addr = g.cache[g.cacheI]
	g.cacheI++
	return addr, true
}

func (g *Generator) refill() {
	g.cache = g.cache[:0]

	if g.streaming {
		for len(g.cache) < CacheSize && g.stream.Scan() {
			line := strings.TrimSpace(g.stream.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			addr, mask, err := parseAddrNibbles(line)
			if err != nil || !allOnes(mask) {
				break
			}
			g.cache = append(g.cache, addr)
		}
		return
	}

	for {
		any := false
		for _, t := range g.targets {
			if t.done {
				continue
			}
			if t.delayedStart > 0 {
				t.delayedStart--
				continue
			}
			any = true
			var a [16]byte
			t.next(&a)
			g.cache = append(g.cache, a)
			if len(g.cache) == CacheSize {
				return
			}
		}
		if !any {
			return
		}
	}
}

func allOnes(mask [16]byte) bool {
	for _, b := range mask {
		if b != 0xff {
			return false
		}
	}
	return true
}

// next advances the enumeration cursor and writes the next address into
// dst: scan bits LSB->MSB over the varying bits only; carry propagates
// like manual binary addition.
func (t *state) next(dst *[16]byte) {
	for i := 0; i < 16; i++ {
		dst[i] = t.spec.Addr[i] | t.cur[i]
	}

	carry := false
	any := false
outer:
	for i := 15; i >= 0; i-- {
		for j := byte(1); j != 0; j <<= 1 {
			if t.spec.Mask[i]&j != 0 {
				continue
			}
			any = true
			if t.cur[i]&j != 0 {
				t.cur[i] &^= j
				carry = true
			} else {
				t.cur[i] |= j
				carry = false
				break outer
			}
		}
	}
	if !any || carry {
		t.done = true
	}
}

// varyingBits returns the number of 0-bits in mask (the bits the
// generator enumerates over).
func varyingBits(mask [16]byte) int {
	n := 0
	for _, b := range mask {
		n += bits.OnesCount8(^b)
	}
	return n
}

// fixedBits returns the number of 1-bits in mask (the "/N" prefix length
// this spec is equivalent to, for display purposes).
func fixedBits(mask [16]byte) int {
	n := 0
	for _, b := range mask {
		n += bits.OnesCount8(b)
	}
	return n
}

// progressSingle returns (total, done) for one target: total is the
// size of its variable address space (2^popcount(~mask), saturating to
// 0 -- i.e. "overflowed" -- at >=64 varying bits); done is how far cur
// has advanced through that space.
func progressSingle(t *state) (total, done uint64) {
	v := varyingBits(t.spec.Mask)
	if v < 64 {
		total = uint64(1) << uint(v)
	}
	if t.done {
		done = total
		return
	}
	for i := 0; i < 16; i++ {
		for j := byte(0x80); j != 0; j >>= 1 {
			if t.spec.Mask[i]&j != 0 {
				continue
			}
			bit := uint64(0)
			if t.cur[i]&j != 0 {
				bit = 1
			}
			done = (done << 1) | bit
		}
	}
	return
}

// Progress returns the fraction of addresses already dispatched to the
// sender (i.e. pulled out of the cache), or a negative value if unknown
// (streaming mode, or a combined total of zero).
func (g *Generator) Progress() float64 {
	if g.streaming {
		return -1.0
	}
	var total, done uint64
	for _, t := range g.targets {
		tot, dn := progressSingle(t)
		total += tot
		done += dn
	}
	if total == 0 {
		return -1.0
	}
	done -= uint64(len(g.cache) - g.cacheI)
	return float64(done) / float64(total)
}

// total sums each target's address-space size, flagging overflow if any
// single target has >=64 varying bits or the running sum wraps.
func (g *Generator) total() (total uint64, overflowed bool) {
	for _, t := range g.targets {
		v := varyingBits(t.spec.Mask)
		if v >= 64 {
			overflowed = true
			continue
		}
		one := uint64(1) << uint(v)
		prev := total
		total += one
		if total < prev {
			overflowed = true
		}
	}
	return
}

// SanityCheck refuses scans covering 2^SanityMaxBits addresses or more.
func (g *Generator) SanityCheck() error {
	total, overflowed := g.total()
	limit := uint64(1) << SanityMaxBits
	if overflowed || total >= limit {
		if overflowed {
			return fmt.Errorf("refusing to scan more than 2^64 addresses; consider --stream-targets")
		}
		return fmt.Errorf("refusing to scan %d addresses; consider --stream-targets", total)
	}
	return nil
}
