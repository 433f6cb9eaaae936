package timebase

import (
	"fmt"
	"strconv"
	"strings"
)

// Rate is a frame or sample rate expressed as Num/Den per second.
type Rate struct {
	Num int64
	Den int64
}

// FPS returns an integral rate.
func FPS(n int64) Rate {
	return Rate{Num: n, Den: 1}
}

// ParseRate accepts "30", "29.97" style integers only via fraction, e.g. "30000/1001".
func ParseRate(s string) (Rate, error) {
	s = strings.TrimSpace(s)
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		den = "1"
	}
	n, err := strconv.ParseInt(strings.TrimSpace(num), 10, 64)
	if err != nil || n <= 0 {
		return Rate{}, fmt.Errorf("invalid rate %q", s)
	}
	d, err := strconv.ParseInt(strings.TrimSpace(den), 10, 64)
	if err != nil || d <= 0 {
		return Rate{}, fmt.Errorf("invalid rate %q", s)
	}
	return Rate{Num: n, Den: d}, nil
}

// Valid reports whether both terms are positive.
func (r Rate) Valid() bool {
	return r.Num > 0 && r.Den > 0
}

// Period is the duration of one frame.
func (r Rate) Period() Time {
	return New(r.Den, r.Num)
}

// Float returns frames per second.
func (r Rate) Float() float64 {
	return float64(r.Num) / float64(r.Den)
}

func (r Rate) String() string {
	if r.Den == 1 {
		return strconv.FormatInt(r.Num, 10)
	}
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Range is the half-open interval [Start, Start+Length).
type Range struct {
	Start  Time
	Length Time
}

// End returns Start+Length.
func (r Range) End() Time {
	return r.Start.Add(r.Length)
}

// Empty reports whether the range can contain no instant.
func (r Range) Empty() bool {
	return r.Length.num <= 0
}

// Contains reports Start <= t < Start+Length. Ranges with Length <= 0
// contain nothing.
func (r Range) Contains(t Time) bool {
	if r.Empty() {
		return false
	}
	return !t.Before(r.Start) && t.Before(r.End())
}

// Overlaps reports whether the two ranges share any instant.
func (r Range) Overlaps(o Range) bool {
	if r.Empty() || o.Empty() {
		return false
	}
	return r.Start.Before(o.End()) && o.Start.Before(r.End())
}

func (r Range) String() string {
	return fmt.Sprintf("[%s, %s)", r.Start, r.End())
}
