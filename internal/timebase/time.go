package timebase

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Time is an exact rational number of seconds. The zero value is 0s.
// Frame times at rates like 30000/1001 stay exact, so positions never drift
// no matter how many frames are stepped.
type Time struct {
	num int64
	den int64
}

var ErrInvalidTime = errors.New("invalid time value")

// Zero is 0 seconds.
var Zero = Time{}

// New returns num/den seconds. A zero denominator panics.
func New(num, den int64) Time {
	if den == 0 {
		panic("timebase: zero denominator")
	}
	if den < 0 {
		num, den = -num, -den
	}
	if num == 0 {
		return Time{}
	}
	g := gcd(abs(num), den)
	return Time{num: num / g, den: den / g}
}

// Seconds returns s whole seconds.
func Seconds(s int64) Time {
	return Time{num: s, den: 1}
}

// Millis returns ms milliseconds.
func Millis(ms int64) Time {
	return New(ms, 1000)
}

// FromDuration converts a time.Duration exactly.
func FromDuration(d time.Duration) Time {
	return New(int64(d), int64(time.Second))
}

// FromFrame returns the start time of frame n at the given rate.
func FromFrame(n int64, r Rate) Time {
	return New(n*r.Den, r.Num)
}

// FromFloat approximates seconds with microsecond precision.
func FromFloat(s float64) Time {
	return New(int64(math.Round(s*1e6)), 1e6)
}

func (t Time) denom() int64 {
	if t.den == 0 {
		return 1
	}
	return t.den
}

// Num returns the numerator of the reduced fraction.
func (t Time) Num() int64 { return t.num }

// Den returns the denominator of the reduced fraction.
func (t Time) Den() int64 { return t.denom() }

func (t Time) Add(u Time) Time {
	a, b := t.denom(), u.denom()
	if a == b {
		return New(t.num+u.num, a)
	}
	g := gcd(a, b)
	l := a / g * b
	return New(t.num*(l/a)+u.num*(l/b), l)
}

func (t Time) Sub(u Time) Time {
	return t.Add(Time{num: -u.num, den: u.denom()})
}

// Mul scales t by n.
func (t Time) Mul(n int64) Time {
	return New(t.num*n, t.denom())
}

// Div divides t by n.
func (t Time) Div(n int64) Time {
	return New(t.num, t.denom()*n)
}

// Cmp returns -1, 0 or +1.
func (t Time) Cmp(u Time) int {
	if t.denom() == u.denom() {
		switch {
		case t.num < u.num:
			return -1
		case t.num > u.num:
			return 1
		}
		return 0
	}
	l := new(big.Int).Mul(big.NewInt(t.num), big.NewInt(u.denom()))
	r := new(big.Int).Mul(big.NewInt(u.num), big.NewInt(t.denom()))
	return l.Cmp(r)
}

func (t Time) Before(u Time) bool { return t.Cmp(u) < 0 }
func (t Time) After(u Time) bool  { return t.Cmp(u) > 0 }
func (t Time) Equal(u Time) bool  { return t.Cmp(u) == 0 }
func (t Time) IsZero() bool       { return t.num == 0 }
func (t Time) Negative() bool     { return t.num < 0 }

// Float returns the time in seconds.
func (t Time) Float() float64 {
	return float64(t.num) / float64(t.denom())
}

// Duration rounds t to the nearest nanosecond.
func (t Time) Duration() time.Duration {
	v := new(big.Int).Mul(big.NewInt(t.num), big.NewInt(int64(time.Second)))
	q, m := new(big.Int).QuoRem(v, big.NewInt(t.denom()), new(big.Int))
	if m.Sign() != 0 && new(big.Int).Abs(m).Mul(new(big.Int).Abs(m), big.NewInt(2)).Cmp(big.NewInt(t.denom())) >= 0 {
		if v.Sign() < 0 {
			q.Sub(q, big.NewInt(1))
		} else {
			q.Add(q, big.NewInt(1))
		}
	}
	return time.Duration(q.Int64())
}

// Frame returns the index of the frame containing t at rate r.
func (t Time) Frame(r Rate) int64 {
	n := t.num * r.Num
	d := t.denom() * r.Den
	q := n / d
	if n%d != 0 && n < 0 {
		q--
	}
	return q
}

// Ratio returns t/u as a float64. u must not be zero.
func (t Time) Ratio(u Time) float64 {
	n := new(big.Rat).SetFrac64(t.num, t.denom())
	d := new(big.Rat).SetFrac64(u.num, u.denom())
	f, _ := n.Quo(n, d).Float64()
	return f
}

func (t Time) String() string {
	if t.denom() == 1 {
		return strconv.FormatInt(t.num, 10) + "s"
	}
	return fmt.Sprintf("%d/%ds", t.num, t.denom())
}

// Min returns the earlier of a and b.
func Min(a, b Time) Time {
	if a.Before(b) {
		return a
	}
	return b
}

// Max returns the later of a and b.
func Max(a, b Time) Time {
	if a.After(b) {
		return a
	}
	return b
}

// Parse accepts "1.5", "3/2", "2s", "1500ms" and "1m30s".
func Parse(s string) (Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Time{}, fmt.Errorf("%w: empty", ErrInvalidTime)
	}
	if num, den, ok := strings.Cut(strings.TrimSuffix(s, "s"), "/"); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(num), 10, 64)
		if err != nil {
			return Time{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		d, err := strconv.ParseInt(strings.TrimSpace(den), 10, 64)
		if err != nil || d == 0 {
			return Time{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		return New(n, d), nil
	}
	if t, ok := parseDecimal(s); ok {
		return t, nil
	}
	if t, ok := parseDecimal(strings.TrimSuffix(s, "s")); ok && strings.HasSuffix(s, "s") && !strings.HasSuffix(s, "ms") {
		return t, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return Time{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return FromDuration(d), nil
}

// parseDecimal converts a plain decimal string exactly.
func parseDecimal(s string) (Time, bool) {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "-"), "+")
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return Time{}, false
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 9 {
		frac = frac[:9]
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return Time{}, false
	}
	den := int64(1)
	var f int64
	if frac != "" {
		f, err = strconv.ParseInt(frac, 10, 64)
		if err != nil || f < 0 {
			return Time{}, false
		}
		for range frac {
			den *= 10
		}
	}
	num := w*den + f
	if neg {
		num = -num
	}
	return New(num, den), true
}

// UnmarshalYAML accepts a number of seconds or any string Parse accepts.
func (t *Time) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: line %d: expected scalar", ErrInvalidTime, value.Line)
	}
	v, err := Parse(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*t = v
	return nil
}

// MarshalYAML writes the exact fraction.
func (t Time) MarshalYAML() (any, error) {
	if t.denom() == 1 {
		return strconv.FormatInt(t.num, 10), nil
	}
	return fmt.Sprintf("%d/%d", t.num, t.denom()), nil
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
