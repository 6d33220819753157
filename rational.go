// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package asynctiff

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Rational is a RATIONAL (uint32) or SRATIONAL (int32) tag value.
// Values decoded from a file are kept as stored, including a zero Den.
type Rational[T int32 | uint32] struct {
	Num T
	Den T
}

var errZeroDenominator = errors.New("denominator must be non-zero")

// NewRational returns num/den in lowest terms with a positive denominator.
func NewRational[T int32 | uint32](num, den T) (Rational[T], error) {
	if den == 0 {
		return Rational[T]{}, errZeroDenominator
	}
	return Rational[T]{Num: num, Den: den}.Reduce(), nil
}

// Reduce returns r in lowest terms with a positive denominator.
// A zero denominator is returned unchanged.
func (r Rational[T]) Reduce() Rational[T] {
	if r.Den == 0 {
		return r
	}
	a, b := r.Num, r.Den
	for b != 0 {
		a, b = b, a%b
	}
	if a < 0 {
		a = -a
	}
	if a > 1 {
		r.Num, r.Den = r.Num/a, r.Den/a
	}
	if r.Den < 0 {
		r.Num, r.Den = -r.Num, -r.Den
	}
	return r
}

// Float64 returns Num/Den. A zero denominator gives ±Inf, or NaN for 0/0.
func (r Rational[T]) Float64() float64 {
	return float64(r.Num) / float64(r.Den)
}

// String returns "Num/Den", or just Num when Den is 1.
func (r Rational[T]) String() string {
	if r.Den == 1 {
		return strconv.FormatInt(int64(r.Num), 10)
	}
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Format prints the float value for the float verbs and String otherwise.
func (r Rational[T]) Format(f fmt.State, verb rune) {
	switch verb {
	case 'f', 'F', 'g', 'G', 'e', 'E':
		prec, ok := f.Precision()
		if !ok {
			prec = 6
		}
		fmt.Fprint(f, strconv.FormatFloat(r.Float64(), byte(verb), prec, 64))
	default:
		fmt.Fprint(f, r.String())
	}
}

func (r Rational[T]) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Rational[T]) UnmarshalText(text []byte) error {
	num, den, found := strings.Cut(string(text), "/")
	if !found {
		den = "1"
	}
	n, err := strconv.ParseInt(strings.TrimSpace(num), 10, 64)
	if err != nil {
		return fmt.Errorf("failed to parse %q as a rational number: %w", text, err)
	}
	d, err := strconv.ParseInt(strings.TrimSpace(den), 10, 64)
	if err != nil {
		return fmt.Errorf("failed to parse %q as a rational number: %w", text, err)
	}
	r.Num, r.Den = T(n), T(d)
	return nil
}
