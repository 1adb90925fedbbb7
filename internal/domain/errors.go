package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means a specifically identified entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRequest means a caller-supplied parameter is outside its domain.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnavailable means the reporting store could not be reached or failed.
	ErrUnavailable = errors.New("store unavailable")
)

// Upper bounds for caller-chosen result sizes.
const (
	MaxPageSize   = 500
	MaxErrorCount = 500
)

// PositiveInt is an integer known to be > 0. Build it with NewPositiveInt.
type PositiveInt struct {
	n int
}

func NewPositiveInt(n int) (PositiveInt, error) {
	if n <= 0 {
		return PositiveInt{}, fmt.Errorf("%w: %d is not a positive integer", ErrInvalidRequest, n)
	}
	return PositiveInt{n: n}, nil
}

// MustPositiveInt is for constants and tests.
func MustPositiveInt(n int) PositiveInt {
	p, err := NewPositiveInt(n)
	if err != nil {
		panic(err)
	}
	return p
}

func (p PositiveInt) Int() int { return p.n }

// Valid reports whether p was built through NewPositiveInt; the zero value is not.
func (p PositiveInt) Valid() bool { return p.n > 0 }
