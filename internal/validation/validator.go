package validation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/mmrzaf/termwatch/internal/domain"
)

const (
	DefaultPage       = 1
	DefaultPageSize   = 20
	DefaultErrorCount = 20

	maxItemNameLen = 200
)

// ParsePositiveInt turns an optional boundary value into a PositiveInt.
// Empty means def; anything that is not an integer in [1, max] is rejected.
func ParsePositiveInt(name, raw string, def, max int) (domain.PositiveInt, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.NewPositiveInt(def)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return domain.PositiveInt{}, fmt.Errorf("%w: %s must be an integer, got %q", domain.ErrInvalidRequest, name, raw)
	}
	if n <= 0 {
		return domain.PositiveInt{}, fmt.Errorf("%w: %s must be positive, got %d", domain.ErrInvalidRequest, name, n)
	}
	if n > max {
		return domain.PositiveInt{}, fmt.Errorf("%w: %s must be at most %d, got %d", domain.ErrInvalidRequest, name, max, n)
	}
	return domain.NewPositiveInt(n)
}

func ParseRunID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: run id %q is not a UUID", domain.ErrInvalidRequest, raw)
	}
	return id, nil
}

// NormalizeItemName trims the release filter; empty means no filter.
func NormalizeItemName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if len(name) > maxItemNameLen {
		return "", fmt.Errorf("%w: itemName longer than %d characters", domain.ErrInvalidRequest, maxItemNameLen)
	}
	return name, nil
}
