package domain

import (
	"fmt"
	"strings"
)

func trimmed(s string) string {
	return strings.TrimSpace(s)
}

func errRequired(field string) error {
	return fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
}

func errRange(field string) error {
	return fmt.Errorf("%w: %s is out of range", ErrInvalidInput, field)
}
