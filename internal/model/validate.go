package model

import (
	"fmt"
	"strings"
)

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
