package scan

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// CutoffLayout is the DD-MM-YYYY form accepted from users.
const CutoffLayout = "02-01-2006"

var ErrInvalidCutoff = errors.New("invalid cutoff date")

// ParseCutoff returns the start of the given day in UTC.
func ParseCutoff(value string) (time.Time, error) {
	t, err := time.ParseInLocation(CutoffLayout, strings.TrimSpace(value), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: use DD-MM-YYYY", ErrInvalidCutoff, value)
	}
	return t, nil
}
