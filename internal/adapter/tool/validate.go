package tool

import (
	"fmt"
	"time"
)

// RequireField returns an error if the string value is empty.
func RequireField(name, value string) error {
	if value == "" {
		return fmt.Errorf("'%s' is required", name)
	}
	return nil
}

// RequireFields validates multiple required string fields at once.
// Arguments alternate name, value.
func RequireFields(kvs ...string) error {
	if len(kvs)%2 != 0 {
		return fmt.Errorf("RequireFields: odd number of arguments")
	}
	for i := 0; i < len(kvs); i += 2 {
		if kvs[i+1] == "" {
			return fmt.Errorf("'%s' is required", kvs[i])
		}
	}
	return nil
}

// ValidateAll returns the first non-nil error from the given list.
func ValidateAll(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// dateLayouts are the timestamp shapes the assistant emits for
// data_inicio / data_fim arguments.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseWhen parses an ISO-8601-ish timestamp argument. Date-only values
// parse to midnight local time.
func ParseWhen(name, value string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid %s %q (want ISO 8601, e.g. 2025-03-01T14:00:00)", name, value)
}
