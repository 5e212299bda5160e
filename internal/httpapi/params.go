package httpapi

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

func parsePositiveInt(raw string, defaultValue, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}

// parseThreshold reads an optional similarity threshold. Empty means the builder default.
func parseThreshold(raw string) (float64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, nil
	}
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("must be a number")
	}
	return thresholdValue(&value)
}

func thresholdValue(value *float64) (float64, error) {
	if value == nil {
		return 0, nil
	}
	if *value <= 0 || *value > 1 {
		return 0, fmt.Errorf("must be in (0, 1]")
	}
	return *value, nil
}

// parseTimeFilter accepts RFC3339 or a bare UTC date.
func parseTimeFilter(raw string) (*time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}

	if ts, err := time.Parse(time.RFC3339, trimmed); err == nil {
		utc := ts.UTC()
		return &utc, nil
	}

	if day, err := time.Parse("2006-01-02", trimmed); err == nil {
		utc := day.UTC()
		return &utc, nil
	}

	return nil, fmt.Errorf("invalid time format")
}
