package market

import (
	"fmt"
	"strconv"
)

// MinutesPerDay is the bar period the D1 timeframe maps to.
const MinutesPerDay = 1440

// TimeframeString names a bar period given in minutes: M5, H1, D1.
func TimeframeString(minutes int) (string, error) {
	if minutes <= 0 {
		return "", fmt.Errorf("invalid timeframe minutes: %d", minutes)
	}
	if minutes < 60 {
		return fmt.Sprintf("M%d", minutes), nil
	}
	if minutes < MinutesPerDay && minutes%60 == 0 {
		return fmt.Sprintf("H%d", minutes/60), nil
	}
	if minutes%MinutesPerDay == 0 {
		return fmt.Sprintf("D%d", minutes/MinutesPerDay), nil
	}
	return "", fmt.Errorf("cannot map timeframe: %d minutes", minutes)
}

// ParseTimeframe is the inverse of TimeframeString.
func ParseTimeframe(tf string) (int, error) {
	if len(tf) < 2 {
		return 0, fmt.Errorf("unsupported timeframe string: %q", tf)
	}
	n, err := strconv.Atoi(tf[1:])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("unsupported timeframe string: %q", tf)
	}
	switch tf[0] {
	case 'M':
		return n, nil
	case 'H':
		return n * 60, nil
	case 'D':
		return n * MinutesPerDay, nil
	}
	return 0, fmt.Errorf("unsupported timeframe string: %q", tf)
}
