package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatAmount renders an amount with thousands separators, e.g. 1,250,000
func FormatAmount(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}

	digits := strconv.FormatInt(amount, 10)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	return sign + b.String()
}

// FormatShortAmount renders large amounts compactly (e.g. 50k instead of 50000)
func FormatShortAmount(value int64) string {
	abs := value
	sign := ""
	if value < 0 {
		abs = -value
		sign = "-"
	}

	switch {
	case abs >= 1_000_000_000:
		return fmt.Sprintf("%s%.2fB", sign, float64(abs)/1_000_000_000)
	case abs >= 1_000_000:
		return fmt.Sprintf("%s%.2fM", sign, float64(abs)/1_000_000)
	case abs >= 10_000:
		return fmt.Sprintf("%s%dk", sign, abs/1_000)
	default:
		return sign + FormatAmount(abs)
	}
}

// FormatWait renders how long until t, rounded to the largest useful unit
func FormatWait(now, t time.Time) string {
	d := t.Sub(now)
	switch {
	case d <= 0:
		return "now"
	case d < time.Minute:
		return fmt.Sprintf("in %ds", int(d.Round(time.Second).Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("in %dm", int(d.Round(time.Minute).Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("in %dh", int(d.Round(time.Hour).Hours()))
	default:
		return fmt.Sprintf("in %dd", int(d.Round(24*time.Hour).Hours()/24))
	}
}
