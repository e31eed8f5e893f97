package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// CurrencySuffix is appended to prices that arrive as bare numbers
const CurrencySuffix = "円"

// FormatPrice renders a decoded JSON price value for display.
// Numbers (and strings made only of digits) get thousands separators and the
// currency suffix; any other non-empty string is returned trimmed.
func FormatPrice(v interface{}) string {
	switch p := v.(type) {
	case float64:
		return formatNumber(p)
	case float32:
		return formatNumber(float64(p))
	case int:
		return groupDigits(int64(p)) + CurrencySuffix
	case int64:
		return groupDigits(p) + CurrencySuffix
	case json.Number:
		if f, err := p.Float64(); err == nil {
			return formatNumber(f)
		}
		return strings.TrimSpace(p.String())
	case string:
		s := strings.TrimSpace(p)
		if s == "" {
			return ""
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil && isDigits(s) {
			return groupDigits(n) + CurrencySuffix
		}
		return s
	case map[string]interface{}:
		for _, k := range []string{"amount", "value"} {
			if inner, ok := p[k]; ok {
				return FormatPrice(inner)
			}
		}
	}
	return ""
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return groupDigits(int64(f)) + CurrencySuffix
	}
	return strconv.FormatFloat(f, 'f', -1, 64) + CurrencySuffix
}

func groupDigits(n int64) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	digits := strconv.FormatInt(n, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String()
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
