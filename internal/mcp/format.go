package mcp

import (
	"fmt"
	"strconv"
	"strings"
)

// heading renders a markdown section title.
func heading(title string) string {
	return "## " + title
}

// kv renders one aligned "Key: value" line of tool output.
func kv(key string, value any) string {
	return fmt.Sprintf("%-20s %v", key+":", value)
}

// joinLines joins the non-empty lines.
func joinLines(lines ...string) string {
	kept := lines[:0]
	for _, l := range lines {
		if l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}

// pct renders a success-rate percentage with one decimal.
func pct(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}

// groupDigits renders a quantity with thousands separators. Fractional
// values keep one decimal place; gas averages need no more precision than
// that on a dashboard.
func groupDigits(n any) string {
	var s string
	switch v := n.(type) {
	case float64:
		if v != float64(int64(v)) {
			return strconv.FormatFloat(v, 'f', 1, 64)
		}
		s = strconv.FormatInt(int64(v), 10)
	case int64:
		s = strconv.FormatInt(v, 10)
	case uint64:
		s = strconv.FormatUint(v, 10)
	case int:
		s = strconv.Itoa(v)
	default:
		return fmt.Sprint(n)
	}

	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	out := make([]byte, 0, len(s)+len(s)/3+1)
	if neg {
		out = append(out, '-')
	}
	for i := 0; i < len(s); i++ {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	return string(out)
}
