package run

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Capture file names are rendered from a format string with placeholders:
//
//	{counter}        zero-padded global step index ("0042")
//	{time:<layout>}  timestamp in Go reference-time layout
//	{var:<id>}       value of a swept variable in the current step
//
// Unknown placeholders are kept verbatim so a typo is visible in the
// output directory rather than silently dropped.

// DefaultNameFormat is used when the config leaves run.name_format empty.
const DefaultNameFormat = "{counter}_{time:20060102_150405}"

// counterWidth pads the step index for lexicographic file ordering.
const counterWidth = 4

// FormatName renders a capture file name (without extension).
//
// Parameters:
//   - format: The placeholder format string; empty uses DefaultNameFormat
//   - counter: Zero-based global step index
//   - at: Timestamp substituted for {time:...} placeholders
//   - values: Variable assignment for {var:...} placeholders
func FormatName(format string, counter int, at time.Time, values map[string]float64) string {
	if format == "" {
		format = DefaultNameFormat
	}

	var out strings.Builder
	rest := format
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			out.WriteString(rest)
			break
		}
		closing := strings.IndexByte(rest[open:], '}')
		if closing < 0 {
			out.WriteString(rest)
			break
		}
		closing += open

		out.WriteString(rest[:open])
		token := rest[open+1 : closing]
		out.WriteString(expandToken(token, counter, at, values))
		rest = rest[closing+1:]
	}

	return sanitizeName(out.String())
}

// expandToken renders one placeholder body (the text between braces).
func expandToken(token string, counter int, at time.Time, values map[string]float64) string {
	switch {
	case token == "counter":
		return fmt.Sprintf("%0*d", counterWidth, counter)
	case strings.HasPrefix(token, "time:"):
		layout := strings.TrimPrefix(token, "time:")
		if layout == "" {
			layout = "20060102_150405"
		}
		return at.Format(layout)
	case strings.HasPrefix(token, "var:"):
		id := strings.TrimPrefix(token, "var:")
		if v, ok := values[id]; ok {
			return formatValue(v)
		}
		return "{" + token + "}"
	default:
		return "{" + token + "}"
	}
}

// formatValue renders a float compactly: integers without a decimal
// point, fractions with minimal digits.
func formatValue(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	// Dots in file names confuse extension handling downstream.
	return strings.ReplaceAll(s, ".", "p")
}

// sanitizeName replaces path separators and other characters that are
// unsafe in file names across platforms.
func sanitizeName(name string) string {
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		":", "-",
		"*", "-",
		"?", "-",
		"\"", "-",
		"<", "-",
		">", "-",
		"|", "-",
		" ", "_",
	)
	return replacer.Replace(name)
}
