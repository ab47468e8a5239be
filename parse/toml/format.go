package toml

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// =========================
// Keys
// =========================

func isBareKey(key string) bool {
	if key == "" {
		return false
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}

// FormatKey renders one key segment, bare when possible and quoted otherwise.
func FormatKey(key string) string {
	if isBareKey(key) {
		return key
	}
	return quoteBasic(key)
}

// formatPath joins independently encoded key segments with dots.
func formatPath(path []string) string {
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = FormatKey(p)
	}
	return strings.Join(parts, ".")
}

// =========================
// Strings
// =========================

var compactEscapes = map[rune]string{
	'\b': `\b`,
	'\t': `\t`,
	'\n': `\n`,
	'\f': `\f`,
	'\r': `\r`,
	'"':  `\"`,
	'\\': `\\`,
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}

func writeEscaped(b *strings.Builder, r rune) {
	if esc, ok := compactEscapes[r]; ok {
		b.WriteString(esc)
		return
	}
	fmt.Fprintf(b, `\u%04x`, r)
}

// quoteBasic renders s as a single-line basic string.
func quoteBasic(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		if r == '"' || r == '\\' || isControl(r) {
			writeEscaped(&b, r)
			continue
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}

// quoteMultiline renders s as a multiline basic string. Newlines and tabs stay
// literal; a quote is escaped when it would complete a run of three or end
// the body.
func quoteMultiline(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	var b strings.Builder
	b.Grow(len(s) + 7)
	b.WriteString("\"\"\"\n")
	run := 0
	for i, r := range s {
		if r == '"' {
			if run == 2 || i == len(s)-1 {
				b.WriteString(`\"`)
				run = 0
			} else {
				b.WriteByte('"')
				run++
			}
			continue
		}
		run = 0
		switch {
		case r == '\n' || r == '\t':
			b.WriteRune(r)
		case r == '\\' || isControl(r):
			writeEscaped(&b, r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteString(`"""`)
	return b.String()
}

// wantsMultiline reports whether s takes the multiline form where one is
// permitted.
func (o Options) wantsMultiline(s string) bool {
	return o.MultilineStrings &&
		strings.Contains(s, "\n") &&
		utf8.RuneCountInString(s) > o.MultilineThreshold
}

// =========================
// Numbers & Dates
// =========================

func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	format := byte('f')
	if abs := math.Abs(f); abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		format = 'e'
	}
	s := strconv.FormatFloat(f, format, -1, bits)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

func toInt64(v any) (int64, bool) {
	switch i := v.(type) {
	case int64:
		return i, true
	case int:
		return int64(i), true
	case int32:
		return int64(i), true
	case int16:
		return int64(i), true
	case int8:
		return int64(i), true
	case uint8:
		return int64(i), true
	case uint16:
		return int64(i), true
	case uint32:
		return int64(i), true
	case uint:
		if uint64(i) > math.MaxInt64 {
			return 0, false
		}
		return int64(i), true
	case uint64:
		if i > math.MaxInt64 {
			return 0, false
		}
		return int64(i), true
	}
	return 0, false
}

var dateLayouts = map[ValueKind]string{
	tomlValueKinds.ValueDatetime:      time.RFC3339Nano,
	tomlValueKinds.ValueLocalDate:     "2006-01-02",
	tomlValueKinds.ValueLocalTime:     "15:04:05.999999999",
	tomlValueKinds.ValueLocalDatetime: "2006-01-02T15:04:05.999999999",
}

// =========================
// Scalars
// =========================

func payloadErr(v *Value) error {
	return fmt.Errorf("%w: %s value holds %T", ErrInvalidValueKind, v.Type, v.V)
}

// formatScalar renders a leaf value. multiline is set only for a value written
// directly in a table body.
func formatScalar(v *Value, opts Options, multiline bool) (string, error) {
	switch v.Type {
	case tomlValueKinds.ValueString:
		s, ok := v.V.(string)
		if !ok {
			return "", payloadErr(v)
		}
		if !utf8.ValidString(s) {
			return "", fmt.Errorf("%w: string is not valid UTF-8", ErrInvalidValueKind)
		}
		if multiline && opts.wantsMultiline(s) {
			return quoteMultiline(s), nil
		}
		return quoteBasic(s), nil
	case tomlValueKinds.ValueInt:
		i, ok := toInt64(v.V)
		if !ok {
			return "", payloadErr(v)
		}
		return strconv.FormatInt(i, 10), nil
	case tomlValueKinds.ValueFloat:
		switch f := v.V.(type) {
		case float64:
			return formatFloat(f, 64), nil
		case float32:
			return formatFloat(float64(f), 32), nil
		}
		return "", payloadErr(v)
	case tomlValueKinds.ValueBool:
		b, ok := v.V.(bool)
		if !ok {
			return "", payloadErr(v)
		}
		return strconv.FormatBool(b), nil
	case tomlValueKinds.ValueDatetime,
		tomlValueKinds.ValueLocalDate,
		tomlValueKinds.ValueLocalTime,
		tomlValueKinds.ValueLocalDatetime:
		t, ok := v.V.(time.Time)
		if !ok {
			return "", payloadErr(v)
		}
		return t.Format(dateLayouts[v.Type]), nil
	case tomlValueKinds.ValueLiteral:
		s, ok := v.V.(string)
		if !ok {
			return "", payloadErr(v)
		}
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidValueKind, v.Type)
}
