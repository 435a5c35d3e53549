package stage

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gorilla/css/scanner"

	"github.com/gemstudio/gem/editor-go/internal/document"
	"github.com/gemstudio/gem/editor-go/internal/geometry"
)

// FormatTransform renders t as a CSS transform value.
func FormatTransform(t document.Transform) string {
	return fmt.Sprintf("translate(%spx, %spx) rotate(%sdeg) scale(%s, %s)",
		formatFloat(t.X), formatFloat(t.Y), formatFloat(t.Rotate),
		formatFloat(t.ScaleX), formatFloat(t.ScaleY))
}

// ParseTransform reads the translate/rotate/scale functions of a CSS transform
// value. Unknown functions are skipped; malformed numbers fall back to identity
// values. ok is false when nothing could be read.
func ParseTransform(value string) (document.Transform, bool) {
	t := document.IdentityTransform()
	found := false
	rest := strings.TrimSpace(value)

	for rest != "" {
		open := strings.IndexByte(rest, '(')
		end := strings.IndexByte(rest, ')')
		if open <= 0 || end < open {
			break
		}
		name := strings.TrimSpace(rest[:open])
		args := splitArgs(rest[open+1 : end])
		rest = strings.TrimSpace(rest[end+1:])

		switch name {
		case "translate":
			if len(args) >= 1 {
				t.X = parseLength(args[0], 0)
				found = true
			}
			if len(args) >= 2 {
				t.Y = parseLength(args[1], 0)
			}
		case "translateX":
			if len(args) == 1 {
				t.X = parseLength(args[0], 0)
				found = true
			}
		case "translateY":
			if len(args) == 1 {
				t.Y = parseLength(args[0], 0)
				found = true
			}
		case "rotate":
			if len(args) == 1 {
				t.Rotate = parseLength(args[0], 0)
				found = true
			}
		case "scale":
			if len(args) >= 1 {
				t.ScaleX = parseLength(args[0], 1)
				t.ScaleY = t.ScaleX
				found = true
			}
			if len(args) >= 2 {
				t.ScaleY = parseLength(args[1], 1)
			}
		case "scaleX":
			if len(args) == 1 {
				t.ScaleX = parseLength(args[0], 1)
				found = true
			}
		case "scaleY":
			if len(args) == 1 {
				t.ScaleY = parseLength(args[0], 1)
				found = true
			}
		}
	}
	return t, found
}

// FormatPixels renders v as a CSS pixel length.
func FormatPixels(v float64) string {
	return formatFloat(v) + "px"
}

// ParsePixels reads a CSS length such as "12px" or "12". ok is false for
// anything that does not yield a finite number.
func ParsePixels(value string) (float64, bool) {
	v := strings.TrimSpace(value)
	for _, unit := range []string{"px", "deg"} {
		v = strings.TrimSuffix(v, unit)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || !geometry.IsFinite(f) {
		return 0, false
	}
	return f, true
}

func parseLength(value string, fallback float64) float64 {
	if f, ok := ParsePixels(value); ok {
		return f
	}
	return fallback
}

func splitArgs(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseInlineStyle splits a style attribute into property/value pairs.
// Separators inside strings, urls and functions do not end a declaration.
func ParseInlineStyle(attr string) map[string]string {
	out := map[string]string{}
	var name, value strings.Builder
	inValue := false

	flush := func() {
		n := strings.ToLower(strings.TrimSpace(name.String()))
		v := strings.TrimSpace(value.String())
		if inValue && n != "" && v != "" {
			out[n] = v
		}
		name.Reset()
		value.Reset()
		inValue = false
	}

	s := scanner.New(attr)
	for {
		tok := s.Next()
		switch {
		case tok.Type == scanner.TokenEOF || tok.Type == scanner.TokenError:
			flush()
			return out
		case tok.Type == scanner.TokenComment:
		case tok.Type == scanner.TokenChar && tok.Value == ";":
			flush()
		case tok.Type == scanner.TokenChar && tok.Value == ":" && !inValue:
			inValue = true
		case tok.Type == scanner.TokenS:
			if inValue {
				value.WriteByte(' ')
			}
		case inValue:
			value.WriteString(tok.Value)
		default:
			name.WriteString(tok.Value)
		}
	}
}
