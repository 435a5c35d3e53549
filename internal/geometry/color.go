package geometry

import (
	"fmt"
	"strconv"
	"strings"
)

// NormalizeColor converts the color notations produced by computed styles into a
// canonical lowercase form: opaque colors become "#rrggbb", translucent ones
// "rgba(r, g, b, a)". Unrecognized input is returned trimmed and lowercased.
func NormalizeColor(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	switch {
	case strings.HasPrefix(v, "#"):
		return normalizeHex(v)
	case strings.HasPrefix(v, "rgb"):
		return normalizeRGB(v)
	default:
		return v
	}
}

func normalizeHex(v string) string {
	hex := v[1:]
	switch len(hex) {
	case 3, 4:
		var b strings.Builder
		b.WriteByte('#')
		for _, c := range hex[:3] {
			b.WriteRune(c)
			b.WriteRune(c)
		}
		if len(hex) == 4 && hex[3] != 'f' {
			a, err := strconv.ParseUint(strings.Repeat(string(hex[3]), 2), 16, 8)
			if err != nil {
				return v
			}
			return rgbaFromHex(b.String()[1:], float64(a)/255)
		}
		return b.String()
	case 6:
		if _, err := strconv.ParseUint(hex, 16, 32); err != nil {
			return v
		}
		return "#" + hex
	case 8:
		a, err := strconv.ParseUint(hex[6:], 16, 8)
		if err != nil {
			return v
		}
		if a == 255 {
			return "#" + hex[:6]
		}
		return rgbaFromHex(hex[:6], float64(a)/255)
	default:
		return v
	}
}

func rgbaFromHex(hex string, alpha float64) string {
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return "#" + hex
	}
	return formatRGBA(int(n>>16&0xff), int(n>>8&0xff), int(n&0xff), alpha)
}

func normalizeRGB(v string) string {
	open := strings.IndexByte(v, '(')
	end := strings.LastIndexByte(v, ')')
	if open < 0 || end <= open {
		return v
	}
	body := strings.NewReplacer("/", ",", " ", ",").Replace(v[open+1 : end])
	var parts []string
	for _, p := range strings.Split(body, ",") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) != 3 && len(parts) != 4 {
		return v
	}

	var channels [3]int
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(strings.TrimSuffix(parts[i], "%"), 64)
		if err != nil || !IsFinite(f) {
			return v
		}
		if strings.HasSuffix(parts[i], "%") {
			f = f * 255 / 100
		}
		channels[i] = clampChannel(f)
	}

	alpha := 1.0
	if len(parts) == 4 {
		f, err := strconv.ParseFloat(strings.TrimSuffix(parts[3], "%"), 64)
		if err != nil || !IsFinite(f) {
			return v
		}
		if strings.HasSuffix(parts[3], "%") {
			f /= 100
		}
		alpha = min(max(f, 0), 1)
	}

	if alpha >= 1 {
		return fmt.Sprintf("#%02x%02x%02x", channels[0], channels[1], channels[2])
	}
	return formatRGBA(channels[0], channels[1], channels[2], alpha)
}

func clampChannel(f float64) int {
	if f < 0 {
		return 0
	}
	if f > 255 {
		return 255
	}
	return int(f + 0.5)
}

func formatRGBA(r, g, b int, alpha float64) string {
	return fmt.Sprintf("rgba(%d, %d, %d, %s)", r, g, b, strconv.FormatFloat(float64(int(alpha*100+0.5))/100, 'f', -1, 64))
}
