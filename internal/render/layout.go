package render

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Font size tables keyed by the maximum text length (in runes) each size fits.
var (
	// NameSizes is tuned for attendee names.
	NameSizes = map[int]float64{20: 64, 28: 60, 34: 55, 42: 46}
	// DefaultNameSize applies to names longer than every NameSizes key.
	DefaultNameSize = 39.0

	// TitleSizes is tuned for event titles.
	TitleSizes = map[int]float64{40: 40, 60: 34, 80: 30, 110: 26}
	// DefaultTitleSize applies to titles longer than every TitleSizes key.
	DefaultTitleSize = 22.0
)

// FormatDisplayName title-cases every whitespace-separated word and every apostrophe-separated
// part of it: "MARY O'BRIEN" becomes "Mary O'Brien". Hyphens are left alone ("jean-paul" -> "Jean-paul").
func FormatDisplayName(raw string) string {
	words := strings.Fields(raw)
	for i, w := range words {
		parts := strings.Split(w, "'")
		for j, p := range parts {
			parts[j] = titleCase(p)
		}
		words[i] = strings.Join(parts, "'")
	}
	return strings.Join(words, " ")
}

// SelectFontSize returns the size of the smallest threshold key >= length, or def when none fits.
func SelectFontSize(length int, thresholds map[int]float64, def float64) float64 {
	keys := make([]int, 0, len(thresholds))
	for k := range thresholds {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, k := range keys {
		if k >= length {
			return thresholds[k]
		}
	}
	return def
}

// HumanizeEventType turns stored type slugs like "online_workshop" into "online workshop".
func HumanizeEventType(t string) string {
	t = strings.NewReplacer("_", " ", "-", " ").Replace(strings.TrimSpace(t))
	return strings.ToLower(strings.Join(strings.Fields(t), " "))
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToTitle(r)) + strings.ToLower(s[size:])
}
