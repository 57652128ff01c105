// Package labels renders ranked analysis results into the strings written to
// result files and metadata tags.
package labels

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/hejijunhao/autotag/internal/model"
)

const (
	// Separator joins labels in a rendered list.
	Separator = " ; "
	// CompoundSeparator splits a "main---sub" label into its two parts.
	CompoundSeparator = "---"
	// NoResult is the tag value written when a file was analyzed but no label
	// qualified.
	NoResult = "nan"
)

// FormatLabels joins the label of each entry in ranked order.
func FormatLabels(result model.AnalysisResult) string {
	if len(result) == 0 {
		return ""
	}
	return strings.Join(result.Labels(), Separator)
}

// FormatRegression renders regression outputs as "name: value" pairs with four
// decimal places.
func FormatRegression(result model.AnalysisResult) string {
	parts := make([]string, len(result))
	for i, ls := range result {
		parts[i] = fmt.Sprintf("%s: %.4f", ls.Label, ls.MeanScore)
	}
	return strings.Join(parts, Separator)
}

// Normalize deduplicates and title-cases a separated label list before it is
// written to a tag. Compound "main---sub" labels are split into two elements.
// Duplicates are detected case-insensitively and the first occurrence wins.
func Normalize(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	fold := cases.Fold()
	seen := make(map[string]bool)
	var out []string
	emit := func(s string) {
		if s == "" {
			return
		}
		key := fold.String(s)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, s)
	}

	for _, elem := range strings.Split(raw, ";") {
		elem = strings.TrimSpace(elem)
		if elem == "" {
			continue
		}
		if main, sub, ok := strings.Cut(elem, CompoundSeparator); ok {
			emit(TitleCase(strings.TrimSpace(main)))
			emit(TitleCase(strings.TrimSpace(sub)))
			continue
		}
		emit(TitleCase(elem))
	}
	return strings.Join(out, Separator)
}

// TitleCase capitalizes every space-separated word, and every hyphen-separated
// segment inside a word ("hip-hop" becomes "Hip-Hop"). Runs of spaces collapse
// to one and leading or trailing hyphens are dropped from each word.
func TitleCase(text string) string {
	if text == "" {
		return ""
	}
	var words []string
	for _, word := range strings.Split(text, " ") {
		word = strings.Trim(word, "-")
		if word == "" {
			continue
		}
		segments := strings.Split(word, "-")
		for i, seg := range segments {
			segments[i] = capitalize(seg)
		}
		words = append(words, strings.Join(segments, "-"))
	}
	if len(words) == 0 {
		if strings.TrimSpace(text) != "" {
			return text
		}
		return ""
	}
	return strings.Join(words, " ")
}

// capitalize upper-cases the first rune of s and lower-cases the rest.
// Letters after punctuation or digits stay lower case ("r&b" becomes "R&b").
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return cases.Upper(language.Und).String(string(r)) + cases.Lower(language.Und).String(s[size:])
}
