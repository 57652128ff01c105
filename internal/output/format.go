package output

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hejijunhao/autotag/internal/model"
)

const ruleWidth = 80

var (
	heavyRule = strings.Repeat("=", ruleWidth)
	lightRule = strings.Repeat("-", ruleWidth)
)

// Audit record wording. Result files written by earlier versions of the tool
// use these exact strings, and existing result files are diffed against new
// runs, so they must not be translated or reworded.
const (
	headerFormat    = "--- Fichier Analysé: %s ---"
	paramsFormat    = "Paramètres (threshold=%s, min_freq=%d, min_score=%s, max_labels=%s):\n"
	noResultLine    = "Aucun label pertinent trouvé selon les critères de filtrage.\n"
	tableHeading    = "Labels pertinents (après filtrage et tri) :\n"
	meanScoreColumn = "Score Moyen"
	assignedSuffix  = " assigné(s)"
	noneAssigned    = "Aucun"
	allScoresTitle  = "\nProbabilités moyennes de toutes les classes (triées par score) :\n"
)

// FormatRecord renders the human-readable audit block for one record. The
// all-scores section is included only when allScores is set and the record
// carries class means.
func FormatRecord(rec Record, allScores bool) string {
	var b strings.Builder

	header := fmt.Sprintf(headerFormat, rec.File)
	b.WriteString("\n\n")
	b.WriteString(header)
	b.WriteByte('\n')

	if rec.Params != nil {
		fmt.Fprintf(&b, paramsFormat,
			pyFloat(rec.Params.Threshold), rec.Params.MinFrequency,
			pyFloat(rec.Params.MinScore), maxLabels(rec.Params.MaxLabels))
	}

	if len(rec.Results) == 0 {
		b.WriteString(noResultLine)
	} else {
		b.WriteString(tableHeading)
		b.WriteString(heavyRule)
		b.WriteByte('\n')
		fmt.Fprintf(&b, "%-40s | %15s | %9s | %12s\n", "Label", "Segments > Thr", "Freq (%)", meanScoreColumn)
		b.WriteString(lightRule)
		b.WriteByte('\n')
		for _, ls := range rec.Results {
			fmt.Fprintf(&b, "%-40s | %15d | %9.2f | %12.4f\n", ls.Label, ls.Count, ls.Frequency, ls.MeanScore)
		}
		b.WriteString(heavyRule)
		b.WriteByte('\n')
	}

	final := rec.FinalLabels
	if final == "" {
		final = noneAssigned
	}
	fmt.Fprintf(&b, "%-25s: %s\n", capitalize(rec.Pipeline)+assignedSuffix, final)

	if allScores && len(rec.AllScores) > 0 {
		scores := make([]model.ClassScore, len(rec.AllScores))
		copy(scores, rec.AllScores)
		sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })

		b.WriteString(allScoresTitle)
		b.WriteString(lightRule)
		b.WriteByte('\n')
		for _, cs := range scores {
			fmt.Fprintf(&b, "%-40s : %.4f\n", cs.Label, cs.Score)
		}
		b.WriteString(lightRule)
		b.WriteByte('\n')
	}

	b.WriteString(strings.Repeat("=", utf8.RuneCountInString(header)))
	b.WriteByte('\n')
	return b.String()
}

// pyFloat prints a float in its shortest form, keeping a trailing ".0" for
// whole numbers so 0 renders as "0.0".
func pyFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}

func maxLabels(n *int) string {
	if n == nil {
		return "None"
	}
	return strconv.Itoa(*n)
}

// capitalize upper-cases the first rune and lower-cases the rest.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
