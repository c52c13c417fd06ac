package scoring

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"
)

var stopWords = map[string]bool{
	"and": true, "the": true, "for": true, "with": true, "you": true,
	"are": true, "have": true, "will": true, "this": true, "that": true,
	"from": true, "our": true, "your": true, "their": true, "they": true,
	"work": true, "team": true, "role": true, "job": true, "join": true,
	"about": true, "which": true, "what": true, "who": true, "how": true,
	"can": true, "not": true, "but": true, "all": true, "also": true,
	"more": true, "than": true, "into": true, "has": true, "its": true,
	"was": true, "were": true, "been": true, "each": true, "new": true,
	"use": true, "using": true, "used": true, "well": true, "good": true,
	"able": true, "experience": true, "years": true, "must": true, "should": true,
}

// Keyword scores by how many job keywords the CV covers. It needs no network
// and gives the same answer for the same input.
type Keyword struct{}

func (Keyword) Score(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	cvKW := keywords(req.CVText)
	jobKW := keywords(strings.Join([]string{req.JobTitle, req.JobDescription, req.JobRequirements}, " "))
	if len(jobKW) == 0 {
		return Result{Score: 0, Analysis: "The job posting has no usable keywords."}, nil
	}

	var matching, missing []string
	for kw := range jobKW {
		if cvKW[kw] {
			matching = append(matching, kw)
		} else {
			missing = append(missing, kw)
		}
	}
	sort.Strings(matching)
	sort.Strings(missing)

	score := ClampScore(float64(len(matching)) / float64(len(jobKW)) * 100)
	return Result{
		Score:     score,
		Analysis:  fmt.Sprintf("The CV covers %d of %d job keywords.", len(matching), len(jobKW)),
		Strengths: head(matching, maxListedFindings),
		Gaps:      head(missing, maxListedFindings),
	}, nil
}

// keywords lowercases text and keeps words of three or more runes. '+', '#'
// and '.' count as word characters so "c++" and "node.js" survive.
func keywords(text string) map[string]bool {
	kw := make(map[string]bool)
	var word strings.Builder
	flush := func() {
		w := strings.TrimRight(word.String(), ".")
		word.Reset()
		if len([]rune(w)) >= 3 && !stopWords[w] {
			kw[w] = true
		}
	}
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#' || r == '.' {
			word.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return kw
}

func head(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
