// Package scoring is the boundary to the external CV/job matching capability.
//
// A Scorer turns (CV text, job description, requirements, title) into a score
// in [0,100] with an analysis. Implementations live in subpackages (gemini,
// nlp) or here (Keyword, Disabled). The Adapter wraps any Scorer with a
// timeout and a neutral fallback so a failing provider never fails a
// submission.
package scoring

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/moverq1337/hireboard/internal/apperrors"
)

const (
	NoCVAnalysis      = "No CV text available"
	DisabledAnalysis  = "AI scoring temporarily disabled"
	UnavailablePrefix = "AI scoring unavailable"
	DefaultTimeout    = 20 * time.Second
	maxListedFindings = 10
)

type Request struct {
	CVText          string
	JobDescription  string
	JobRequirements string
	JobTitle        string
}

type Result struct {
	Score     int
	Analysis  string
	Strengths []string
	Gaps      []string
}

type Scorer interface {
	Score(ctx context.Context, req Request) (Result, error)
}

// Func adapts a plain function to Scorer.
type Func func(ctx context.Context, req Request) (Result, error)

func (f Func) Score(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

// Disabled always returns the neutral result without contacting anything.
type Disabled struct{}

func (Disabled) Score(context.Context, Request) (Result, error) {
	return Result{Score: 0, Analysis: DisabledAnalysis}, nil
}

// Outcome is what the pipeline stores: the result plus whether it is the fallback.
type Outcome struct {
	Result
	Fallback bool
}

// Adapter bounds a Scorer call and downgrades every failure to the neutral result.
type Adapter struct {
	scorer  Scorer
	timeout time.Duration
	log     logrus.FieldLogger
}

func NewAdapter(scorer Scorer, timeout time.Duration, log logrus.FieldLogger) *Adapter {
	if scorer == nil {
		scorer = Disabled{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Adapter{scorer: scorer, timeout: timeout, log: log}
}

// Evaluate scores req. It never fails: empty CV text short-circuits to score 0
// and provider errors, panics or timeouts yield score 0 with an analysis that
// says scoring was unavailable.
func (a *Adapter) Evaluate(ctx context.Context, req Request) Outcome {
	if strings.TrimSpace(req.CVText) == "" {
		return Outcome{Result: Result{Score: 0, Analysis: NoCVAnalysis}}
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	type reply struct {
		res Result
		err error
	}
	done := make(chan reply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- reply{err: apperrors.Newf("scorer panic: %v", r)}
			}
		}()
		res, err := a.scorer.Score(ctx, req)
		done <- reply{res: res, err: err}
	}()

	var (
		res Result
		err error
	)
	select {
	case r := <-done:
		res, err = r.res, r.err
	case <-ctx.Done():
		err = ctx.Err()
	}

	if err != nil {
		// Transports report deadlines in their own error types; the context
		// knows why the call really ended.
		cause := err
		if ctxErr := ctx.Err(); ctxErr != nil {
			cause = ctxErr
		}
		err = apperrors.Mark(err, apperrors.ErrScoringUnavailable)
		a.log.WithFields(logrus.Fields{
			"job_title": req.JobTitle,
			"timeout":   a.timeout.String(),
		}).WithError(err).Warn("scoring failed, using neutral score")
		return Outcome{Result: Result{Score: 0, Analysis: unavailableAnalysis(cause)}, Fallback: true}
	}

	return Outcome{Result: Normalize(res)}
}

func unavailableAnalysis(err error) string {
	switch {
	case apperrors.Is(err, context.DeadlineExceeded):
		return UnavailablePrefix + ": the scoring service timed out."
	case apperrors.Is(err, context.Canceled):
		return UnavailablePrefix + ": the request was cancelled."
	default:
		return UnavailablePrefix + ": the scoring service returned an error."
	}
}

// Normalize clamps the score to [0,100] and tidies the finding lists.
func Normalize(res Result) Result {
	res.Score = ClampScore(float64(res.Score))
	res.Analysis = strings.TrimSpace(res.Analysis)
	res.Strengths = tidy(res.Strengths)
	res.Gaps = tidy(res.Gaps)
	return res
}

// ClampScore rounds v and clamps it to [0,100]. NaN becomes 0.
func ClampScore(v float64) int {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(math.Round(v))
}

func tidy(items []string) []string {
	out := items[:0:0]
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
		if len(out) == maxListedFindings {
			break
		}
	}
	return out
}

// FormatAnalysis renders the stored analysis text:
// "<analysis> Strengths: a, b. Areas to improve: c."
func FormatAnalysis(res Result) string {
	parts := []string{}
	if res.Analysis != "" {
		parts = append(parts, strings.TrimSpace(res.Analysis))
	}
	if len(res.Strengths) > 0 {
		parts = append(parts, fmt.Sprintf("Strengths: %s.", strings.Join(res.Strengths, ", ")))
	}
	if len(res.Gaps) > 0 {
		parts = append(parts, fmt.Sprintf("Areas to improve: %s.", strings.Join(res.Gaps, ", ")))
	}
	return strings.Join(parts, " ")
}
