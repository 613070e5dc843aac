package curriculum

import (
	"context"
	"fmt"
	"strings"

	"github.com/timmy/coursegen/internal/domain"
)

// State is a refinement step.
type State int

const (
	StateAttempt State = iota
	StateEvaluate
	StateAccept
	StateRefine
	StateGiveUp
)

func (s State) String() string {
	switch s {
	case StateAttempt:
		return "attempt"
	case StateEvaluate:
		return "evaluate"
	case StateAccept:
		return "accept"
	case StateRefine:
		return "refine"
	case StateGiveUp:
		return "give_up"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Evaluation is the outcome of one attempt.
type Evaluation struct {
	Attempt  int
	Raw      string
	Result   *domain.GenerationResult
	Deficits []Deficit
	Err      error // backend or schema failure; Result is nil when set
}

// Feedback renders what the next attempt must fix, one line per item.
func (e *Evaluation) Feedback() []string {
	if e == nil {
		return nil
	}
	if e.Err != nil {
		return []string{"The response was not a valid curriculum object: " + e.Err.Error()}
	}
	lines := make([]string, 0, len(e.Deficits))
	for _, d := range e.Deficits {
		lines = append(lines, d.String())
	}
	return lines
}

// AttemptFunc performs attempt n. prev is nil on the first attempt.
type AttemptFunc func(ctx context.Context, n int, prev *Evaluation) (string, error)

// Outcome is an accepted generation result.
type Outcome struct {
	Result   *domain.GenerationResult
	Attempts int
	Deficits []Deficit // advisory leftovers, or all leftovers in debug mode
	Fallback bool
	Cause    error // why the fallback was used
}

// DepthError reports a result that never satisfied the depth policy.
type DepthError struct {
	Attempts int
	Deficits []Deficit
}

func (e *DepthError) Error() string {
	parts := make([]string, 0, len(e.Deficits))
	for _, d := range e.Deficits {
		if !d.Advisory {
			parts = append(parts, d.Code)
		}
	}
	return fmt.Sprintf("chapter depth insufficient after %d attempts: %s", e.Attempts, strings.Join(parts, ", "))
}

func (e *DepthError) Unwrap() error { return domain.ErrDepthInsufficient }

// Refiner drives Attempt(n) -> Evaluate -> Accept | Refine(n+1) | GiveUp.
type Refiner struct {
	Policy      Policy
	MaxAttempts int
	Debug       bool

	// Trace records every state entered, for inspection.
	Trace []State
}

// Run executes the state machine until it accepts or gives up.
func (r *Refiner) Run(ctx context.Context, attempt AttemptFunc) (*Outcome, error) {
	maxAttempts := r.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var (
		n     = 1
		state = StateAttempt
		cur   *Evaluation
		best  *Evaluation
	)
	r.Trace = r.Trace[:0]

	for {
		r.Trace = append(r.Trace, state)

		switch state {
		case StateAttempt:
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			raw, err := attempt(ctx, n, cur)
			if err != nil && ctx.Err() != nil {
				return nil, ctx.Err()
			}
			cur = &Evaluation{Attempt: n, Raw: raw, Err: err}
			state = StateEvaluate

		case StateEvaluate:
			r.evaluate(cur)
			if cur.Result != nil {
				best = cur
			}
			state = r.next(cur, n, maxAttempts)

		case StateRefine:
			n++
			state = StateAttempt

		case StateAccept:
			return &Outcome{Result: cur.Result, Attempts: n, Deficits: cur.Deficits}, nil

		case StateGiveUp:
			return r.giveUp(best, cur, n)
		}
	}
}

func (r *Refiner) evaluate(e *Evaluation) {
	if e.Err != nil {
		return
	}
	res, err := Parse(e.Raw, r.Policy.MaxSections)
	if err != nil {
		e.Err = err
		return
	}
	e.Result = res
	e.Deficits = r.Policy.Evaluate(&res.Week1Chapter)
}

func (r *Refiner) next(e *Evaluation, n, maxAttempts int) State {
	if e.Err == nil && len(e.Deficits) == 0 {
		return StateAccept
	}
	if n < maxAttempts {
		return StateRefine
	}
	if e.Err == nil && !HasRequired(e.Deficits) {
		return StateAccept
	}
	return StateGiveUp
}

func (r *Refiner) giveUp(best, last *Evaluation, n int) (*Outcome, error) {
	if best == nil {
		return nil, fmt.Errorf("generation failed after %d attempts: %w", n, last.Err)
	}
	if !HasRequired(best.Deficits) || r.Debug {
		return &Outcome{Result: best.Result, Attempts: n, Deficits: best.Deficits}, nil
	}
	return nil, &DepthError{Attempts: n, Deficits: best.Deficits}
}
