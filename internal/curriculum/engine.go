package curriculum

import (
	"context"
	"errors"
	"time"

	"github.com/timmy/coursegen/internal/domain"
	"github.com/timmy/coursegen/internal/logger"
	"github.com/timmy/coursegen/internal/prompts"
	"github.com/timmy/coursegen/internal/service"
)

// Engine generates curricula through a TextGenerator.
type Engine struct {
	llm         service.TextGenerator
	policy      Policy
	maxAttempts int
}

// NewEngine creates an engine. maxAttempts below 1 means 3.
func NewEngine(llm service.TextGenerator, policy Policy, maxAttempts int) *Engine {
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	return &Engine{llm: llm, policy: policy, maxAttempts: maxAttempts}
}

// Generate runs the refinement loop. It fails with a *DepthError when the
// chapter never meets the depth policy outside debug mode, and with an error
// wrapping domain.ErrBackendUnavailable or domain.ErrSchemaInvalid when no
// attempt produced a valid object.
func (e *Engine) Generate(ctx context.Context, in *domain.GenerationInput) (*Outcome, error) {
	prompt := prompts.CurriculumUserPrompt(prompts.CurriculumRequest{
		Subject:     in.Subject,
		Passion:     in.Passion,
		AgeRange:    in.AgeRange,
		Likes:       in.PromptLikes(),
		Notes:       in.Notes,
		MinSections: e.policy.MinSections,
		MaxSections: e.policy.MaxSections,
		MinWords:    e.policy.MinTotalWords,
		MinSection:  e.policy.MinWordsPerSection,
		MinRefs:     e.policy.MinReferences,
	})

	refiner := &Refiner{Policy: e.policy, MaxAttempts: e.maxAttempts, Debug: in.Debug}
	return refiner.Run(ctx, func(ctx context.Context, n int, prev *Evaluation) (string, error) {
		user := prompt
		if prev != nil && (prev.Raw != "" || prev.Result != nil) {
			user = prompts.RefinementPrompt(prompt, prev.Raw, prev.Feedback())
		}

		start := time.Now()
		raw, err := e.llm.Complete(ctx, prompts.CurriculumSystemPrompt, user, true)
		entry := logger.With(logger.Fields{}).WithAttempt(n).WithDuration(time.Since(start).Milliseconds())
		if err != nil {
			entry.Warn(ctx, "[curriculum] attempt failed: %v", err)
			return "", err
		}
		entry.WithSize(len(raw)).Debug(ctx, "[curriculum] attempt returned")
		return raw, nil
	})
}

// GenerateWithFallback never fails: any error from Generate switches to the
// locally synthesized curriculum.
func (e *Engine) GenerateWithFallback(ctx context.Context, in *domain.GenerationInput) *Outcome {
	out, err := e.Generate(ctx, in)
	if err == nil {
		if len(out.Deficits) > 0 {
			logger.CtxInfo(ctx, "[curriculum] accepted after %d attempts with %d open deficits", out.Attempts, len(out.Deficits))
		}
		return out
	}

	logger.FromContext(ctx).WithError(err).Warn("[curriculum] falling back to local synthesis")
	attempts := e.maxAttempts
	var depthErr *DepthError
	if errors.As(err, &depthErr) {
		attempts = depthErr.Attempts
	}
	return &Outcome{
		Result:   BuildLocal(in),
		Attempts: attempts,
		Fallback: true,
		Cause:    err,
	}
}
