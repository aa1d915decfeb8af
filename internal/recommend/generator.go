package recommend

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"example.com/fitness/internal/domain"
	"example.com/fitness/internal/events"
	"example.com/fitness/internal/gemini"
)

// CompletionClient is the single-attempt AI endpoint adapter.
type CompletionClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// GenerationError is the terminal failure for one event: the attempt budget
// is exhausted or the last error was not worth retrying. It carries the last
// underlying cause for diagnostics and is never retried further.
type GenerationError struct {
	ActivityID string
	Attempts   int
	Err        error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("recommendation generation failed for activity=%s after %d attempt(s): %v", e.ActivityID, e.Attempts, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// RetryState is the observable per-attempt state of one generation run.
type RetryState struct {
	Attempt   int // 1-based.
	NextDelay time.Duration
	Terminal  bool
}

type runState int

const (
	stateAttempting runState = iota
	stateSucceeded
	stateFailedTerminal
)

// GeneratorConfig tunes the bounded retry loop.
type GeneratorConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
}

func (c GeneratorConfig) withDefaults() GeneratorConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 15 * time.Second
	}
	return c
}

// GeneratorOption configures optional behaviour for the Generator.
type GeneratorOption func(*Generator)

// WithLogger overrides the logger used to report attempts.
func WithLogger(logger *log.Logger) GeneratorOption {
	return func(g *Generator) {
		g.logger = logger
	}
}

// WithSleep overrides the backoff wait, letting tests observe delays without
// waiting them out.
func WithSleep(sleep func(context.Context, time.Duration) error) GeneratorOption {
	return func(g *Generator) {
		g.sleep = sleep
	}
}

// Generator composes prompt construction, the endpoint call, and response
// parsing into one retryable unit. The external API is metered, so retries
// are capped: unbounded retry against a paid endpoint is a non-starter.
type Generator struct {
	client CompletionClient
	cfg    GeneratorConfig
	sleep  func(context.Context, time.Duration) error
	logger *log.Logger
}

// NewGenerator constructs a Generator with the provided client and config.
func NewGenerator(client CompletionClient, cfg GeneratorConfig, opts ...GeneratorOption) *Generator {
	g := &Generator{
		client: client,
		cfg:    cfg.withDefaults(),
		sleep:  sleepContext,
		logger: log.New(log.Writer(), "[generator] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate produces a recommendation for the tracked activity, retrying
// transient failures with exponential backoff up to the attempt cap. The
// backoff wait suspends only the worker handling this event.
func (g *Generator) Generate(ctx context.Context, activity events.ActivityTracked) (domain.Recommendation, error) {
	prompt := BuildPrompt(activity)

	state := stateAttempting
	retry := RetryState{Attempt: 1}
	var (
		rec     domain.Recommendation
		lastErr error
	)

	for state == stateAttempting {
		recordAttempt()
		raw, err := g.client.Complete(ctx, prompt)
		if err == nil {
			rec, err = g.parse(raw, activity)
		}
		if err == nil {
			state = stateSucceeded
			break
		}
		lastErr = err

		retry.Terminal = !retryable(err) || retry.Attempt >= g.cfg.MaxAttempts
		if retry.Terminal {
			state = stateFailedTerminal
			break
		}

		retry.NextDelay = g.backoffDelay(retry.Attempt)
		g.logger.Printf("attempt %d/%d failed for activity=%s, retrying in %s: %v",
			retry.Attempt, g.cfg.MaxAttempts, activity.ActivityID, retry.NextDelay, err)
		recordRetry()

		if sleepErr := g.sleep(ctx, retry.NextDelay); sleepErr != nil {
			return domain.Recommendation{}, fmt.Errorf("backoff interrupted: %w (last error: %v)", sleepErr, lastErr)
		}
		retry.Attempt++
	}

	if state == stateSucceeded {
		recordGenerated()
		return rec, nil
	}

	recordTerminalFailure(failureReason(lastErr, retry.Attempt, g.cfg.MaxAttempts))
	return domain.Recommendation{}, &GenerationError{
		ActivityID: activity.ActivityID,
		Attempts:   retry.Attempt,
		Err:        lastErr,
	}
}

func (g *Generator) parse(raw string, activity events.ActivityTracked) (domain.Recommendation, error) {
	rec, err := ParseResponse(raw, activity)
	if err != nil {
		recordParseFailure()
		return domain.Recommendation{}, err
	}
	return rec, nil
}

// retryable classifies the attempt error. Parse failures are terminal (the
// upstream already answered; an identical reply costs another paid call) and
// so are request-shape rejections. Everything else is assumed transient.
func retryable(err error) bool {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return false
	}
	var endpointErr *gemini.EndpointError
	if errors.As(err, &endpointErr) {
		return !endpointErr.BadRequest()
	}
	return true
}

// backoffDelay returns baseDelay * multiplier^(attempt-1) capped at maxDelay.
func (g *Generator) backoffDelay(attempt int) time.Duration {
	delay := time.Duration(float64(g.cfg.BaseDelay) * math.Pow(g.cfg.Multiplier, float64(attempt-1)))
	if delay > g.cfg.MaxDelay || delay <= 0 {
		delay = g.cfg.MaxDelay
	}
	return delay
}

func failureReason(err error, attempts, maxAttempts int) string {
	if attempts >= maxAttempts && retryable(err) {
		return "retries_exhausted"
	}
	return "non_retryable"
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
