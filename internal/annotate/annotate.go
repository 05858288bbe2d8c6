// Package annotate derives a mood and reflection for journal text by asking a
// text-generation model. Analyze never fails: any problem along the way is
// reported as a Failure and collapsed into fallback values.
package annotate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mindsight/journal/types"
	"github.com/rs/zerolog"
)

const (
	DefaultMood       = "neutral"
	DefaultReflection = "Keep writing to track your journey."

	MissingCredentialReflection = "Unable to generate reflection (API key missing)"
	UnavailableReflection       = "Unable to generate reflection at this time."

	defaultTimeout = 10 * time.Second
)

// Failure is the closed set of reasons an annotation attempt can fall back.
type Failure int

const (
	FailureNone Failure = iota
	FailureMissingCredential
	FailureRequest
	FailureMalformedReply
)

func (f Failure) String() string {
	switch f {
	case FailureNone:
		return "ok"
	case FailureMissingCredential:
		return "missing_credential"
	case FailureRequest:
		return "request_failed"
	case FailureMalformedReply:
		return "malformed_reply"
	default:
		return fmt.Sprintf("failure(%d)", int(f))
	}
}

// Result is the outcome of one annotation attempt.
type Result struct {
	Annotation types.Annotation
	Failure    Failure
	Err        error
}

// Collapse returns the annotation to store: the parsed one on success,
// otherwise the fallback pair for the failure.
func (r Result) Collapse() types.Annotation {
	switch r.Failure {
	case FailureNone:
		return r.Annotation
	case FailureMissingCredential:
		return types.Annotation{Mood: DefaultMood, Reflection: MissingCredentialReflection}
	default:
		return types.Annotation{Mood: DefaultMood, Reflection: UnavailableReflection}
	}
}

// Generator sends a prompt to a text-generation model and returns its reply.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ErrEmptyReply is returned by generators when the model produced no candidate.
var ErrEmptyReply = errors.New("empty reply")

// Observer is notified of every attempt's outcome.
type Observer func(f Failure, elapsed time.Duration)

// Analyzer produces annotations for journal text.
type Analyzer struct {
	generator Generator
	timeout   time.Duration
	logger    zerolog.Logger
	observe   Observer
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithTimeout bounds each generator call.
func WithTimeout(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithLogger sets the logger used to report fallbacks.
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

// WithObserver registers a callback for attempt outcomes, e.g. metrics.
func WithObserver(observe Observer) Option {
	return func(a *Analyzer) {
		a.observe = observe
	}
}

// NewAnalyzer constructs an Analyzer. A nil generator means no credential is
// configured and every attempt falls back immediately.
func NewAnalyzer(generator Generator, opts ...Option) *Analyzer {
	a := &Analyzer{
		generator: generator,
		timeout:   defaultTimeout,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze returns the annotation for text, substituting fallback values on
// any failure.
func (a *Analyzer) Analyze(ctx context.Context, text string) types.Annotation {
	return a.Attempt(ctx, text).Collapse()
}

// Attempt performs a single annotation call without collapsing failures.
func (a *Analyzer) Attempt(ctx context.Context, text string) Result {
	start := time.Now()
	result := a.attempt(ctx, text)
	if a.observe != nil {
		a.observe(result.Failure, time.Since(start))
	}
	switch result.Failure {
	case FailureNone:
	case FailureMissingCredential:
		a.logger.Warn().Msg("annotation api key not configured")
	default:
		a.logger.Error().Err(result.Err).Str("failure", result.Failure.String()).Msg("annotation failed")
	}
	return result
}

func (a *Analyzer) attempt(ctx context.Context, text string) (result Result) {
	if a.generator == nil {
		return Result{Failure: FailureMissingCredential}
	}

	defer func() {
		if rec := recover(); rec != nil {
			result = Result{Failure: FailureMalformedReply, Err: fmt.Errorf("panic while annotating: %v", rec)}
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	reply, err := a.generator.Generate(ctx, BuildPrompt(text))
	if err != nil {
		if errors.Is(err, ErrEmptyReply) {
			return Result{Failure: FailureMalformedReply, Err: err}
		}
		return Result{Failure: FailureRequest, Err: err}
	}
	// A blank reply still parses; both fields keep their defaults.
	return Result{Annotation: ParseReply(reply)}
}

// BuildPrompt embeds text in the fixed instruction template.
func BuildPrompt(text string) string {
	return "Analyze this journal entry and provide:\n" +
		"1. Mood: Describe the emotional state in 2-3 words (e.g., \"stressed but hopeful\", \"happy and excited\")\n" +
		"2. Reflection: Brief supportive reflection and recommendation if applicable (1-2 sentences maximum)\n\n" +
		"Journal entry: " + text + "\n\n" +
		"Format your response exactly as:\n" +
		"MOOD: <mood here>\n" +
		"REFLECTION: <reflection here>"
}

// ParseReply extracts the MOOD and REFLECTION lines from a model reply.
// Labels match case-insensitively; a missing or empty label keeps its default.
func ParseReply(reply string) types.Annotation {
	annotation := types.Annotation{Mood: DefaultMood, Reflection: DefaultReflection}
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "MOOD:"):
			if value := valueAfterColon(line); value != "" {
				annotation.Mood = value
			}
		case strings.HasPrefix(upper, "REFLECTION:"):
			if value := valueAfterColon(line); value != "" {
				annotation.Reflection = value
			}
		}
	}
	return annotation
}

func valueAfterColon(line string) string {
	_, value, _ := strings.Cut(line, ":")
	return strings.TrimSpace(value)
}
