package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	oracleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sacel",
		Subsystem: "oracle",
		Name:      "evaluation_duration_seconds",
		Help:      "Duration of rubric criteria evaluation requests",
	}, []string{"model"})

	oracleFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sacel",
		Subsystem: "oracle",
		Name:      "evaluation_failures_total",
		Help:      "Number of rubric criteria evaluation failures",
	}, []string{"model"})
)

// ErrEmptyCompletion is returned when the provider answers without any choice.
var ErrEmptyCompletion = errors.New("oracle returned no choices")

// OpenAIConfig defines configuration options for the OpenAI oracle.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIOracle implements Oracle against the OpenAI chat completion API.
type OpenAIOracle struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIOracle builds a new oracle using the provided configuration.
func NewOpenAIOracle(cfg OpenAIConfig) (*OpenAIOracle, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 400
	}

	if cfg.Temperature == 0 {
		cfg.Temperature = 0.3
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &OpenAIOracle{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/sacel-api/pkg/ai/openai"),
		logger: logger.With().Str("component", "openai_oracle").Logger(),
	}, nil
}

// Evaluate sends one criteria prompt to OpenAI and returns the raw reply.
func (o *OpenAIOracle) Evaluate(parent context.Context, prompt CriteriaPrompt) (Completion, error) {
	ctx, span := o.tracer.Start(parent, "openai.evaluate", trace.WithAttributes(
		attribute.String("model", o.cfg.Model),
		attribute.String("criteria", prompt.CriteriaName),
	))
	defer span.End()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       o.cfg.Model,
		MaxTokens:   o.cfg.MaxTokens,
		Temperature: o.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: SystemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: BuildUserPrompt(prompt),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := o.client.CreateChatCompletion(ctx, request)
	oracleDuration.WithLabelValues(o.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		return Completion{}, o.fail(span, fmt.Errorf("openai evaluate: %w", err))
	}

	if len(resp.Choices) == 0 {
		return Completion{}, o.fail(span, ErrEmptyCompletion)
	}

	return Completion{
		Content:          strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

func (o *OpenAIOracle) fail(span trace.Span, err error) error {
	err = fmt.Errorf("%w: %w", ErrExternalService, err)
	oracleFailures.WithLabelValues(o.cfg.Model).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	o.logger.Warn().Err(err).Msg("oracle evaluation failed")
	return err
}

// SystemPrompt instructs the model to answer with the JSON shape the grader validates.
func SystemPrompt() string {
	return "You are an experienced teacher grading student work against a rubric. Respond with a JSON object " +
		`containing "level" (one of excellent, good, satisfactory, needs_improvement), "score" (a number inside the ` +
		`chosen level's point range), "feedback" (one or two sentences) and "suggestions" (an array of short strings).`
}

// BuildUserPrompt renders the criteria, its bands and the submission text.
func BuildUserPrompt(prompt CriteriaPrompt) string {
	builder := strings.Builder{}
	builder.WriteString("# Rubric\n")
	builder.WriteString(prompt.RubricTitle)
	builder.WriteString("\n\n## Criteria\n")
	builder.WriteString(fmt.Sprintf("%s (%d points): %s", prompt.CriteriaName, prompt.Points, prompt.CriteriaDescription))
	builder.WriteString("\n\n## Performance Levels\n")
	for _, band := range prompt.Bands {
		builder.WriteString(fmt.Sprintf("- %s (%d-%d points): %s\n", band.Level, band.Min, band.Max, band.Description))
	}
	builder.WriteString("\n## Submission\n")
	builder.WriteString(prompt.SubmissionText)
	builder.WriteString("\n\nReturn JSON.")
	return builder.String()
}
