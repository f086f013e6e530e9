package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/sinagtala/tala/internal/observe"
	"github.com/sinagtala/tala/pkg/provider/llm"
	"github.com/sinagtala/tala/pkg/store"
	"github.com/sinagtala/tala/pkg/wellness"
)

var (
	// ErrEmptyMessage is returned when a turn is started with no message text.
	ErrEmptyMessage = errors.New("chat: message must not be empty")

	// ErrGeneration marks a turn that failed inside the generation backend
	// after the user's message was already persisted. Check with errors.Is;
	// persistence failures carry store errors instead.
	ErrGeneration = errors.New("chat: generation failed")
)

// defaultTemperature matches the tone Tala is tuned for: warm but not erratic.
const defaultTemperature = 0.7

// ChunkFunc receives one stream fragment. The Coordinator invokes it from a
// single goroutine, strictly in arrival order, and never after SendTurn
// returns.
type ChunkFunc func(text string)

// TurnResult is the outcome of a completed turn.
type TurnResult struct {
	// TurnID correlates this turn across logs and traces.
	TurnID string

	// UserMessage is the persisted user message.
	UserMessage wellness.ChatMessage

	// MoodEntry is the persisted mood entry, or nil when the turn carried no
	// mood.
	MoodEntry *wellness.MoodEntry

	// AssistantMessage is the persisted assistant reply. Zero when the reply
	// was empty or its persistence failed.
	AssistantMessage wellness.ChatMessage

	// Reply is the full accumulated assistant text, also available when
	// persistence of the assistant message failed.
	Reply string
}

// Coordinator runs conversational turns: it persists the inbound message and
// optional mood entry, assembles context, drives the generation backend in
// streaming or blocking mode, and persists the reply. Safe for concurrent use.
type Coordinator struct {
	store       store.Store
	provider    llm.Provider
	assembler   *Assembler
	clock       wellness.Clock
	metrics     *observe.Metrics
	persona     string
	temperature float64
	maxTokens   int
}

// CoordinatorOption customises a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithPersona overrides the system preamble establishing Tala's voice.
func WithPersona(persona string) CoordinatorOption {
	return func(c *Coordinator) { c.persona = persona }
}

// WithTemperature overrides the sampling temperature passed to the backend.
func WithTemperature(t float64) CoordinatorOption {
	return func(c *Coordinator) { c.temperature = t }
}

// WithMaxTokens caps the backend completion length. Zero means backend
// default.
func WithMaxTokens(n int) CoordinatorOption {
	return func(c *Coordinator) { c.maxTokens = n }
}

// WithMetrics overrides the metrics instance (tests pass an isolated one).
func WithMetrics(m *observe.Metrics) CoordinatorOption {
	return func(c *Coordinator) { c.metrics = m }
}

// NewCoordinator creates a Coordinator persisting to st and generating
// through p. clock supplies the "today" boundary for context assembly.
func NewCoordinator(st store.Store, p llm.Provider, clock wellness.Clock, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:       st,
		provider:    p,
		assembler:   NewAssembler(st, clock),
		clock:       clock,
		persona:     DefaultPersona,
		temperature: defaultTemperature,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// SendTurn runs one conversational turn for userID.
//
// The user's message is persisted first, then the optional mood entry (with
// the message text as its note), then the backend generates a reply against
// the assembled context. With a non-nil onChunk the backend is streamed and
// each fragment is relayed in arrival order; otherwise a single blocking
// completion is made.
//
// Once the user's message is persisted it is never rolled back: a later
// failure returns an error wrapping [ErrGeneration] (backend failures) or the
// store error (persistence failures) while the already-written rows remain.
// On generation failure or context cancellation mid-stream, any accumulated
// partial reply is persisted best-effort before the error is returned.
func (c *Coordinator) SendTurn(ctx context.Context, userID, message string, currentMood *wellness.Mood, onChunk ChunkFunc) (TurnResult, error) {
	if strings.TrimSpace(message) == "" {
		return TurnResult{}, ErrEmptyMessage
	}
	if currentMood != nil && !currentMood.IsValid() {
		return TurnResult{}, fmt.Errorf("%w: %q", wellness.ErrInvalidMood, string(*currentMood))
	}

	mode := "blocking"
	if onChunk != nil {
		mode = "stream"
	}

	turnID := uuid.NewString()
	ctx, span := observe.StartSpan(ctx, "chat.turn",
		trace.WithAttributes(
			attribute.String("turn.id", turnID),
			attribute.String("turn.mode", mode),
		),
	)
	defer span.End()
	log := observe.Logger(ctx).With("turn_id", turnID, "user_id", userID, "mode", mode)

	c.metrics.ActiveTurns.Add(ctx, 1)
	defer c.metrics.ActiveTurns.Add(ctx, -1)

	result := TurnResult{TurnID: turnID}

	userMsg, err := c.store.SaveMessage(ctx, wellness.ChatMessage{
		UserID:  userID,
		Content: message,
		Sender:  wellness.SenderUser,
	})
	if err != nil {
		c.metrics.RecordStoreError(ctx, "save_user_message")
		c.metrics.RecordTurn(ctx, mode, "store_error")
		return TurnResult{}, fmt.Errorf("chat: persist user message: %w", err)
	}
	result.UserMessage = userMsg

	if currentMood != nil {
		entry, err := c.store.SaveEntry(ctx, wellness.MoodEntry{
			UserID: userID,
			Mood:   *currentMood,
			Note:   message,
		})
		if err != nil {
			c.metrics.RecordStoreError(ctx, "save_mood_entry")
			c.metrics.RecordTurn(ctx, mode, "store_error")
			return result, fmt.Errorf("chat: persist mood entry: %w", err)
		}
		result.MoodEntry = &entry
	}

	bundle, err := c.assembler.Assemble(ctx, userID)
	if err != nil {
		c.metrics.RecordTurn(ctx, mode, "context_error")
		return result, err
	}

	req := llm.CompletionRequest{
		Messages:     []llm.Message{{Role: "user", Content: message}},
		SystemPrompt: buildSystemPrompt(c.persona, bundle, currentMood),
		Temperature:  c.temperature,
		MaxTokens:    c.maxTokens,
	}

	start := c.clock.Now()
	var reply string
	var genErr error
	if onChunk != nil {
		reply, genErr = c.streamReply(ctx, req, onChunk)
	} else {
		reply, genErr = c.blockingReply(ctx, req)
	}
	c.metrics.GenerationDuration.Record(ctx, c.clock.Now().Sub(start).Seconds(),
		metric.WithAttributes(attribute.String("mode", mode)))

	result.Reply = reply

	if genErr != nil {
		// The turn failed mid-generation. Keep whatever text already reached
		// the caller: persist it best-effort on a context that survives
		// cancellation, and report the generation error regardless.
		if reply != "" {
			persistCtx := context.WithoutCancel(ctx)
			saved, saveErr := c.store.SaveMessage(persistCtx, wellness.ChatMessage{
				UserID:  userID,
				Content: reply,
				Sender:  wellness.SenderTala,
			})
			if saveErr != nil {
				c.metrics.RecordStoreError(persistCtx, "save_partial_reply")
				log.Warn("failed to persist partial reply", "error", saveErr)
			} else {
				result.AssistantMessage = saved
			}
		}
		c.metrics.RecordTurn(ctx, mode, "generation_error")
		log.Error("turn failed during generation", "error", genErr)
		return result, genErr
	}

	if reply != "" {
		saved, err := c.store.SaveMessage(ctx, wellness.ChatMessage{
			UserID:  userID,
			Content: reply,
			Sender:  wellness.SenderTala,
		})
		if err != nil {
			c.metrics.RecordStoreError(ctx, "save_reply")
			c.metrics.RecordTurn(ctx, mode, "store_error")
			return result, fmt.Errorf("chat: persist reply: %w", err)
		}
		result.AssistantMessage = saved
	}

	c.metrics.RecordTurn(ctx, mode, "ok")
	log.Info("turn completed", "reply_chars", len(reply), "duration", time.Since(start))
	return result, nil
}

// streamReply drives a streaming completion, relaying each fragment through
// onChunk in arrival order while accumulating the full text. It returns the
// accumulated text even alongside an error.
func (c *Coordinator) streamReply(ctx context.Context, req llm.CompletionRequest, onChunk ChunkFunc) (string, error) {
	chunks, err := c.provider.StreamCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	var sb strings.Builder
relay:
	for {
		// Checked before each receive so cancellation wins over a buffered
		// chunk. The provider observes the same ctx and closes the channel,
		// releasing the upstream connection.
		if err := ctx.Err(); err != nil {
			return sb.String(), err
		}
		select {
		case <-ctx.Done():
			return sb.String(), ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				// Transport ended without an explicit done marker. Treat the
				// accumulated text as the complete reply.
				break relay
			}
			if chunk.FinishReason == llm.FinishReasonError {
				return sb.String(), fmt.Errorf("%w: %s", ErrGeneration, chunk.Text)
			}
			if chunk.Text != "" {
				sb.WriteString(chunk.Text)
				onChunk(chunk.Text)
				c.metrics.TurnChunks.Add(ctx, 1)
			}
			if chunk.FinishReason != "" {
				break relay
			}
		}
	}
	return sb.String(), nil
}

// blockingReply makes a single non-streaming completion.
func (c *Coordinator) blockingReply(ctx context.Context, req llm.CompletionRequest) (string, error) {
	resp, err := c.provider.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	return resp.Content, nil
}
