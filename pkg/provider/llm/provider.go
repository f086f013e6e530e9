// Package llm defines the Provider interface for the text-generation backends
// Tala speaks through.
//
// A provider wraps a remote or local model API (OpenAI, Anthropic, or a local
// Ollama instance serving phi4-mini) and exposes one blocking and one
// streaming completion call. Implementors must be safe for concurrent use.
// Channels returned by StreamCompletion must be closed by the implementation
// when the stream ends or when the supplied context is cancelled.
package llm

import "context"

// FinishReasonError is the FinishReason carried by a chunk that reports a
// transport or backend failure occurring after the stream was opened.
const FinishReasonError = "error"

// Message is a single message in a conversation history.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// CompletionRequest carries everything the model needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation history. The last message is
	// typically from the "user" role and drives the response.
	Messages []Message

	// SystemPrompt is a high-priority instruction injected before the
	// conversation history. Providers without a dedicated system slot
	// prepend it as a "system"-role message.
	SystemPrompt string

	// Temperature controls output randomness in [0.0, 2.0]. Zero means use
	// the provider default.
	Temperature float64

	// MaxTokens caps completion length. Zero means provider default.
	MaxTokens int
}

// Chunk is a single text fragment emitted by a streaming completion.
type Chunk struct {
	// Text is the incremental content of this chunk. May be empty on the
	// final chunk.
	Text string

	// FinishReason is set on the final chunk and indicates why generation
	// stopped: "stop" (natural end), "length" (MaxTokens reached),
	// [FinishReasonError] (backend failure), or "" for non-final chunks.
	// Any non-empty value is the explicit done marker.
	FinishReason string
}

// CompletionResponse is returned by the non-streaming Complete method.
type CompletionResponse struct {
	// Content is the full text of the assistant's reply.
	Content string
}

// Provider is the abstraction over any text-generation backend.
//
// Implementations must propagate context cancellation promptly: when ctx is
// cancelled a method must return (or close its channel) as quickly as
// possible.
type Provider interface {
	// StreamCompletion sends req to the model and returns a read-only channel
	// that emits Chunk values in the order the transport delivers them. The
	// channel is closed when generation finishes or ctx is cancelled; callers
	// must drain it to avoid goroutine leaks.
	//
	// Errors occurring after the channel is opened surface as a Chunk with
	// FinishReason [FinishReasonError]; the initial error return is non-nil
	// only for failures that prevent the stream from starting.
	//
	// The returned channel is never nil when error is nil.
	StreamCompletion(ctx context.Context, req CompletionRequest) (<-chan Chunk, error)

	// Complete sends req to the model and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
