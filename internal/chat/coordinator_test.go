package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	metricnoop "go.opentelemetry.io/otel/metric/noop"

	"github.com/sinagtala/tala/internal/observe"
	"github.com/sinagtala/tala/pkg/provider/llm"
	llmmock "github.com/sinagtala/tala/pkg/provider/llm/mock"
	storemock "github.com/sinagtala/tala/pkg/store/mock"
	"github.com/sinagtala/tala/pkg/wellness"
)

var testTime = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func testClock() wellness.Clock {
	return wellness.ClockFunc(func() time.Time { return testTime })
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(metricnoop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func newTestCoordinator(t *testing.T, st *storemock.Store, p llm.Provider) *Coordinator {
	t.Helper()
	st.Now = func() time.Time { return testTime }
	return NewCoordinator(st, p, testClock(), WithMetrics(testMetrics(t)))
}

func TestSendTurnStreamRelaysInOrderAndPersists(t *testing.T) {
	st := &storemock.Store{}
	p := &llmmock.Provider{
		StreamChunks: []llm.Chunk{
			{Text: "Hel"},
			{Text: "lo"},
			{FinishReason: "stop"},
		},
	}
	c := newTestCoordinator(t, st, p)

	var got []string
	result, err := c.SendTurn(context.Background(), "user-1", "hi there", nil, func(text string) {
		got = append(got, text)
	})
	if err != nil {
		t.Fatalf("SendTurn: %v", err)
	}

	if len(got) != 2 || got[0] != "Hel" || got[1] != "lo" {
		t.Errorf("relayed chunks = %q, want [Hel lo]", got)
	}
	if result.Reply != "Hello" {
		t.Errorf("Reply = %q, want %q", result.Reply, "Hello")
	}

	msgs := st.Messages()
	if len(msgs) != 2 {
		t.Fatalf("stored %d messages, want 2", len(msgs))
	}
	if msgs[0].Sender != wellness.SenderUser || msgs[0].Content != "hi there" {
		t.Errorf("first message = %+v, want user message", msgs[0])
	}
	if msgs[1].Sender != wellness.SenderTala || msgs[1].Content != "Hello" {
		t.Errorf("second message = %+v, want assistant reply", msgs[1])
	}
	if result.AssistantMessage.ID != msgs[1].ID {
		t.Errorf("AssistantMessage.ID = %d, want %d", result.AssistantMessage.ID, msgs[1].ID)
	}
}

func TestSendTurnStreamWithoutDoneMarkerConverges(t *testing.T) {
	st := &storemock.Store{}
	p := &llmmock.Provider{
		StreamChunks:       []llm.Chunk{{Text: "partial "}, {Text: "answer"}},
		CloseWithoutFinish: true,
	}
	c := newTestCoordinator(t, st, p)

	result, err := c.SendTurn(context.Background(), "user-1", "hi", nil, func(string) {})
	if err != nil {
		t.Fatalf("SendTurn: %v", err)
	}
	if result.Reply != "partial answer" {
		t.Errorf("Reply = %q, want %q", result.Reply, "partial answer")
	}
	if msgs := st.Messages(); len(msgs) != 2 || msgs[1].Content != "partial answer" {
		t.Errorf("stored messages = %+v, want user message plus full reply", msgs)
	}
}

func TestSendTurnStreamErrorKeepsUserMessage(t *testing.T) {
	st := &storemock.Store{}
	p := &llmmock.Provider{
		StreamChunks: []llm.Chunk{
			{Text: "I hear"},
			{Text: " backend exploded", FinishReason: llm.FinishReasonError},
		},
	}
	c := newTestCoordinator(t, st, p)

	var got []string
	result, err := c.SendTurn(context.Background(), "user-1", "hi", nil, func(text string) {
		got = append(got, text)
	})
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("err = %v, want ErrGeneration", err)
	}

	// The error chunk's text is diagnostic, never relayed or accumulated.
	if len(got) != 1 || got[0] != "I hear" {
		t.Errorf("relayed chunks = %q, want only the pre-error fragment", got)
	}
	if result.Reply != "I hear" {
		t.Errorf("Reply = %q, want partial text", result.Reply)
	}

	msgs := st.Messages()
	if len(msgs) != 2 {
		t.Fatalf("stored %d messages, want user message plus partial reply", len(msgs))
	}
	if msgs[0].Sender != wellness.SenderUser {
		t.Errorf("first message sender = %q, want user", msgs[0].Sender)
	}
	if msgs[1].Sender != wellness.SenderTala || msgs[1].Content != "I hear" {
		t.Errorf("second message = %+v, want best-effort partial reply", msgs[1])
	}
}

func TestSendTurnStreamOpenFailure(t *testing.T) {
	st := &storemock.Store{}
	p := &llmmock.Provider{StreamErr: errors.New("connection refused")}
	c := newTestCoordinator(t, st, p)

	_, err := c.SendTurn(context.Background(), "user-1", "hi", nil, func(string) {})
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("err = %v, want ErrGeneration", err)
	}

	// User message survives even though generation never started.
	msgs := st.Messages()
	if len(msgs) != 1 || msgs[0].Sender != wellness.SenderUser {
		t.Errorf("stored messages = %+v, want only the user message", msgs)
	}
}

func TestSendTurnBlocking(t *testing.T) {
	st := &storemock.Store{}
	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "That sounds hard."},
	}
	c := newTestCoordinator(t, st, p)

	result, err := c.SendTurn(context.Background(), "user-1", "rough day", nil, nil)
	if err != nil {
		t.Fatalf("SendTurn: %v", err)
	}
	if result.Reply != "That sounds hard." {
		t.Errorf("Reply = %q", result.Reply)
	}
	if p.CompleteCallCount() != 1 || p.StreamCallCount() != 0 {
		t.Errorf("calls: complete=%d stream=%d, want blocking mode only", p.CompleteCallCount(), p.StreamCallCount())
	}
}

func TestSendTurnPersistsMoodWithMessageAsNote(t *testing.T) {
	st := &storemock.Store{}
	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "ok"}}
	c := newTestCoordinator(t, st, p)

	mood := wellness.MoodAnxious
	result, err := c.SendTurn(context.Background(), "user-1", "big exam tomorrow", &mood, nil)
	if err != nil {
		t.Fatalf("SendTurn: %v", err)
	}
	if result.MoodEntry == nil {
		t.Fatal("MoodEntry = nil, want persisted entry")
	}

	entries := st.Entries()
	if len(entries) != 1 {
		t.Fatalf("stored %d entries, want 1", len(entries))
	}
	if entries[0].Mood != wellness.MoodAnxious || entries[0].Note != "big exam tomorrow" {
		t.Errorf("entry = %+v, want anxious with message as note", entries[0])
	}
}

func TestSendTurnNoMoodNoEntry(t *testing.T) {
	st := &storemock.Store{}
	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "ok"}}
	c := newTestCoordinator(t, st, p)

	if _, err := c.SendTurn(context.Background(), "user-1", "just chatting", nil, nil); err != nil {
		t.Fatalf("SendTurn: %v", err)
	}
	if entries := st.Entries(); len(entries) != 0 {
		t.Errorf("stored %d entries, want none", len(entries))
	}
}

func TestSendTurnEmptyMessage(t *testing.T) {
	st := &storemock.Store{}
	c := newTestCoordinator(t, st, &llmmock.Provider{})

	if _, err := c.SendTurn(context.Background(), "user-1", "   ", nil, nil); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("err = %v, want ErrEmptyMessage", err)
	}
	if msgs := st.Messages(); len(msgs) != 0 {
		t.Errorf("stored %d messages, want none", len(msgs))
	}
}

func TestSendTurnInvalidMood(t *testing.T) {
	st := &storemock.Store{}
	c := newTestCoordinator(t, st, &llmmock.Provider{})

	bad := wellness.Mood("ecstatic")
	if _, err := c.SendTurn(context.Background(), "user-1", "hello", &bad, nil); !errors.Is(err, wellness.ErrInvalidMood) {
		t.Fatalf("err = %v, want ErrInvalidMood", err)
	}
	if msgs := st.Messages(); len(msgs) != 0 {
		t.Errorf("stored %d messages, want none before validation passes", len(msgs))
	}
}

func TestSendTurnUserMessagePersistFailure(t *testing.T) {
	st := &storemock.Store{SaveMessageErr: errors.New("disk full")}
	p := &llmmock.Provider{}
	c := newTestCoordinator(t, st, p)

	_, err := c.SendTurn(context.Background(), "user-1", "hi", nil, nil)
	if err == nil || errors.Is(err, ErrGeneration) {
		t.Fatalf("err = %v, want plain store error", err)
	}
	if p.CompleteCallCount() != 0 {
		t.Error("generation ran despite user-message persist failure")
	}
}

func TestSendTurnCancellationPersistsPartialReply(t *testing.T) {
	st := &storemock.Store{}
	ctx, cancel := context.WithCancel(context.Background())

	p := &llmmock.Provider{
		StreamChunks: []llm.Chunk{
			{Text: "slow "},
			{Text: "reply"},
			{FinishReason: "stop"},
		},
	}
	c := newTestCoordinator(t, st, p)

	// Cancel after the first fragment arrives. Remaining chunks must not be
	// relayed, and the accumulated prefix must still be persisted.
	var got []string
	result, err := c.SendTurn(ctx, "user-1", "hi", nil, func(text string) {
		got = append(got, text)
		cancel()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(got) != 1 || got[0] != "slow " {
		t.Errorf("relayed chunks = %q, want only the first fragment", got)
	}
	if result.Reply != "slow " {
		t.Errorf("Reply = %q, want accumulated prefix", result.Reply)
	}

	msgs := st.Messages()
	if len(msgs) != 2 || msgs[1].Content != "slow " {
		t.Errorf("stored messages = %+v, want user message plus partial reply", msgs)
	}
}

func TestSendTurnSystemPromptCarriesContext(t *testing.T) {
	st := &storemock.Store{}
	seedEntry(t, st, "user-1", wellness.MoodHopeful, testTime.Add(-2*time.Hour))
	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "ok"}}
	c := newTestCoordinator(t, st, p)

	mood := wellness.MoodCalm
	if _, err := c.SendTurn(context.Background(), "user-1", "doing fine", &mood, nil); err != nil {
		t.Fatalf("SendTurn: %v", err)
	}

	req := p.CompleteCalls[0].Req
	if !strings.Contains(req.SystemPrompt, "Tala") {
		t.Error("system prompt missing persona")
	}
	if !strings.Contains(req.SystemPrompt, `"current_mood":"Calm"`) {
		t.Errorf("system prompt missing current mood: %s", req.SystemPrompt)
	}
	if !strings.Contains(req.SystemPrompt, `"mood":"Hopeful"`) {
		t.Errorf("system prompt missing recent mood: %s", req.SystemPrompt)
	}
	if len(req.Messages) != 1 || req.Messages[0].Content != "doing fine" {
		t.Errorf("messages = %+v, want single user message", req.Messages)
	}
}

func seedEntry(t *testing.T, st *storemock.Store, userID string, mood wellness.Mood, ts time.Time) {
	t.Helper()
	if _, err := st.SaveEntry(context.Background(), wellness.MoodEntry{
		UserID:    userID,
		Mood:      mood,
		Timestamp: ts,
	}); err != nil {
		t.Fatalf("seed entry: %v", err)
	}
}
