package answer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/b3ngr33n/docuchat-go/internal/chat"
	"github.com/b3ngr33n/docuchat-go/internal/convo"
	"github.com/b3ngr33n/docuchat-go/internal/rag"
)

// fakeModel records the last message list and returns a canned response.
type fakeModel struct {
	lastMessages []chat.Message
	response     string
	err          error
	delay        time.Duration
}

func (f *fakeModel) Complete(ctx context.Context, messages []chat.Message) (string, error) {
	f.lastMessages = messages
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func Test_Compose_MessageShape(t *testing.T) {
	t.Parallel()

	fm := &fakeModel{response: "grounded answer"}
	c, err := NewComposer(fm, Config{})
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}

	docs := []rag.Document{
		{Text: "the sky is blue", Metadata: map[string]string{"source_type": "text", "chunk_index": "0"}},
	}
	transcript := []convo.Turn{
		{Role: convo.RoleUser, Content: "earlier question"},
		{Role: convo.RoleAssistant, Content: "earlier answer"},
	}

	out, err := c.Compose(context.Background(), "what color is the sky?", docs, transcript)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if out != "grounded answer" {
		t.Errorf("want model response passed through, got %q", out)
	}

	msgs := fm.lastMessages
	if len(msgs) != 4 {
		t.Fatalf("want system + 2 history + user, got %d messages", len(msgs))
	}
	if msgs[0].Role != chat.RoleSystem {
		t.Errorf("first message must be system, got %s", msgs[0].Role)
	}
	if !strings.Contains(msgs[0].Content, "the sky is blue") {
		t.Error("system message must carry retrieved document text")
	}
	if !strings.Contains(msgs[0].Content, "source_type=text") {
		t.Error("system message must carry document metadata")
	}
	if msgs[1].Content != "earlier question" || msgs[2].Content != "earlier answer" {
		t.Error("history must appear between system and user messages")
	}
	if last := msgs[len(msgs)-1]; last.Role != chat.RoleUser || last.Content != "what color is the sky?" {
		t.Errorf("last message must be the raw query, got %s %q", last.Role, last.Content)
	}
}

func Test_Compose_NoDocuments(t *testing.T) {
	t.Parallel()

	fm := &fakeModel{response: "I don't know based on the available documents."}
	c, err := NewComposer(fm, Config{})
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}

	if _, err := c.Compose(context.Background(), "anything?", nil, nil); err != nil {
		t.Fatalf("Compose with no docs must still call the model: %v", err)
	}
	if !strings.Contains(fm.lastMessages[0].Content, "no matching documents") {
		t.Error("system message must state that no documents matched")
	}
}

func Test_Compose_TrimsOldHistory(t *testing.T) {
	t.Parallel()

	fm := &fakeModel{response: "ok"}
	c, err := NewComposer(fm, Config{MaxContextTokens: 200})
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}

	transcript := make([]convo.Turn, 0, 20)
	for range 10 {
		transcript = append(transcript,
			convo.Turn{Role: convo.RoleUser, Content: strings.Repeat("q", 200)},
			convo.Turn{Role: convo.RoleAssistant, Content: strings.Repeat("a", 200)},
		)
	}

	if _, err := c.Compose(context.Background(), "q", nil, transcript); err != nil {
		t.Fatalf("Compose: %v", err)
	}
	// system + user always survive; most history must be dropped.
	if len(fm.lastMessages) >= 22 {
		t.Errorf("history was not trimmed, got %d messages", len(fm.lastMessages))
	}
	if fm.lastMessages[0].Role != chat.RoleSystem {
		t.Error("system message must survive trimming")
	}
}

func Test_Compose_ModelError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("upstream down")
	fm := &fakeModel{err: wantErr}
	c, err := NewComposer(fm, Config{})
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}

	if _, err := c.Compose(context.Background(), "q", nil, nil); !errors.Is(err, wantErr) {
		t.Errorf("want wrapped model error, got %v", err)
	}
}

func Test_Compose_Timeout(t *testing.T) {
	t.Parallel()

	fm := &fakeModel{response: "too late", delay: 200 * time.Millisecond}
	c, err := NewComposer(fm, Config{Timeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}

	if _, err := c.Compose(context.Background(), "q", nil, nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("want deadline exceeded, got %v", err)
	}
}

func Test_NewComposer_NilModel(t *testing.T) {
	t.Parallel()

	if _, err := NewComposer(nil, Config{}); err == nil {
		t.Error("want error for nil model")
	}
}
