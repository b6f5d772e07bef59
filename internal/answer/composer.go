// Package answer turns a retrieval result into a grounded chat completion.
// The composer owns prompt assembly: it serializes the retrieved documents
// and the prior transcript into the message list, trims history to the
// token budget, and performs one bounded completion call. It never mutates
// the transcript — committing the (question, answer) pair is the caller's
// job, so a failed completion leaves the conversation untouched.
package answer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/b3ngr33n/docuchat-go/internal/budget"
	"github.com/b3ngr33n/docuchat-go/internal/chat"
	"github.com/b3ngr33n/docuchat-go/internal/convo"
	"github.com/b3ngr33n/docuchat-go/internal/logging"
	"github.com/b3ngr33n/docuchat-go/internal/rag"
)

// DefaultTimeout bounds a single completion call.
const DefaultTimeout = 2 * time.Minute

// systemDirective instructs the model to answer strictly from the supplied
// context and to refuse when the context does not contain the answer.
const systemDirective = `You are a helpful assistant that answers questions about documents.
Answer ONLY from the provided context. If the context does not contain the
information needed to answer, say that you don't know based on the available
documents. Do not invent facts and do not use outside knowledge.`

// Config holds the composer's tunables. Zero values select the defaults.
type Config struct {
	// Timeout bounds each completion call. Defaults to DefaultTimeout.
	Timeout time.Duration

	// MaxContextTokens is the input budget used to trim history.
	// Defaults to budget.DefaultMaxContextTokens.
	MaxContextTokens int
}

// Composer assembles grounded prompts and requests completions.
type Composer struct {
	// model produces completions.
	model chat.Model

	// timeout bounds each completion call.
	timeout time.Duration

	// maxContextTokens is the history-trimming budget.
	maxContextTokens int
}

// NewComposer constructs a Composer over the given model.
func NewComposer(model chat.Model, cfg Config) (*Composer, error) {
	if model == nil {
		return nil, fmt.Errorf("answer: model must not be nil")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxTokens := cfg.MaxContextTokens
	if maxTokens <= 0 {
		maxTokens = budget.DefaultMaxContextTokens
	}
	return &Composer{
		model:            model,
		timeout:          timeout,
		maxContextTokens: maxTokens,
	}, nil
}

// Compose builds the grounded message list from the retrieved documents and
// prior transcript, then performs one completion call bounded by the
// configured timeout. An empty docs slice still produces a call — the
// directive makes the model decline rather than fabricate.
//
// The system message carries only the directive and the retrieved documents.
// Prior transcript turns are deliberately passed as role-typed history
// messages between the system and user messages, not serialized into the
// system block: chat backends attend to real conversational roles, and the
// budget can trim whole exchanges instead of rewriting a text blob.
func (c *Composer) Compose(ctx context.Context, query string, docs []rag.Document, transcript []convo.Turn) (string, error) {
	log := logging.FromContext(ctx)

	fixed := []chat.Message{
		{Role: chat.RoleSystem, Content: buildSystemMessage(docs)},
		{Role: chat.RoleUser, Content: query},
	}
	history := historyMessages(transcript)

	fixedTokens := budget.EstimateMessages(fixed)
	if fixedTokens > c.maxContextTokens {
		log.Warn("fixed context alone exceeds token budget",
			"fixed_tokens", fixedTokens,
			"max_tokens", c.maxContextTokens)
	}
	history = budget.TrimHistory(fixed, history, c.maxContextTokens)

	msgs := make([]chat.Message, 0, len(history)+2)
	msgs = append(msgs, fixed[0])
	msgs = append(msgs, history...)
	msgs = append(msgs, fixed[1])

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	out, err := c.model.Complete(cctx, msgs)
	if err != nil {
		return "", fmt.Errorf("answer: completion failed: %w", err)
	}
	log.Debug("completion finished",
		"duration", time.Since(start),
		"context_docs", len(docs),
		"history_turns", len(history))

	return out, nil
}

// buildSystemMessage renders the directive plus the retrieved documents.
// Each document carries its text and metadata so the model can cite the
// source page or URL when answering.
func buildSystemMessage(docs []rag.Document) string {
	var b strings.Builder
	b.WriteString(systemDirective)
	b.WriteString("\n\nContext:\n")

	if len(docs) == 0 {
		b.WriteString("(no matching documents were found)\n")
		return b.String()
	}

	for i, d := range docs {
		fmt.Fprintf(&b, "--- Document %d ---\n", i+1)
		if meta := formatMetadata(d.Metadata); meta != "" {
			b.WriteString(meta)
			b.WriteByte('\n')
		}
		b.WriteString(strings.TrimSpace(d.Text))
		b.WriteByte('\n')
	}
	return b.String()
}

// formatMetadata renders document metadata as a single sorted key=value
// line, for stable prompts across runs.
func formatMetadata(meta map[string]string) string {
	if len(meta) == 0 {
		return ""
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, meta[k]))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// historyMessages converts transcript turns to chat messages.
func historyMessages(transcript []convo.Turn) []chat.Message {
	msgs := make([]chat.Message, 0, len(transcript))
	for _, turn := range transcript {
		role := chat.RoleUser
		if turn.Role == convo.RoleAssistant {
			role = chat.RoleAssistant
		}
		msgs = append(msgs, chat.Message{Role: role, Content: turn.Content})
	}
	return msgs
}
