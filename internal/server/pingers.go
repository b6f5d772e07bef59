package server

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/b3ngr33n/docuchat-go/internal/rag"
)

// QdrantPinger probes a Qdrant instance using its native HealthCheck RPC.
// It satisfies the Pinger interface and is used by GET /api/ready.
type QdrantPinger struct {
	// client is the Qdrant gRPC client to probe.
	client *qdrant.Client
}

// NewQdrantPinger constructs a QdrantPinger for the given Qdrant client.
func NewQdrantPinger(client *qdrant.Client) *QdrantPinger {
	return &QdrantPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
// Returns nil if Qdrant is reachable, or a descriptive error otherwise.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	_, err := p.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// EmbedderPinger probes the embedding backend by embedding a single short
// string. Embedding calls are cheap relative to completions, so this stays
// affordable for periodic readiness checks.
type EmbedderPinger struct {
	// embedder is the embedding backend to probe.
	embedder rag.Embedder
	// name identifies the backend in readiness responses.
	name string
}

// NewEmbedderPinger constructs an EmbedderPinger for the given embedder and
// backend name.
func NewEmbedderPinger(e rag.Embedder, name string) *EmbedderPinger {
	return &EmbedderPinger{embedder: e, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *EmbedderPinger) Name() string { return p.name }

// Ping embeds one short string and checks a vector came back.
func (p *EmbedderPinger) Ping(ctx context.Context) error {
	embs, err := p.embedder.Embed(ctx, []string{"ping"})
	if err != nil {
		return fmt.Errorf("embed failed: %w", err)
	}
	if len(embs) != 1 || len(embs[0]) == 0 {
		return fmt.Errorf("embed returned no vector")
	}
	return nil
}
