package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/b3ngr33n/docuchat-go/internal/convo"
	"github.com/b3ngr33n/docuchat-go/internal/core"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	// Must be long enough for a full crawl-ingest or model completion.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
}

// service is the interface the handlers call. *core.Service satisfies it;
// tests inject a fake.
type service interface {
	Ingest(ctx context.Context, req core.IngestRequest) (*core.IngestResult, error)
	Query(ctx context.Context, collection, question string) (string, error)
	Collections(ctx context.Context) ([]string, error)
	Transcript(ctx context.Context, collection string) ([]convo.Turn, error)
	ClearTranscript(ctx context.Context, collection string) error
	DeleteCollection(ctx context.Context, collection string) error
}

// Server is the HTTP server that exposes the document-chat API.
type Server struct {
	// svc handles all application operations.
	svc service
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// queryRequest is the JSON body for POST /query.
type queryRequest struct {
	// CollectionName is the collection to retrieve from.
	CollectionName string `json:"collectionName"`
	// Query is the user's question.
	Query string `json:"query"`
}

// queryResponse is the JSON response for POST /query.
type queryResponse struct {
	// Response is the grounded answer text.
	Response string `json:"response"`
}

// collectionsResponse is the JSON response for GET /get-collections.
type collectionsResponse struct {
	// Collections is the sorted list of collection names.
	Collections []string `json:"collections"`
}

// messagesResponse is the JSON response for GET /get-messages.
type messagesResponse struct {
	// Messages is the ordered conversation transcript.
	Messages []convo.Turn `json:"messages"`
}

// collectionRequest is the JSON body for POST /clear-messages and
// DELETE /delete-collection.
type collectionRequest struct {
	// CollectionName is the target collection.
	CollectionName string `json:"collectionName"`
}

// statusResponse is the JSON response for mutations that return no data.
type statusResponse struct {
	// Status is "ok" on success.
	Status string `json:"status"`
}

// errorBody is the JSON error envelope returned by all handlers.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail carries the machine-readable kind and human-readable message.
type errorDetail struct {
	// Kind is one of "validation", "not_found", "upstream", "unknown".
	Kind string `json:"kind"`
	// Message describes the failure.
	Message string `json:"message"`
}
