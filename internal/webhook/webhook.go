package webhook

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/go-github/v66/github"

	"github.com/joescharf/gitvote/internal/config"
)

// VoteStarter is the engine entry point the webhook dispatches to.
type VoteStarter interface {
	RequestVote(ctx context.Context, prNumber int, cfg config.ChannelConfig) error
}

// Handler validates signed GitHub webhook deliveries and converts label
// events into vote requests. Everything that is not a signature failure
// answers 200: unknown event types, unknown repos, and uninteresting labels
// are ignored, not errors.
type Handler struct {
	secret   []byte
	path     string
	registry *config.Registry
	engine   VoteStarter
	logger   *slog.Logger
}

// NewHandler creates a webhook handler serving POST on the given path.
func NewHandler(secret, path string, registry *config.Registry, engine VoteStarter, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		path = "/webhook"
	}
	return &Handler{
		secret:   []byte(secret),
		path:     path,
		registry: registry,
		engine:   engine,
		logger:   logger,
	}
}

// Router returns the http.Handler for the webhook server.
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", h.hello)
	mux.HandleFunc("POST "+h.path, h.handleEvent)
	return mux
}

func (h *Handler) hello(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("Hello, World!"))
}

func (h *Handler) handleEvent(w http.ResponseWriter, r *http.Request) {
	// Keyed digest over the raw body, compared in constant time against the
	// X-Hub-Signature header. Rejected deliveries are never parsed.
	payload, err := github.ValidatePayload(r, h.secret)
	if err != nil {
		h.logger.Error("invalid webhook event payload signature", "error", err)
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "invalid signature"})
		return
	}

	event, err := github.ParseWebHook(github.WebHookType(r), payload)
	if err != nil {
		h.logger.Warn("unparseable webhook event", "type", github.WebHookType(r), "error", err)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	if pe, ok := event.(*github.PullRequestEvent); ok {
		h.dispatch(r.Context(), pe, github.DeliveryID(r))
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// dispatch triggers a vote when a registered repo's PR gains the configured
// trigger label. All other transitions are ignored.
func (h *Handler) dispatch(ctx context.Context, event *github.PullRequestEvent, deliveryID string) {
	if event.GetAction() != "labeled" {
		return
	}

	repo := event.GetRepo().GetFullName()
	cfg, ok := h.registry.ByRepo(repo)
	if !ok {
		return
	}
	if event.GetLabel().GetName() != cfg.Labels.NeedsVote {
		return
	}

	number := event.GetPullRequest().GetNumber()
	h.logger.Info("vote requested via webhook", "repo", repo, "pr", number, "delivery", deliveryID)
	if err := h.engine.RequestVote(ctx, number, cfg); err != nil {
		h.logger.Error("vote request failed", "repo", repo, "pr", number, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
