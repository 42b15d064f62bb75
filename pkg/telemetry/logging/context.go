package logging

import (
	"context"
	"log/slog"
)

// Context keys for common log fields.
type contextKey string

const (
	// BuildIDKey is the context key for rule store build IDs.
	BuildIDKey contextKey = "build_id"

	// KindKey is the context key for the edit family being processed.
	KindKey contextKey = "kind"

	// ClaimIDKey is the context key for caller-supplied claim identifiers.
	ClaimIDKey contextKey = "claim_id"

	// TriggerKey is the context key for what started a rebuild
	// ("cli", "schedule", "watch").
	TriggerKey contextKey = "trigger"
)

// contextKeys lists the keys copied onto every record, in output order.
var contextKeys = []contextKey{BuildIDKey, KindKey, ClaimIDKey, TriggerKey}

// WithBuildID adds a build ID to the context.
func WithBuildID(ctx context.Context, buildID string) context.Context {
	return context.WithValue(ctx, BuildIDKey, buildID)
}

// GetBuildID retrieves the build ID from the context.
func GetBuildID(ctx context.Context) string {
	return getString(ctx, BuildIDKey)
}

// WithKind adds an edit family name to the context.
func WithKind(ctx context.Context, kind string) context.Context {
	return context.WithValue(ctx, KindKey, kind)
}

// GetKind retrieves the edit family name from the context.
func GetKind(ctx context.Context) string {
	return getString(ctx, KindKey)
}

// WithClaimID adds a claim identifier to the context.
func WithClaimID(ctx context.Context, claimID string) context.Context {
	return context.WithValue(ctx, ClaimIDKey, claimID)
}

// GetClaimID retrieves the claim identifier from the context.
func GetClaimID(ctx context.Context) string {
	return getString(ctx, ClaimIDKey)
}

// WithTrigger records what started the current rebuild.
func WithTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, TriggerKey, trigger)
}

// GetTrigger retrieves the rebuild trigger from the context.
func GetTrigger(ctx context.Context) string {
	return getString(ctx, TriggerKey)
}

func getString(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// extractContextFields extracts common fields from context for logging.
func extractContextFields(ctx context.Context) []slog.Attr {
	var fields []slog.Attr
	for _, key := range contextKeys {
		if v := getString(ctx, key); v != "" {
			fields = append(fields, slog.String(string(key), v))
		}
	}
	return fields
}

// contextHandler adds context fields to each record before delegating.
type contextHandler struct {
	next slog.Handler
}

func newContextHandler(next slog.Handler) slog.Handler {
	return &contextHandler{next: next}
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if fields := extractContextFields(ctx); len(fields) > 0 {
		r = r.Clone()
		r.AddAttrs(fields...)
	}
	return h.next.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{next: h.next.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{next: h.next.WithGroup(name)}
}
