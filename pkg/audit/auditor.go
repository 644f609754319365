package audit

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
)

// LevelAudit is a custom audit log level - between Info and Warn
const LevelAudit = slog.Level(2)

// NewAuditLogger creates a new structured audit logger that writes to the specified writer.
func NewAuditLogger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: LevelAudit,
	})

	return slog.New(handler)
}

// Auditor writes audit events for the authentication boundary.
type Auditor struct {
	auditLogger *slog.Logger
}

// NewAuditor creates an Auditor writing JSON events to w (stdout if nil).
func NewAuditor(w io.Writer) *Auditor {
	return &Auditor{auditLogger: NewAuditLogger(w)}
}

// UserCreated records that a local user was provisioned for a verified email.
func (a *Auditor) UserCreated(ctx context.Context, email string, userID int64, via string) {
	event := NewEvent(
		EventTypeUserCreated,
		SourceFromContext(ctx),
		OutcomeSuccess,
		map[string]string{SubjectKeyUser: email},
	)
	event.WithTarget(map[string]string{
		"type":    "user",
		"message": "User created via " + via,
	})
	event.LogTo(ctx, a.auditLogger)
}

// LoginSucceeded records a completed login.
func (a *Auditor) LoginSucceeded(ctx context.Context, email string) {
	event := NewEvent(
		EventTypeUserLogin,
		SourceFromContext(ctx),
		OutcomeSuccess,
		map[string]string{SubjectKeyUser: email},
	)
	event.LogTo(ctx, a.auditLogger)
}

// LoginFailed records a rejected login attempt. The reason is a coarse
// category, never upstream detail.
func (a *Auditor) LoginFailed(ctx context.Context, reason string) {
	event := NewEvent(
		EventTypeUserLogin,
		SourceFromContext(ctx),
		OutcomeDenied,
		map[string]string{SubjectKeyUser: "anonymous"},
	)
	event.Metadata.Extra = map[string]any{"reason": reason}
	event.LogTo(ctx, a.auditLogger)
}

// sourceContextKey stores the request's EventSource in the context.
type sourceContextKey struct{}

// WithSource stores an event source in the context.
func WithSource(ctx context.Context, source EventSource) context.Context {
	return context.WithValue(ctx, sourceContextKey{}, source)
}

// SourceFromContext returns the event source stored by the middleware, or a
// local source when none is present (e.g. in tests or CLI paths).
func SourceFromContext(ctx context.Context) EventSource {
	if source, ok := ctx.Value(sourceContextKey{}).(EventSource); ok {
		return source
	}
	return EventSource{Type: SourceTypeLocal, Value: "localhost"}
}

// SourceMiddleware stamps the client address onto the request context so
// that audit events emitted further down carry the request's origin.
func SourceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		source := EventSource{
			Type:  SourceTypeNetwork,
			Value: clientIP(r),
		}
		next.ServeHTTP(w, r.WithContext(WithSource(r.Context(), source)))
	})
}

// clientIP extracts the client IP address from the request.
func clientIP(r *http.Request) string {
	// Check X-Forwarded-For header first
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ips := strings.Split(xff, ","); len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}

	return r.RemoteAddr
}
