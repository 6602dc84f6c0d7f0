package httpx

import (
	"compress/gzip"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	domainauth "github.com/meridianbank/opsdesk/internal/domain/auth"
)

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *respWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth returns a middleware that requires authentication.
// If the user is not authenticated, it returns a 401 Unauthorized response.
func RequireAuth(authSvc AuthServiceInterface) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := getSessionFromRequest(r, authSvc)
			if session == nil {
				WriteError(w, ErrorParams{
					Code:    http.StatusUnauthorized,
					ErrCode: "authentication_required",
					Err:     errors.New("authentication required"),
				})
				return
			}

			ctx := SetSessionInContext(r.Context(), session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole returns a middleware that requires at least the given role.
// If the user's role ranks below it, a 403 Forbidden response is returned.
func RequireRole(authSvc AuthServiceInterface, requiredRole domainauth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := getSessionFromRequest(r, authSvc)
			if session == nil {
				WriteError(w, ErrorParams{
					Code:    http.StatusUnauthorized,
					ErrCode: "authentication_required",
					Err:     errors.New("authentication required"),
				})
				return
			}

			if !session.Role.AtLeast(requiredRole) {
				WriteError(w, ErrorParams{
					Code:    http.StatusForbidden,
					ErrCode: "insufficient_permissions",
					Err:     errors.New("insufficient permissions"),
				})
				return
			}

			ctx := SetSessionInContext(r.Context(), session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// getSessionFromRequest retrieves and validates a session from the request.
func getSessionFromRequest(r *http.Request, authSvc AuthServiceInterface) *domainauth.Session {
	sessionCookie, err := r.Cookie(CookieSession)
	if err != nil {
		return nil
	}

	session, err := authSvc.GetSession(r.Context(), sessionCookie.Value)
	if err != nil {
		return nil
	}

	return session
}

// CompressionConfig tunes the gzip middleware.
type CompressionConfig struct {
	// Level is the gzip level; config validation clamps it to 1-9.
	Level int
	// MinSize holds a response back until this many body bytes arrive.
	// Smaller responses go out uncompressed. Zero compresses everything
	// eligible.
	MinSize int
	// Types overrides the compressible content types when non-nil.
	Types  []string
	Logger *slog.Logger
}

// compressibleTypes covers what this API serves: JSON pages, CSV exports,
// and the odd plain-text or HTML error page. PDF exports carry their own
// deflate streams and are left alone.
var compressibleTypes = []string{
	"application/json",
	"text/csv",
	"text/plain",
	"text/html",
}

// Compression returns a middleware that gzips eligible responses. A response
// is eligible when the client named gzip in Accept-Encoding with a nonzero q,
// the method is not HEAD, the status carries a body, no Content-Encoding is
// already set, and the Content-Type is on the compressible list.
func Compression(cfg CompressionConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	types := cfg.Types
	if types == nil {
		types = compressibleTypes
	}
	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[strings.ToLower(t)] = true
	}

	pool := &sync.Pool{New: func() any {
		gz, err := gzip.NewWriterLevel(io.Discard, cfg.Level)
		if err != nil {
			gz = gzip.NewWriter(io.Discard)
		}
		return gz
	}}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Caches must key on the request encoding even when this
			// particular response goes out identity.
			w.Header().Add("Vary", "Accept-Encoding")

			if r.Method == http.MethodHead || !acceptsGzip(r.Header.Get("Accept-Encoding")) {
				next.ServeHTTP(w, r)
				return
			}

			gw := &gzipResponseWriter{
				ResponseWriter: w,
				logger:         logger,
				pool:           pool,
				minSize:        cfg.MinSize,
				types:          typeSet,
			}
			defer gw.finish()
			next.ServeHTTP(gw, r)
		})
	}
}

// acceptsGzip reports whether Accept-Encoding names gzip with a nonzero q.
func acceptsGzip(header string) bool {
	for _, part := range strings.Split(header, ",") {
		name, params, hasParams := strings.Cut(part, ";")
		if !strings.EqualFold(strings.TrimSpace(name), "gzip") {
			continue
		}
		if !hasParams {
			return true
		}
		qparam, _, _ := strings.Cut(params, ";")
		qval, ok := strings.CutPrefix(strings.TrimSpace(qparam), "q=")
		if !ok {
			return true
		}
		q, err := strconv.ParseFloat(strings.TrimSpace(qval), 64)
		return err != nil || q > 0
	}
	return false
}

// gzipResponseWriter defers the compress-or-not decision until it has seen
// the status, the headers, and MinSize body bytes. Until then the status is
// stashed and body bytes are held in buf.
type gzipResponseWriter struct {
	http.ResponseWriter
	logger  *slog.Logger
	pool    *sync.Pool
	minSize int
	types   map[string]bool

	status int          // stashed until the decision, 0 before WriteHeader
	buf    []byte       // body held back while undecided
	gz     *gzip.Writer // non-nil once compressing
	plain  bool         // true once passing through uncompressed
}

func (w *gzipResponseWriter) decided() bool { return w.plain || w.gz != nil }

// eligible applies the status and header checks. An empty Content-Type
// counts as eligible; it is sniffed and rechecked on the first Write.
func (w *gzipResponseWriter) eligible() bool {
	if w.status < 200 || w.status == http.StatusNoContent || w.status == http.StatusNotModified {
		return false
	}
	if w.Header().Get("Content-Encoding") != "" {
		return false
	}

	ct := w.Header().Get("Content-Type")
	if ct == "" {
		return true
	}
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return w.types[strings.ToLower(strings.TrimSpace(ct))]
}

func (w *gzipResponseWriter) WriteHeader(status int) {
	if w.decided() || w.status != 0 {
		return
	}
	w.status = status
	// Ineligible responses pass straight through; eligible ones hold the
	// header back until enough body has arrived to settle the decision.
	if !w.eligible() {
		w.startPlain()
	}
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	if w.plain {
		return w.ResponseWriter.Write(b)
	}
	if w.gz != nil {
		return w.gz.Write(b)
	}

	if w.status == 0 {
		w.status = http.StatusOK
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", http.DetectContentType(b))
	}
	if !w.eligible() {
		w.startPlain()
		return w.ResponseWriter.Write(b)
	}

	w.buf = append(w.buf, b...)
	if len(w.buf) >= w.minSize {
		if err := w.startGzip(); err != nil {
			return 0, err
		}
	}
	return len(b), nil
}

// startGzip commits to compression: headers go out, the held bytes run
// through a pooled writer.
func (w *gzipResponseWriter) startGzip() error {
	w.Header().Set("Content-Encoding", "gzip")
	w.Header().Del("Content-Length")
	w.ResponseWriter.WriteHeader(w.status)

	gz, _ := w.pool.Get().(*gzip.Writer)
	gz.Reset(w.ResponseWriter)
	w.gz = gz

	if len(w.buf) == 0 {
		return nil
	}
	_, err := gz.Write(w.buf)
	w.buf = nil
	return err
}

// startPlain commits to identity: the stashed status and any held bytes go
// out untouched.
func (w *gzipResponseWriter) startPlain() {
	w.plain = true
	if w.status == 0 {
		w.status = http.StatusOK
	}
	w.ResponseWriter.WriteHeader(w.status)
	if len(w.buf) > 0 {
		if _, err := w.ResponseWriter.Write(w.buf); err != nil {
			w.logger.Error("write held response", "error", err)
		}
		w.buf = nil
	}
}

// finish settles a response that ended below MinSize and returns the gzip
// writer to the pool. The middleware runs it after the handler returns.
func (w *gzipResponseWriter) finish() {
	if !w.decided() {
		// Nothing intercepted at all; let net/http send its implicit 200.
		if w.status == 0 && len(w.buf) == 0 {
			return
		}
		w.startPlain()
		return
	}

	if w.gz != nil {
		if err := w.gz.Close(); err != nil {
			w.logger.Error("close gzip writer", "error", err)
		}
		w.gz.Reset(io.Discard)
		w.pool.Put(w.gz)
		w.gz = nil
	}
}

// Flush implements http.Flusher. Flushing forces the decision; a streaming
// response compresses regardless of MinSize since its total size is unknown.
func (w *gzipResponseWriter) Flush() {
	if !w.decided() {
		if w.status == 0 {
			w.status = http.StatusOK
		}
		if w.eligible() {
			if err := w.startGzip(); err != nil {
				w.logger.Error("start gzip writer", "error", err)
			}
		} else {
			w.startPlain()
		}
	}

	if w.gz != nil {
		if err := w.gz.Flush(); err != nil {
			w.logger.Error("flush gzip writer", "error", err)
		}
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach deadline and hijack support on
// the underlying writer.
func (w *gzipResponseWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
