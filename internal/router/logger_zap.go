package router

import (
	"net/http"
	"time"

	"github.com/acted/rules-engine/internal/acknowledgment"
	"github.com/acted/rules-engine/internal/models"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CustomZapLogger is a middleware that logs the end of each request, along
// with some useful data about what was requested, what the response status was,
// and how long it took to return.
func CustomZapLogger(next http.Handler) http.Handler {
	return CustomZapRequestLogger(&CustomZapLogFormatter{})(next)
}

// CustomZapRequestLogger returns a logger handler using a custom LogFormatter.
func CustomZapRequestLogger(f chimiddleware.LogFormatter) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			entry := f.NewLogEntry(r)
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			t1 := time.Now()
			defer func() {
				entry.Write(ww.Status(), ww.BytesWritten(), ww.Header(), time.Since(t1), nil)
			}()
			next.ServeHTTP(ww, chimiddleware.WithLogEntry(r, entry))
		}
		return http.HandlerFunc(fn)
	}
}

// CustomZapLogFormatter is a simple logger that implements a LogFormatter.
type CustomZapLogFormatter struct{}

// NewLogEntry creates a new LogEntry for the request.
func (l *CustomZapLogFormatter) NewLogEntry(r *http.Request) chimiddleware.LogEntry {
	entry := &customZapLogEntry{
		ZapLogger: zap.L(),
		ZapFields: make([]zapcore.Field, 0),
	}

	reqID := chimiddleware.GetReqID(r.Context())
	if reqID != "" {
		entry.ZapFields = append(entry.ZapFields, zap.String("requestid", reqID))
	}
	if subject, ok := r.Context().Value(models.ContextKeySubject).(acknowledgment.Subject); ok && subject.UserID != "" {
		entry.ZapFields = append(entry.ZapFields, zap.String("user", subject.UserID))
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	entry.ZapFields = append(entry.ZapFields,
		zap.String("method", r.Method),
		zap.String("scheme", scheme),
		zap.String("host", r.Host),
		zap.String("path", r.RequestURI),
		zap.String("proto", r.Proto),
		zap.String("remoteaddr", r.RemoteAddr),
	)

	return entry
}

type customZapLogEntry struct {
	ZapLogger *zap.Logger
	ZapFields []zap.Field
}

func (l *customZapLogEntry) Write(status, bytes int, header http.Header, elapsed time.Duration, extra interface{}) {
	l.ZapLogger.Info("request served", append(l.ZapFields,
		zap.Duration("lat", elapsed),
		zap.Int("http_status", status),
		zap.Int("size", bytes),
	)...)
}

func (l *customZapLogEntry) Panic(v interface{}, stack []byte) {
	l.ZapLogger.Error("request panicked", zap.Any("reason", v), zap.String("stack", string(stack)))
}
