package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/warp/deploy-engine/workforce"
	"go.uber.org/zap"
)

// RequestLogger logs one line per request.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			}
			if status >= http.StatusInternalServerError {
				logger.Warn("request", fields...)
				return
			}
			logger.Info("request", fields...)
		})
	}
}

// EventLogger returns a sink that logs every domain event.
func EventLogger(logger *zap.Logger) workforce.EventSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("events")
	return workforce.EventSinkFunc(func(_ context.Context, e workforce.Event) {
		fields := []zap.Field{
			zap.String("kind", string(e.Kind)),
			zap.String("at", e.At.String()),
		}
		if e.OperativeID != "" {
			fields = append(fields, zap.String("operative_id", string(e.OperativeID)))
		}
		if e.SiteID != "" {
			fields = append(fields, zap.String("site_id", string(e.SiteID)))
		}
		if e.AssignmentID != "" {
			fields = append(fields, zap.String("assignment_id", string(e.AssignmentID)))
		}
		if e.Status != "" {
			fields = append(fields, zap.String("status", string(e.Status)))
		}
		if e.Forced {
			fields = append(fields, zap.Bool("forced", true))
		}
		if len(e.Payload) > 0 {
			fields = append(fields, zap.Any("payload", e.Payload))
		}
		logger.Info("event", fields...)
	})
}
