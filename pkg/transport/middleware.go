package transport

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/raywall/decoy/pkg/metrics"
	"github.com/rs/zerolog"
)

const (
	HeaderCorrelationID = "x-correlation-id"
	HeaderLatency       = "x-latency-ms"

	MetricRequestCount   = "decoy.request.count"
	MetricRequestLatency = "decoy.request.latency_ms"
)

type correlationKey struct{}

// CorrelationID retorna o id de correlação da requisição, se houver.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode  int
	startTime   time.Time
	wroteHeader bool
}

func (rw *responseWriterWrapper) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	duration := time.Since(rw.startTime)
	rw.Header().Set(HeaderLatency, fmt.Sprintf("%d", duration.Milliseconds()))
	rw.ResponseWriter.WriteHeader(code)
	rw.wroteHeader = true
}

func (rw *responseWriterWrapper) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// ObservabilityMiddleware propaga (ou gera) o x-correlation-id, injeta o
// logger no contexto, mede a latência e publica as métricas de requisição.
// provider pode ser nil.
func ObservabilityMiddleware(next http.Handler, transport string, logger zerolog.Logger, provider metrics.Provider) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		corrID := r.Header.Get(HeaderCorrelationID)
		if corrID == "" {
			corrID = uuid.NewString()
		}
		w.Header().Set(HeaderCorrelationID, corrID)

		reqLogger := logger.With().
			Str("correlation_id", corrID).
			Str("transport", transport).
			Logger()
		ctx := reqLogger.WithContext(r.Context())
		ctx = context.WithValue(ctx, correlationKey{}, corrID)

		wrapper := &responseWriterWrapper{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
			startTime:      start,
		}

		next.ServeHTTP(wrapper, r.WithContext(ctx))

		latency := time.Since(start)
		reqLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Int64("latency_ms", latency.Milliseconds()).
			Msg("request completed")

		if provider == nil {
			return
		}
		tags := []string{
			"transport:" + transport,
			"method:" + r.Method,
			"status:" + strconv.Itoa(wrapper.statusCode),
		}
		if err := provider.Count(MetricRequestCount, 1, tags); err != nil {
			reqLogger.Warn().Err(err).Msg("falha ao publicar métrica")
		}
		if err := provider.Histogram(MetricRequestLatency, float64(latency.Milliseconds()), tags); err != nil {
			reqLogger.Warn().Err(err).Msg("falha ao publicar métrica")
		}
	})
}
