package handler

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/firebridgekit/Firebridge-sub000/internal/audit"
	"github.com/firebridgekit/Firebridge-sub000/internal/config"
	"github.com/firebridgekit/Firebridge-sub000/internal/logger"
	"github.com/firebridgekit/Firebridge-sub000/internal/metric"
	"github.com/firebridgekit/Firebridge-sub000/internal/models"
	"github.com/firebridgekit/Firebridge-sub000/internal/pool"
	"github.com/firebridgekit/Firebridge-sub000/internal/timeline"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var batchPool = pool.New[*models.EventBatch](func() *models.EventBatch {
	return &models.EventBatch{}
})

// NewRouter собирает маршрутизатор сервера метрик.
func NewRouter(metrics *metric.MetricStore, sugar *zap.SugaredLogger, cfg config.Config) *chi.Mux {
	r := chi.NewRouter()

	r.Get("/", LoggerFuncServer(ListMetricsHandler(metrics), sugar))
	r.Get("/ping", LoggerFuncServer(PingHandler(metrics), sugar))

	r.Route("/config", func(r chi.Router) {
		r.Post("/{noun}/{verb}", LoggerFuncServer(DecompressMiddleware(SetConfigHandler(metrics, sugar)), sugar))
		r.Get("/{noun}/{verb}", LoggerFuncServer(GetConfigHandler(metrics), sugar))
	})

	r.Post("/increment/{noun}/{verb}/{entity}",
		LoggerFuncServer(DecompressMiddleware(IncrementHandler(metrics, sugar, cfg)), sugar))
	r.Post("/recompute/{noun}/{verb}/{entity}",
		LoggerFuncServer(DecompressMiddleware(RecomputeHandler(metrics, sugar, cfg)), sugar))

	r.Get("/value/{noun}/{verb}/{entity}", LoggerFuncServer(GetSummaryHandler(metrics), sugar))
	r.Get("/timeline/{noun}/{verb}/{entity}/{unit}", LoggerFuncServer(GetTimelineHandler(metrics), sugar))

	return r
}

// LoggerFuncServer логирует каждый запрос вместе с кодом и размером ответа.
func LoggerFuncServer(h http.Handler, sugar *zap.SugaredLogger) http.HandlerFunc {
	logFn := func(rw http.ResponseWriter, r *http.Request) {
		start := time.Now()

		responseData := &logger.ResponseData{
			Size:   0,
			Status: 0,
		}
		lw := logger.LoggingRW{
			ResponseWriter: rw,
			ResponseData:   responseData,
		}

		h.ServeHTTP(&lw, r)

		dur := time.Since(start)

		sugar.Infoln(
			"uri", r.RequestURI,
			"method", r.Method,
			"duration", dur,
			"status", responseData.Status,
			"size", responseData.Size,
		)
	}
	return http.HandlerFunc(logFn)
}

// DecompressMiddleware распаковывает gzip-тела запросов.
func DecompressMiddleware(h http.Handler) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Encoding") == "gzip" {
			gz, err := gzip.NewReader(r.Body)
			if err != nil {
				http.Error(rw, "Failed to decompress gzip body", http.StatusBadRequest)
				return
			}
			defer gz.Close()

			body, err := io.ReadAll(gz)
			if err != nil {
				http.Error(rw, "Failed to read decompressed body", http.StatusInternalServerError)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			r.ContentLength = int64(len(body))
		}
		h.ServeHTTP(rw, r)
	}
}

func PingHandler(metrics *metric.MetricStore) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := metrics.Ping(ctx); err != nil {
			http.Error(rw, "No connection with document store", http.StatusInternalServerError)
			return
		}

		rw.WriteHeader(http.StatusOK)
		rw.Write([]byte("Document store is reachable"))
	}
}

func validUnits(units []string) error {
	if len(units) == 0 {
		return errors.New("units must not be empty")
	}

	for _, u := range units {
		switch u {
		case models.Hour, models.Day, models.Week, models.Month, models.Year:
		default:
			return fmt.Errorf("unknown time unit %q", u)
		}
	}
	return nil
}

func SetConfigHandler(metrics *metric.MetricStore, sugar *zap.SugaredLogger) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		noun := chi.URLParam(r, "noun")
		verb := chi.URLParam(r, "verb")

		var cfg models.MetricConfig
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			http.Error(rw, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}

		if err := validUnits(cfg.Units); err != nil {
			http.Error(rw, err.Error(), http.StatusBadRequest)
			return
		}
		if _, err := timeline.Zone(cfg.Timezone); err != nil {
			http.Error(rw, err.Error(), http.StatusBadRequest)
			return
		}

		name := metric.MetricName(noun, verb)
		if err := metrics.SetConfig(r.Context(), name, cfg); err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		sugar.Debugw("Set metric config", "metric", name, "units", cfg.Units, "timezone", cfg.Timezone)

		rw.WriteHeader(http.StatusOK)
		rw.Write([]byte("OK"))
	}
}

func GetConfigHandler(metrics *metric.MetricStore) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		name := metric.MetricName(chi.URLParam(r, "noun"), chi.URLParam(r, "verb"))

		cfg, err := metrics.GetConfig(r.Context(), name)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		if cfg == nil {
			rw.WriteHeader(http.StatusNotFound)
			return
		}

		writeJSON(rw, cfg)
	}
}

func IncrementHandler(metrics *metric.MetricStore, sugar *zap.SugaredLogger, cfg config.Config) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		noun := chi.URLParam(r, "noun")
		verb := chi.URLParam(r, "verb")
		entity := chi.URLParam(r, "entity")

		var event models.TrackableEvent
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			http.Error(rw, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}

		err := metrics.Increment(r.Context(), noun, verb, entity, metric.IncrementOptions{
			Count: event.EffectiveCount(),
			Value: event.EffectiveValue(),
			Time:  event.Time,
		})
		if err != nil {
			writeEngineError(rw, err)
			return
		}

		sugar.Debugw("Incremented metric", "noun", noun, "verb", verb, "entity", entity)
		audit.NewAuditEvent(metric.MetricName(noun, verb), entity, "increment", cfg.AuditFile, cfg.AuditURL, r.RemoteAddr)

		rw.WriteHeader(http.StatusOK)
		rw.Write([]byte("OK"))
	}
}

func RecomputeHandler(metrics *metric.MetricStore, sugar *zap.SugaredLogger, cfg config.Config) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		noun := chi.URLParam(r, "noun")
		verb := chi.URLParam(r, "verb")
		entity := chi.URLParam(r, "entity")

		batch := batchPool.Get()
		defer batchPool.Put(batch)

		if err := json.NewDecoder(r.Body).Decode(batch); err != nil {
			http.Error(rw, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}

		err := metrics.Update(r.Context(), noun, verb, entity, batch.Events, metric.UpdateOptions{
			StartingCount: batch.StartingCount,
			StartingValue: batch.StartingValue,
			Clean:         batch.CleanRequested(),
		})
		if err != nil {
			writeEngineError(rw, err)
			return
		}

		sugar.Debugw("Recomputed metric", "noun", noun, "verb", verb, "entity", entity, "events", len(batch.Events))
		audit.NewAuditEvent(metric.MetricName(noun, verb), entity, "recompute", cfg.AuditFile, cfg.AuditURL, r.RemoteAddr)

		rw.WriteHeader(http.StatusOK)
		rw.Write([]byte("OK"))
	}
}

func GetSummaryHandler(metrics *metric.MetricStore) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		entity := metrics.Entity(chi.URLParam(r, "noun"), chi.URLParam(r, "verb"), chi.URLParam(r, "entity"))

		summary, err := entity.Summary(r.Context())
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		if summary == nil {
			rw.WriteHeader(http.StatusNotFound)
			return
		}

		writeJSON(rw, summary)
	}
}

func GetTimelineHandler(metrics *metric.MetricStore) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		noun := chi.URLParam(r, "noun")
		verb := chi.URLParam(r, "verb")
		entity := chi.URLParam(r, "entity")
		unit := chi.URLParam(r, "unit")

		if err := validUnits([]string{unit}); err != nil {
			http.Error(rw, err.Error(), http.StatusBadRequest)
			return
		}

		cfg, err := metrics.GetConfig(r.Context(), metric.MetricName(noun, verb))
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		if cfg == nil {
			rw.WriteHeader(http.StatusNotFound)
			return
		}

		sections, err := metrics.Entity(noun, verb, entity).Timeline(unit, cfg.Timezone).Sections(r.Context())
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}

		writeJSON(rw, sections)
	}
}

func ListMetricsHandler(metrics *metric.MetricStore) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		configs, err := metrics.ListConfigs(r.Context())
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}

		names := make([]string, 0, len(configs))
		for name := range configs {
			names = append(names, name)
		}
		sort.Strings(names)

		var sb strings.Builder

		accept := r.Header.Get("Accept")

		if strings.Contains(accept, "text/html") {
			sb.WriteString("<html><body>")
			sb.WriteString("<h1>Metrics</h1><ul>")
			for _, name := range names {
				cfg := configs[name]
				sb.WriteString(fmt.Sprintf("<li>%s: units=%s timezone=%s</li>", name, strings.Join(cfg.Units, ","), cfg.Timezone))
			}
			sb.WriteString("</ul></body></html>")
		} else {
			for _, name := range names {
				cfg := configs[name]
				sb.WriteString(fmt.Sprintf("%s: units=%s timezone=%s\n", name, strings.Join(cfg.Units, ","), cfg.Timezone))
			}
		}

		if strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			rw.Header().Set("Content-Encoding", "gzip")
			if strings.Contains(accept, "text/html") {
				rw.Header().Set("Content-Type", "text/html")
			} else {
				rw.Header().Set("Content-Type", "text/plain")
			}
			rw.WriteHeader(http.StatusOK)

			gz := gzip.NewWriter(rw)
			defer gz.Close()

			_, err := gz.Write([]byte(sb.String()))
			if err != nil {
				log.Printf("gzip write error: %v", err)
			}
		} else {
			if strings.Contains(accept, "text/html") {
				rw.Header().Set("Content-Type", "text/html")
			} else {
				rw.Header().Set("Content-Type", "text/plain")
			}

			_, err := rw.Write([]byte(sb.String()))
			if err != nil {
				log.Printf("write error: %v", err)
			}
		}
	}
}

func writeJSON(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(rw).Encode(v); err != nil {
		log.Printf("response encode error: %v", err)
	}
}

// writeEngineError переводит ошибки движка в HTTP-коды: некорректные моменты
// времени и единицы — ошибка клиента, всё остальное — ошибка хранилища.
func writeEngineError(rw http.ResponseWriter, err error) {
	if errors.Is(err, timeline.ErrInvalidInstant) {
		http.Error(rw, err.Error(), http.StatusBadRequest)
		return
	}
	http.Error(rw, err.Error(), http.StatusInternalServerError)
}
