// Command api-client runs a small chi-based inventory API and calls it
// through a fully configured courier client: declared endpoints, auth and
// correlation interceptors, retries, a circuit breaker and Prometheus
// metrics exposed on /metrics.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	courier "github.com/kroma-labs/courier-go"
)

type item struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Stock int    `json:"stock"`
}

// inventory is the demo server state.
type inventory struct {
	mu    sync.RWMutex
	items map[int]item
	next  int
}

func newInventory() *inventory {
	return &inventory{
		items: map[int]item{
			1: {ID: 1, Name: "widget", Stock: 12},
			2: {ID: 2, Name: "gadget", Stock: 3},
		},
		next: 3,
	}
}

func (inv *inventory) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, "bad id", http.StatusBadRequest)
			return
		}

		inv.mu.RLock()
		it, ok := inv.items[id]
		inv.mu.RUnlock()
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(it)
	})

	r.Post("/items", func(w http.ResponseWriter, r *http.Request) {
		var in item
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad payload", http.StatusBadRequest)
			return
		}

		inv.mu.Lock()
		in.ID = inv.next
		inv.next++
		inv.items[in.ID] = in
		inv.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(in)
	})

	return r
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	inv := newInventory()
	reg := prometheus.NewRegistry()

	mux := chi.NewRouter()
	mux.Mount("/", inv.router())
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              "127.0.0.1:8080",
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	client := courier.New(
		courier.WithBaseURL("http://127.0.0.1:8080"),
		courier.WithServiceName("inventory-client"),
		courier.WithRetryConfig(courier.DefaultRetryConfig()),
		courier.WithBreakerConfig(courier.DefaultBreakerConfig()),
		courier.WithPrometheusMetrics(reg),
		courier.WithLogger(logger),
		courier.WithDebug(),
		courier.WithRequestInterceptor(courier.CorrelationID("X-Request-Id", nil)),
		courier.WithRequestInterceptor(courier.UserAgent("inventory-client/1.0")),
	)

	client.MustRegister(
		courier.Endpoint{
			Name:   "GetItem",
			Method: http.MethodGet,
			Path:   "/items/:id",
			Bindings: []courier.Binding{
				courier.BindPath("id", 0),
			},
		},
		courier.Endpoint{
			Name:     "CreateItem",
			Method:   http.MethodPost,
			Path:     "/items",
			Bindings: []courier.Binding{courier.BindBody(0)},
			Headers:  map[string]string{"Accept": "application/json"},
		},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var widget item
	resp, err := client.Call(ctx, "GetItem", 1)
	if err != nil {
		logger.Fatal().Err(err).Msg("GetItem failed")
	}
	if err := resp.Decode(&widget); err != nil {
		logger.Fatal().Err(err).Msg("decode failed")
	}
	logger.Info().Int("id", widget.ID).Str("name", widget.Name).Msg("fetched item")

	var created item
	resp, err = client.Call(ctx, "CreateItem", item{Name: "sprocket", Stock: 7})
	if err != nil {
		logger.Fatal().Err(err).Msg("CreateItem failed")
	}
	if err := resp.Decode(&created); err != nil {
		logger.Fatal().Err(err).Msg("decode failed")
	}
	logger.Info().Int("id", created.ID).Msg("created item")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
}
