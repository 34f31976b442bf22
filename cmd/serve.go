package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/salesops/internal/agent"
	"github.com/sells-group/salesops/internal/events"
	"github.com/sells-group/salesops/internal/model"
	"github.com/sells-group/salesops/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func newRouter(env *appEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Customer-ID", "X-User-ID"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/agents", func(r chi.Router) {
		r.Post("/discovery/runs", startDiscoveryRun(env))
		r.Get("/runs/{id}/progress", runProgress(env))
		r.Post("/runs/{id}/cancel", cancelRun(env))
	})

	r.Route("/intent", func(r chi.Router) {
		r.Get("/briefing", getBriefing(env))
		r.Post("/briefing/refresh", refreshBriefing(env))
		r.Get("/briefing/context/{entityType}/{entityId}", getContextual(env))
		r.Get("/recommendations", listRecommendations(env))
		r.Post("/recommendations/{id}/feedback", recordFeedback(env))
	})

	r.Post("/events", publishEvent(env))

	return r
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// customerID pulls the tenant from the request header. Empty means the
// caller forgot it; handlers reject with 400.
func customerID(r *http.Request) string {
	return r.Header.Get("X-Customer-ID")
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return n
}

// --- Agent handlers ---

func startDiscoveryRun(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customer := customerID(r)
		if customer == "" {
			writeError(w, http.StatusBadRequest, "X-Customer-ID header is required")
			return
		}

		var input agent.Input
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if errs := env.Discovery.Validate(r.Context(), &input); len(errs) > 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"errors": errs})
			return
		}

		runID := uuid.New().String()

		// The run outlives the request; detach it from the request context.
		go func() {
			out, err := env.Discovery.Execute(context.Background(), customer, runID, &input)
			if err != nil {
				zap.L().Error("discovery run failed",
					zap.String("run_id", runID),
					zap.Error(err),
				)
				return
			}
			zap.L().Info("discovery run finished",
				zap.String("run_id", runID),
				zap.String("status", string(out.Status)),
				zap.Int("leads", out.LeadsDiscovered),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"run_id": runID,
			"status": string(agent.RunRunning),
		})
	}
}

func runProgress(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		progress := env.Discovery.Progress(chi.URLParam(r, "id"))
		if progress == nil {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeJSON(w, http.StatusOK, progress)
	}
}

func cancelRun(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID := chi.URLParam(r, "id")
		if !env.Discovery.Cancel(runID) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{
			"run_id": runID,
			"status": string(agent.RunCancelled),
		})
	}
}

// --- Intent handlers ---

func getBriefing(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customer := customerID(r)
		if customer == "" {
			writeError(w, http.StatusBadRequest, "X-Customer-ID header is required")
			return
		}

		briefing, err := env.Recommendations.GetBriefing(r.Context(), customer, r.Header.Get("X-User-ID"), queryInt(r, "limit"))
		if err != nil {
			zap.L().Error("briefing failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "briefing failed")
			return
		}
		writeJSON(w, http.StatusOK, briefing)
	}
}

func refreshBriefing(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customer := customerID(r)
		if customer == "" {
			writeError(w, http.StatusBadRequest, "X-Customer-ID header is required")
			return
		}

		result, err := env.Recommendations.RefreshBriefing(r.Context(), customer)
		if err != nil {
			zap.L().Error("briefing refresh failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "refresh failed")
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func getContextual(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customer := customerID(r)
		if customer == "" {
			writeError(w, http.StatusBadRequest, "X-Customer-ID header is required")
			return
		}

		contextual, err := env.Recommendations.GetContextual(r.Context(), customer,
			chi.URLParam(r, "entityType"), chi.URLParam(r, "entityId"), queryInt(r, "limit"))
		if err != nil {
			zap.L().Error("contextual lookup failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "contextual lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, contextual)
	}
}

func listRecommendations(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customer := customerID(r)
		if customer == "" {
			writeError(w, http.StatusBadRequest, "X-Customer-ID header is required")
			return
		}

		q := r.URL.Query()
		filter := store.RecommendationFilter{
			Page:           queryInt(r, "page"),
			Limit:          queryInt(r, "limit"),
			UserID:         q.Get("user_id"),
			Status:         model.RecommendationStatus(q.Get("status")),
			IncludeExpired: q.Get("include_expired") == "true",
		}
		for _, p := range splitCSV(q.Get("priority")) {
			filter.Priority = append(filter.Priority, model.Severity(p))
		}
		for _, a := range splitCSV(q.Get("action_type")) {
			filter.ActionType = append(filter.ActionType, model.ActionType(a))
		}

		page, err := env.Recommendations.List(r.Context(), customer, filter)
		if err != nil {
			zap.L().Error("list recommendations failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "list failed")
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func recordFeedback(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customer := customerID(r)
		if customer == "" {
			writeError(w, http.StatusBadRequest, "X-Customer-ID header is required")
			return
		}

		var req struct {
			Action       model.FeedbackAction `json:"action"`
			Data         map[string]any       `json:"data,omitempty"`
			SnoozedUntil *time.Time           `json:"snoozed_until,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		fb, err := env.Recommendations.RecordFeedback(r.Context(), customer,
			chi.URLParam(r, "id"), r.Header.Get("X-User-ID"), req.Action, req.Data, req.SnoozedUntil)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "recommendation not found")
				return
			}
			zap.L().Error("feedback failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "feedback failed")
			return
		}
		writeJSON(w, http.StatusCreated, fb)
	}
}

// --- Event ingestion ---

func publishEvent(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var event events.DomainEvent
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if event.EventType == "" {
			writeError(w, http.StatusBadRequest, "eventType is required")
			return
		}
		if event.Metadata.CustomerID == "" {
			event.Metadata.CustomerID = customerID(r)
		}
		if event.Metadata.CustomerID == "" {
			writeError(w, http.StatusBadRequest, "metadata.customerId is required")
			return
		}
		if event.EventID == "" {
			event.EventID = uuid.New().String()
		}
		if event.OccurredAt.IsZero() {
			event.OccurredAt = time.Now().UTC()
		}

		env.Dispatcher.Dispatch(r.Context(), &event)

		writeJSON(w, http.StatusAccepted, map[string]string{"eventId": event.EventID})
	}
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
