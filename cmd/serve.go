package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/IUseTheSchwartz/flowstatemanager/internal/assign"
	"github.com/IUseTheSchwartz/flowstatemanager/internal/config"
	"github.com/IUseTheSchwartz/flowstatemanager/internal/importer"
	"github.com/IUseTheSchwartz/flowstatemanager/internal/model"
	"github.com/IUseTheSchwartz/flowstatemanager/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the lead intake and distribution API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(st, cfg),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newRouter wires the HTTP API over a store. Kept separate from the
// serve command so handler behavior is testable without a listener.
func newRouter(st store.Store, cfg *config.Config) http.Handler {
	imp := importer.New(st, cfg.Import)
	dist := assign.New(st, cfg.Assign)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/import-csv", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			CSVText          string `json:"csv_text"`
			OriginalFilename string `json:"original_filename"`
			UserID           string `json:"user_id"`
			DefaultLeadType  string `json:"default_lead_type"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.CSVText == "" {
			writeError(w, http.StatusBadRequest, "csv_text is required")
			return
		}

		res, err := imp.Import(r.Context(), importer.Request{
			CSVText:          req.CSVText,
			OriginalFilename: req.OriginalFilename,
			UserID:           req.UserID,
			DefaultLeadType:  req.DefaultLeadType,
		})
		if err != nil {
			zap.L().Error("import failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	r.Post("/api/assign-leads", func(w http.ResponseWriter, r *http.Request) {
		var req assign.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.AssignToUser == "" {
			writeError(w, http.StatusBadRequest, "assign_to_user is required")
			return
		}
		if req.Count == 0 {
			req.Count = 10
		}

		res, err := dist.Distribute(r.Context(), req)
		if err != nil {
			zap.L().Error("assign failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	r.Post("/api/unassign-lead", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			LeadID        string   `json:"lead_id"`
			LeadIDs       []string `json:"lead_ids"`
			ManagerUserID string   `json:"manager_user_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		// lead_ids takes precedence; lead_id is the singular fallback
		ids := req.LeadIDs
		if len(ids) == 0 && req.LeadID != "" {
			ids = []string{req.LeadID}
		}
		if len(ids) == 0 {
			writeError(w, http.StatusBadRequest, "lead_id or lead_ids required")
			return
		}

		res, err := dist.Unassign(r.Context(), assign.UnassignRequest{
			LeadIDs:       ids,
			ManagerUserID: req.ManagerUserID,
		})
		if err != nil {
			zap.L().Error("unassign failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	r.Get("/api/leads", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := store.LeadFilter{
			Status:     model.LeadStatus(q.Get("status")),
			AssignedTo: q.Get("assigned_to"),
			State:      q.Get("state"),
			LeadType:   q.Get("lead_type"),
		}
		filter.Limit, _ = strconv.Atoi(q.Get("limit"))
		filter.Offset, _ = strconv.Atoi(q.Get("offset"))

		leads, err := st.ListLeads(r.Context(), filter)
		if err != nil {
			zap.L().Error("list leads failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		total, err := st.CountLeads(r.Context(), filter)
		if err != nil {
			zap.L().Error("count leads failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		if leads == nil {
			leads = []model.Lead{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"leads": leads,
			"total": total,
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
