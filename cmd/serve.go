package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dqmetrics/internal/ingest"
	"github.com/sells-group/dqmetrics/internal/quality"
	"github.com/sells-group/dqmetrics/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the metrics HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := newComputeEnv(cfg.Metrics, "")
		if err != nil {
			return err
		}

		st, err := openStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		api := &apiServer{
			env:   env,
			store: st,
			tableOpts: ingest.TableOptions{
				NullMarkers:      cfg.Ingest.NullMarkers,
				NormalizeHeaders: cfg.Ingest.NormalizeHeaders,
			},
		}

		return startServer(ctx, buildRouter(api, cfg.Server.AllowedOrigins), resolvePort(servePort, cfg.Server.Port))
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// apiServer holds the handler dependencies. store may be nil, in which case
// history endpoints answer 503.
type apiServer struct {
	env       *computeEnv
	store     store.Store
	tableOpts ingest.TableOptions
}

func buildRouter(api *apiServer, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Post("/metrics", api.handleCompute)
		r.Get("/history", api.handleHistory)
		r.Get("/history/{column}/trend", api.handleTrend)
	})

	return r
}

func (a *apiServer) handleCompute(w http.ResponseWriter, r *http.Request) {
	opts := a.tableOpts
	opts.Dataset = r.URL.Query().Get("dataset")

	table, err := ingest.DecodeJSONTable(r.Body, opts)
	if err != nil {
		renderError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	persist, err := cast.ToBoolE(r.URL.Query().Get("persist"))
	if err != nil && r.URL.Query().Get("persist") != "" {
		renderError(w, r, http.StatusBadRequest, "persist must be a boolean")
		return
	}

	res, err := a.env.compute(table)
	if err != nil {
		var invalid *quality.InvalidInputError
		if errors.As(err, &invalid) {
			renderError(w, r, http.StatusBadRequest, invalid.Error())
			return
		}
		renderError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	if persist {
		if a.store == nil {
			renderError(w, r, http.StatusServiceUnavailable, "history store not configured")
			return
		}
		if _, err := a.store.AppendMetrics(r.Context(), res.Records); err != nil {
			zap.L().Error("persist metrics failed", zap.String("dataset", table.Name), zap.Error(err))
			renderError(w, r, http.StatusInternalServerError, "persist metrics failed")
			return
		}
	}

	render.JSON(w, r, res)
}

func (a *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		renderError(w, r, http.StatusServiceUnavailable, "history store not configured")
		return
	}

	filter, err := historyFilterFromQuery(r)
	if err != nil {
		renderError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	records, err := a.store.ListHistory(r.Context(), filter)
	if err != nil {
		zap.L().Error("list history failed", zap.Error(err))
		renderError(w, r, http.StatusInternalServerError, "list history failed")
		return
	}
	render.JSON(w, r, map[string]any{"records": records, "count": len(records)})
}

func (a *apiServer) handleTrend(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		renderError(w, r, http.StatusServiceUnavailable, "history store not configured")
		return
	}

	filter, err := historyFilterFromQuery(r)
	if err != nil {
		renderError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	column := chi.URLParam(r, "column")
	filter.Column = column

	records, err := a.store.ListHistory(r.Context(), filter)
	if err != nil {
		zap.L().Error("list trend failed", zap.String("column", column), zap.Error(err))
		renderError(w, r, http.StatusInternalServerError, "list history failed")
		return
	}
	render.JSON(w, r, map[string]any{"column": column, "points": store.Trend(records, column)})
}

// historyFilterFromQuery reads column, dataset, run_id, since (a duration
// such as 24h) and limit from the query string.
func historyFilterFromQuery(r *http.Request) (store.HistoryFilter, error) {
	q := r.URL.Query()
	f := store.HistoryFilter{
		Column:  q.Get("column"),
		Dataset: q.Get("dataset"),
		RunID:   q.Get("run_id"),
	}

	if v := q.Get("since"); v != "" {
		d, err := cast.ToDurationE(v)
		if err != nil || d <= 0 {
			return f, eris.Errorf("invalid since %q", v)
		}
		f.Since = time.Now().UTC().Add(-d)
	}
	if v := q.Get("limit"); v != "" {
		n, err := cast.ToIntE(v)
		if err != nil || n < 0 {
			return f, eris.Errorf("invalid limit %q", v)
		}
		f.Limit = n
	}
	return f, nil
}

func renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": msg})
}

// requestLogger logs each request through the global zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func resolvePort(flagPort, cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfgPort
}

// startServer serves handler on port until ctx is cancelled, then shuts down gracefully.
func startServer(ctx context.Context, handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

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
}
