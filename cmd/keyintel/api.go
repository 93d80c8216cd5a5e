package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/WessleyAI/keyintel/engine/domain"
	"github.com/WessleyAI/keyintel/engine/imagestore"
	"github.com/WessleyAI/keyintel/engine/keydb"
	"github.com/WessleyAI/keyintel/engine/resolver"
	"github.com/WessleyAI/keyintel/engine/vin"
	"github.com/WessleyAI/keyintel/pkg/config"
	"github.com/WessleyAI/keyintel/pkg/fn"
	"github.com/WessleyAI/keyintel/pkg/metrics"
	"github.com/WessleyAI/keyintel/pkg/mid"
)

const serviceName = "keyintel"

// server holds the HTTP handlers' dependencies.
type server struct {
	res       *resolver.Resolver
	images    imagestore.Store
	log       *slog.Logger
	reg       *metrics.Registry
	tracer    trace.Tracer
	maxUpload int64

	lookups       *metrics.CounterVec
	lookupLatency *metrics.HistogramVec
	vins          *metrics.CounterVec
	imageOps      *metrics.CounterVec
}

func newServer(res *resolver.Resolver, images imagestore.Store, log *slog.Logger, reg *metrics.Registry, maxUpload int64) *server {
	s := &server{
		res:       res,
		images:    images,
		log:       log,
		reg:       reg,
		tracer:    otel.Tracer("github.com/WessleyAI/keyintel/cmd/keyintel"),
		maxUpload: maxUpload,

		lookups:       reg.Counter("keyintel_lookups_total", "Vehicle lookups by make and outcome", "make", "outcome"),
		lookupLatency: reg.Histogram("keyintel_lookup_seconds", "Resolver latency", nil),
		vins:          reg.Counter("keyintel_vin_decodes_total", "VIN decodes by result", "result"),
		imageOps:      reg.Counter("keyintel_image_ops_total", "Image store operations", "op", "result"),
	}

	models := reg.Gauge("keyintel_dataset_models", "Models loaded per make", "make")
	buckets := reg.Gauge("keyintel_dataset_ranges", "Year ranges loaded per make", "make")
	for _, st := range res.Database().Stats() {
		models.With(string(st.Make)).Set(float64(st.Models))
		buckets.With(string(st.Make)).Set(float64(st.Buckets))
	}
	return s
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/makes", s.handleMakes)
	mux.HandleFunc("GET /api/makes/{make}/models", s.handleModels)
	mux.HandleFunc("GET /api/lookup", s.handleLookup)
	mux.HandleFunc("GET /api/vin/{vin}", s.handleVIN)
	mux.HandleFunc("GET /api/images", s.handleImageGet)
	mux.HandleFunc("POST /api/images", s.handleImagePost)
	mux.Handle("GET /metrics", s.reg.Handler())
	return mux
}

// handler wraps the routes in the middleware stack. Metrics sits innermost
// so it sees the matched pattern.
func (s *server) handler(cfg config.Server) http.Handler {
	return mid.Chain(s.routes(),
		mid.Recover(s.log),
		mid.OTel(serviceName),
		mid.RequestID(),
		mid.Logger(s.log),
		mid.CORS(cfg.CORSOrigin),
		mid.RateLimit(cfg.RateLimit, cfg.RateBurst),
		mid.Metrics(s.reg),
	)
}

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve lookups, VIN decoding and images over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().String("addr", config.Default().Server.Addr, "listen address")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	s := newServer(a.res, a.images, a.log, metrics.New(), a.cfg.Server.MaxUploadBytes)

	srv := &http.Server{
		Addr:         a.cfg.Server.Addr,
		Handler:      s.handler(a.cfg.Server),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("api server starting", "addr", a.cfg.Server.Addr, "data_dir", a.cfg.DataDir)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// --- Handlers ---

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSONStatus(w, http.StatusOK, map[string]string{"status": "ok"})
}

type keyStatusOption struct {
	Code  domain.KeyStatus `json:"code"`
	Label string           `json:"label"`
}

// MakesResponse lists what the lookup form can offer.
type MakesResponse struct {
	Makes       []keydb.MakeStats `json:"makes"`
	KeyStatuses []keyStatusOption `json:"key_statuses"`
	Years       []int             `json:"years"`
}

func (s *server) handleMakes(w http.ResponseWriter, _ *http.Request) {
	writeJSONStatus(w, http.StatusOK, MakesResponse{
		Makes: s.res.Database().Stats(),
		KeyStatuses: fn.Map(domain.KeyStatuses, func(ks domain.KeyStatus) keyStatusOption {
			return keyStatusOption{Code: ks, Label: ks.Label()}
		}),
		Years: domain.Years(),
	})
}

func (s *server) handleModels(w http.ResponseWriter, r *http.Request) {
	m, err := domain.ParseMake(r.PathValue("make"))
	if err != nil {
		mid.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSONStatus(w, http.StatusOK, map[string]any{"make": m, "models": s.res.Database().Models(m)})
}

func (s *server) handleLookup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sel, err := domain.ParseSelection(q.Get("make"), q.Get("model"), q.Get("year"), q.Get("key_status"))
	if err != nil {
		mid.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	_, span := s.tracer.Start(r.Context(), "keyintel.lookup", trace.WithAttributes(
		attribute.String("vehicle.make", string(sel.Make)),
		attribute.String("vehicle.model", sel.Model),
		attribute.Int("vehicle.year", sel.Year),
		attribute.String("vehicle.key_status", string(sel.KeyStatus)),
	))
	start := time.Now()
	out := lookup(s.res, sel)
	s.lookupLatency.With().Since(start)
	span.SetAttributes(attribute.Bool("lookup.found", out.Found))
	if !out.Found {
		span.SetAttributes(attribute.String("lookup.miss", out.Reason))
	}
	span.End()

	if !out.Found {
		s.lookups.With(string(sel.Make), "miss").Inc()
		writeJSONStatus(w, http.StatusNotFound, out)
		return
	}
	s.lookups.With(string(sel.Make), "hit").Inc()
	writeJSONStatus(w, http.StatusOK, out)
}

func (s *server) handleVIN(w http.ResponseWriter, r *http.Request) {
	res := vin.Decode(r.PathValue("vin"))
	if !res.Valid {
		s.vins.With("invalid").Inc()
		writeJSONStatus(w, http.StatusUnprocessableEntity, res)
		return
	}
	outcome := "decoded"
	if res.Make == nil {
		outcome = "unknown_make"
	}
	s.vins.With(outcome).Inc()
	writeJSONStatus(w, http.StatusOK, res)
}

// imageKey resolves query parameters to a storage key.
func (s *server) imageKey(r *http.Request) (string, error) {
	q := r.URL.Query()
	sel, err := domain.ParseSelection(q.Get("make"), q.Get("model"), q.Get("year"), "")
	if err != nil {
		return "", err
	}
	t, err := domain.ParseImageType(fn.FirstNonEmpty(q.Get("type"), string(domain.ImageModule)))
	if err != nil {
		return "", err
	}
	res, _ := s.res.Resolve(sel)
	return imagestore.KeyFor(sel, res.YearRange, t), nil
}

func (s *server) handleImageGet(w http.ResponseWriter, r *http.Request) {
	key, err := s.imageKey(r)
	if err != nil {
		mid.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	path, ok := s.images.Find(key)
	if !ok {
		s.imageOps.With("find", "missing").Inc()
		mid.WriteError(w, http.StatusNotFound, "no image for "+key)
		return
	}
	s.imageOps.With("find", "found").Inc()
	http.ServeFile(w, r, path)
}

func (s *server) handleImagePost(w http.ResponseWriter, r *http.Request) {
	key, err := s.imageKey(r)
	if err != nil {
		mid.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	var body io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		f, _, err := r.FormFile("file")
		if err != nil {
			s.imageOps.With("save", "error").Inc()
			mid.WriteError(w, uploadStatus(err), fmt.Sprintf("read upload: %v", err))
			return
		}
		defer f.Close()
		body = f
	}

	path, err := s.images.Save(key, body)
	if err != nil {
		s.imageOps.With("save", "error").Inc()
		s.log.Warn("image save failed", "key", key, "err", err, "request_id", mid.RequestIDFrom(r.Context()))
		mid.WriteError(w, uploadStatus(err), err.Error())
		return
	}
	s.imageOps.With("save", "ok").Inc()
	writeJSONStatus(w, http.StatusCreated, map[string]string{"key": key, "path": path})
}

func uploadStatus(err error) int {
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, imagestore.ErrDecode), errors.Is(err, imagestore.ErrInvalidKey),
		errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
