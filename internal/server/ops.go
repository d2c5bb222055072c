// Package server exposes the operational HTTP endpoints of the process.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dtroode/sharekeeper/internal/archive"
	"github.com/dtroode/sharekeeper/internal/logger"
	"github.com/dtroode/sharekeeper/internal/model"
	"github.com/dtroode/sharekeeper/internal/service"
)

var _ model.Server = (*OpsServer)(nil)

// StatsSource reports registry counters.
type StatsSource interface {
	Stats() service.RegistryStats
}

// Pinger checks a dependency the process needs to serve requests.
type Pinger interface {
	Ping(ctx context.Context) error
}

// FileCatalog lists an owner's stored files.
type FileCatalog interface {
	List(ctx context.Context, owner model.UserID, category model.Category) ([]model.FileInfo, error)
	Page(ctx context.Context, owner model.UserID, category model.Category, page int) ([]model.FileInfo, int, error)
}

// ShareLister looks up shares and pages through a user's shares.
type ShareLister interface {
	Get(ctx context.Context, id model.ShareID) (model.Share, error)
	PageOwned(ctx context.Context, user model.UserID, page, size int) ([]model.Share, int, error)
	PageReceived(ctx context.Context, user model.UserID, page, size int) ([]model.Share, int, error)
}

// Deps are the collaborators behind the operational endpoints. Routes that
// expose user data are mounted only when Tokens is set, and then require a
// bearer token. Files and Shares may be nil, which leaves their routes
// unmounted. The archive route also needs Blobs.
type Deps struct {
	Stats    StatsSource
	Files    FileCatalog
	Blobs    model.BlobStore
	Shares   ShareLister
	Pingers  map[string]Pinger
	PageSize int
	Tokens   TokenParser
	// Admins may read the routes of every user.
	Admins []model.UserID
}

// OpsServer serves health, stats and metrics over HTTP.
type OpsServer struct {
	server *http.Server
	addr   string
	logger *logger.Logger
}

// NewOpsServer builds the server. Every pinger must succeed for the
// readiness check to pass.
func NewOpsServer(addr string, deps Deps, logger *logger.Logger) *OpsServer {
	return &OpsServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(deps, logger),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		addr:   addr,
		logger: logger,
	}
}

// NewRouter mounts the operational endpoints.
func NewRouter(deps Deps, logger *logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(logger))

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 5*time.Second)
		defer cancel()

		status, code := "ok", http.StatusOK
		checks := make(map[string]string, len(deps.Pingers))
		for name, p := range deps.Pingers {
			if err := p.Ping(ctx); err != nil {
				logger.Warn("Ops server: readiness check failed", "check", name, "error", err)
				checks[name] = "fail"
				status, code = "fail", http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}

		writeJSON(w, code, map[string]any{
			"status": status,
			"checks": checks,
		})
	})

	r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, deps.Stats.Stats())
	})

	if deps.Tokens != nil {
		r.Group(func(r chi.Router) {
			r.Use(Authenticate(deps.Tokens, logger))
			mountShareLookup(r, deps, logger)
			r.Route("/users/{userID}", func(r chi.Router) {
				r.Use(RequireUser(deps.Admins))
				mountUserRoutes(r, deps, logger)
			})
		})
	}

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// mountShareLookup serves a share by any accepted reference form.
func mountShareLookup(r chi.Router, deps Deps, logger *logger.Logger) {
	if deps.Shares == nil {
		return
	}

	r.Get("/shares/{ref}", func(w http.ResponseWriter, req *http.Request) {
		id, err := model.ParseShareRef(chi.URLParam(req, "ref"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		share, err := deps.Shares.Get(req.Context(), id)
		switch {
		case errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrExpired):
			writeError(w, http.StatusNotFound, err)
			return
		case err != nil:
			logger.Error("Ops server: failed to get share", "share_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, share)
	})
}

// mountUserRoutes serves one user's files and share listings.
func mountUserRoutes(r chi.Router, deps Deps, logger *logger.Logger) {
	if deps.Files != nil {
		r.Get("/files", func(w http.ResponseWriter, req *http.Request) {
			owner := model.UserID(chi.URLParam(req, "userID"))
			category, err := categoryParam(req)
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}

			files, total, err := deps.Files.Page(req.Context(), owner, category, pageParam(req))
			if err != nil {
				logger.Error("Ops server: failed to list files", "user_id", owner, "error", err)
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"files":       files,
				"total_pages": total,
			})
		})
	}

	if deps.Files != nil && deps.Blobs != nil {
		r.Get("/files/archive", func(w http.ResponseWriter, req *http.Request) {
			owner := model.UserID(chi.URLParam(req, "userID"))
			category, err := categoryParam(req)
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}

			files, err := deps.Files.List(req.Context(), owner, category)
			if err != nil {
				logger.Error("Ops server: failed to list files", "user_id", owner, "error", err)
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			if len(files) == 0 {
				writeError(w, http.StatusNotFound, errors.New("no files to archive"))
				return
			}

			paths := make([]string, 0, len(files))
			for _, f := range files {
				paths = append(paths, f.Path)
			}

			w.Header().Set("Content-Type", "application/zip")
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", archiveName(owner, category)))
			w.WriteHeader(http.StatusOK)

			// Headers are already sent, so a failure can only be logged.
			n, err := archive.Build(req.Context(), deps.Blobs, paths, w)
			if err != nil {
				logger.Error("Ops server: failed to build archive", "user_id", owner, "added", n, "error", err)
			}
		})
	}

	if deps.Shares != nil {
		r.Get("/shares/{kind}", func(w http.ResponseWriter, req *http.Request) {
			user := model.UserID(chi.URLParam(req, "userID"))

			var pageFn func(context.Context, model.UserID, int, int) ([]model.Share, int, error)
			switch chi.URLParam(req, "kind") {
			case "owned":
				pageFn = deps.Shares.PageOwned
			case "received":
				pageFn = deps.Shares.PageReceived
			default:
				writeError(w, http.StatusNotFound, errors.New("unknown share listing"))
				return
			}

			shares, total, err := pageFn(req.Context(), user, pageParam(req), deps.PageSize)
			if errors.Is(err, model.ErrUnknownUser) {
				writeError(w, http.StatusNotFound, err)
				return
			}
			if err != nil {
				logger.Error("Ops server: failed to list shares", "user_id", user, "error", err)
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"shares":      shares,
				"total_pages": total,
			})
		})
	}
}

// categoryParam reads the optional category query parameter. Empty means every category.
func categoryParam(req *http.Request) (model.Category, error) {
	raw := req.URL.Query().Get("category")
	if raw == "" {
		return "", nil
	}
	return model.ParseCategory(raw)
}

func archiveName(owner model.UserID, category model.Category) string {
	if category == "" {
		return fmt.Sprintf("%s_files.zip", owner)
	}
	return fmt.Sprintf("%s_%s.zip", owner, category.Dir())
}

// pageParam reads the zero-based page query parameter; anything invalid is page 0.
func pageParam(req *http.Request) int {
	page, err := strconv.Atoi(req.URL.Query().Get("page"))
	if err != nil {
		return 0
	}
	return page
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// Start serves until Stop is called.
func (s *OpsServer) Start(securityLayer model.SecurityLayer) error {
	listener, err := securityLayer.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.logger.Info("Ops server: listening", "addr", listener.Addr().String())

	err = s.server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop shuts the server down gracefully within ctx.
func (s *OpsServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *OpsServer) Address() string {
	return s.addr
}
