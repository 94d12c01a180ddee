package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appscans "github.com/hzerradi/foodscan/internal/application/scans"
	domain "github.com/hzerradi/foodscan/internal/domain/scans"
	"github.com/hzerradi/foodscan/internal/middleware"
)

// uploads are bounded; scan images from phones stay well under this.
const maxUploadBytes = 10 << 20

type Router struct {
	svc    *appscans.Service
	images domain.ImageStore
}

// NewRouter wires all scan endpoints. images may be nil; multipart uploads
// are then rejected and callers must send an image_ref.
func NewRouter(svc *appscans.Service, images domain.ImageStore, checkers map[string]middleware.HealthChecker) http.Handler {
	r := &Router{svc: svc, images: images}
	mux := chi.NewRouter()

	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	mux.Get("/health", middleware.HealthHandler(checkers))
	mux.Get("/ready", middleware.HealthHandler(checkers))
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/v1", func(rt chi.Router) {
		rt.Post("/scans", r.wrap(r.handleSubmitScan))
		rt.Get("/scans", r.wrap(r.handleHistory))
		rt.Delete("/scans", r.wrap(r.handleClearHistory))
		rt.Get("/stats", r.wrap(r.handleStats))
		rt.Post("/recipes", r.wrap(r.handleRecipes))
		rt.Post("/nutrition", r.wrap(r.handleNutrition))
		rt.Get("/connection", r.wrap(r.handleConnection))
		rt.Get("/quota", r.wrap(r.handleQuota))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// errBadRequest marks caller mistakes so wrap maps them to 400.
type errBadRequest struct{ err error }

func (e errBadRequest) Error() string { return e.err.Error() }

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			var bad errBadRequest
			if errors.As(err, &bad) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(v)
}

// POST /v1/scans
// Either JSON {"image_ref": "..."} or a multipart "image" file upload. The
// outcome is always a 200 with the discriminated success/failure body; the
// quota guard is not an HTTP error.
func (r *Router) handleSubmitScan(w http.ResponseWriter, req *http.Request) error {
	user := middleware.UserFromContext(req.Context())
	middleware.IncrementScans()

	imageRef, err := r.imageRefFromRequest(req)
	if err != nil {
		return err
	}

	result := r.svc.SubmitScan(req.Context(), imageRef, user.ID)
	if !result.Success {
		if result.Msg == appscans.MsgDailyLimit || result.Msg == appscans.MsgNoUser {
			middleware.IncrementScansRejected()
		} else {
			middleware.IncrementScansFailed()
		}
	}
	return writeJSON(w, result)
}

func (r *Router) imageRefFromRequest(req *http.Request) (string, error) {
	ct := req.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		if r.images == nil {
			return "", errBadRequest{errors.New("image uploads are not configured, send image_ref instead")}
		}
		if err := req.ParseMultipartForm(maxUploadBytes); err != nil {
			return "", errBadRequest{err}
		}
		file, header, err := req.FormFile("image")
		if err != nil {
			return "", errBadRequest{err}
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
		if err != nil {
			return "", err
		}
		return r.images.Store(req.Context(), data, header.Header.Get("Content-Type"))
	}

	var body struct {
		ImageRef string `json:"image_ref"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return "", errBadRequest{err}
	}
	if err := middleware.ValidateImageRef(body.ImageRef); err != nil {
		return "", errBadRequest{err}
	}
	return body.ImageRef, nil
}

// GET /v1/scans
func (r *Router) handleHistory(w http.ResponseWriter, req *http.Request) error {
	user := middleware.UserFromContext(req.Context())
	return writeJSON(w, r.svc.HistoryFor(user.ID))
}

// DELETE /v1/scans — caller's records; ?scope=all wipes everything.
func (r *Router) handleClearHistory(w http.ResponseWriter, req *http.Request) error {
	userID := middleware.UserFromContext(req.Context()).ID
	if req.URL.Query().Get("scope") == "all" {
		userID = ""
	}
	if err := r.svc.ClearHistory(req.Context(), userID); err != nil {
		return err
	}
	return writeJSON(w, map[string]any{"cleared": true})
}

// GET /v1/stats — caller's stats; ?scope=all for global.
func (r *Router) handleStats(w http.ResponseWriter, req *http.Request) error {
	userID := middleware.UserFromContext(req.Context()).ID
	if req.URL.Query().Get("scope") == "all" {
		userID = ""
	}
	return writeJSON(w, r.svc.Stats(userID))
}

// POST /v1/recipes
func (r *Router) handleRecipes(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Ingredients []string `json:"ingredients"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return errBadRequest{err}
	}
	if err := middleware.ValidateIngredients(body.Ingredients); err != nil {
		return errBadRequest{err}
	}
	return writeJSON(w, r.svc.RecipesByIngredients(req.Context(), body.Ingredients))
}

// POST /v1/nutrition — the one path where a decode failure is an error.
func (r *Router) handleNutrition(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Food string `json:"food"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return errBadRequest{err}
	}
	if body.Food == "" {
		return errBadRequest{errors.New("food is required")}
	}
	info, err := r.svc.NutritionalInfo(req.Context(), body.Food)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return nil
	}
	return writeJSON(w, info)
}

// GET /v1/connection
func (r *Router) handleConnection(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, map[string]bool{"connected": r.svc.TestConnection(req.Context())})
}

// GET /v1/quota — provider-side key quota, best effort.
func (r *Router) handleQuota(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, r.svc.ProviderQuota(req.Context()))
}
