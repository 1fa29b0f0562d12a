package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/recipelens/platform/pkg/common/logger"
	"github.com/recipelens/platform/pkg/common/models"
	"github.com/recipelens/platform/pkg/recipe"
	"github.com/recipelens/platform/pkg/storage"
	"golang.org/x/text/language"
)

type HTTPHandler struct {
	service *Service
	maxBody int64
}

func NewHTTPHandler(service *Service, maxBody int64) *HTTPHandler {
	return &HTTPHandler{service: service, maxBody: maxBody}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/uploads", h.handleGenerateUploadURL).Methods(http.MethodPost)
	api.HandleFunc("/uploads/{token}", h.handleUpload).Methods(http.MethodPost, http.MethodPut)
	api.HandleFunc("/recipes", h.handleCreateRecipe).Methods(http.MethodPost)
	api.HandleFunc("/recipes", h.handleListRecipes).Methods(http.MethodGet)
	api.HandleFunc("/recipes/{id}", h.handleGetRecipe).Methods(http.MethodGet)
	api.HandleFunc("/recipes/{id}/export", h.handleExport).Methods(http.MethodGet)
	api.HandleFunc("/recipes/{id}/jsonld", h.handleJSONLD).Methods(http.MethodGet)
	router.HandleFunc("/files/{ref}", h.handleFile).Methods(http.MethodGet)
}

func (h *HTTPHandler) handleGenerateUploadURL(w http.ResponseWriter, r *http.Request) {
	url, err := h.service.GenerateUploadURL(r.Context())
	if err != nil {
		h.writeError(w, err, "failed to generate upload url")
		return
	}
	writeJSON(w, http.StatusOK, models.UploadURLResponse{UploadURL: url})
}

func (h *HTTPHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	ref, err := h.service.Upload(r.Context(), mux.Vars(r)["token"], r.Body)
	if err != nil {
		h.writeError(w, err, "failed to store upload")
		return
	}
	writeJSON(w, http.StatusOK, models.UploadResponse{StorageID: ref})
}

func (h *HTTPHandler) handleCreateRecipe(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	var req models.CreateRecipeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Log.WithError(err).Warn("invalid create recipe payload")
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body"})
		return
	}

	id, err := h.service.CreateRecipe(r.Context(), req.ImageID)
	if err != nil {
		h.writeError(w, err, "failed to create recipe")
		return
	}
	writeJSON(w, http.StatusAccepted, models.CreateRecipeResponse{ID: id})
}

func (h *HTTPHandler) handleGetRecipe(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.GetRecipe(r.Context(), mux.Vars(r)["id"], locale(r))
	if err != nil {
		h.writeError(w, err, "failed to fetch recipe")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *HTTPHandler) handleListRecipes(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	views, err := h.service.ListRecipes(r.Context(), limit, locale(r))
	if err != nil {
		h.writeError(w, err, "failed to list recipes")
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *HTTPHandler) handleExport(w http.ResponseWriter, r *http.Request) {
	filename, data, err := h.service.Export(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err, "failed to export recipe")
		return
	}
	w.Header().Set("Content-Type", recipe.ExportContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *HTTPHandler) handleJSONLD(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.JSONLD(r.Context(), mux.Vars(r)["id"], r.URL.Query().Get("locale"))
	if err != nil {
		h.writeError(w, err, "failed to render recipe")
		return
	}
	w.Header().Set("Content-Type", "application/ld+json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *HTTPHandler) handleFile(w http.ResponseWriter, r *http.Request) {
	rc, obj, err := h.service.OpenImage(r.Context(), mux.Vars(r)["ref"])
	if err != nil {
		h.writeError(w, err, "failed to open image")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	io.Copy(w, rc)
}

// locale prefers ?locale= and falls back to Accept-Language; the duration
// formatter resolves anything unusable to English.
func locale(r *http.Request) string {
	if l := r.URL.Query().Get("locale"); l != "" {
		return l
	}
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return ""
	}
	return tags[0].String()
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error, msg string) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrImageNotFound), errors.Is(err, storage.ErrEmptyUpload):
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, recipe.ErrNotFound):
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "recipe not found"})
	case errors.Is(err, storage.ErrObjectNotFound):
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "image not found"})
	case errors.Is(err, ErrNotReady):
		writeJSON(w, http.StatusConflict, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, storage.ErrUploadTokenInvalid):
		writeJSON(w, http.StatusForbidden, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, storage.ErrUnsupportedMedia):
		writeJSON(w, http.StatusUnsupportedMediaType, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, storage.ErrObjectTooLarge), errors.As(err, &maxBytes):
		writeJSON(w, http.StatusRequestEntityTooLarge, models.ErrorResponse{Error: "upload exceeds the size limit"})
	default:
		logger.Log.WithError(err).Error(msg)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
