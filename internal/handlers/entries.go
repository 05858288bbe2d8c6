package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mindsight/journal/internal/services"
	"github.com/mindsight/journal/internal/session"
	"github.com/rs/zerolog"
)

// EntryHandler serves the journal pages. Every route requires a user.
type EntryHandler struct {
	entryService  *services.EntryService
	exportService *services.ExportService
	sessions      *session.Manager
	view          *View
	logger        zerolog.Logger
}

func NewEntryHandler(
	entryService *services.EntryService,
	exportService *services.ExportService,
	sessions *session.Manager,
	view *View,
	logger zerolog.Logger,
) *EntryHandler {
	return &EntryHandler{
		entryService:  entryService,
		exportService: exportService,
		sessions:      sessions,
		view:          view,
		logger:        logger,
	}
}

// EntryRouter registers entry routes on the given router.
func EntryRouter(r chi.Router, handler *EntryHandler) {
	r.Use(RequireLogin)

	r.Get("/add", handler.AddForm)
	r.Post("/add", handler.Add)
	r.Get("/list", handler.List)
	r.Post("/export", handler.Export)
	r.Get("/exports/{name}", handler.Download)
	r.Post("/{entryID}/delete", handler.Delete)
}

func (h *EntryHandler) AddForm(w http.ResponseWriter, r *http.Request) {
	h.view.Render(w, r, http.StatusOK, pageAddEntry, pageData{})
}

func (h *EntryHandler) Add(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		h.view.Error(w, r, http.StatusBadRequest)
		return
	}
	text := r.PostFormValue("text")

	if _, err := h.entryService.Add(r.Context(), user.ID, text); err != nil {
		var validation *services.ValidationError
		if errors.As(err, &validation) {
			h.view.Render(w, r, http.StatusOK, pageAddEntry, pageData{Error: validation.Message, Text: text})
			return
		}
		h.logger.Error().Err(err).Int("user_id", user.ID).Msg("add entry")
		h.view.Error(w, r, http.StatusInternalServerError)
		return
	}

	h.sessions.AddFlash(w, r, "Entry saved successfully!")
	redirect(w, r, "/entries/list")
}

func (h *EntryHandler) List(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	entries, err := h.entryService.List(r.Context(), user.ID)
	if err != nil {
		h.logger.Error().Err(err).Int("user_id", user.ID).Msg("list entries")
		h.view.Error(w, r, http.StatusInternalServerError)
		return
	}

	h.view.Render(w, r, http.StatusOK, pageList, pageData{
		Entries:       entries,
		ExportEnabled: h.exportService.Enabled(),
	})
}

func (h *EntryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	entryID, ok := parseEntryID(r)
	if !ok {
		h.view.Error(w, r, http.StatusNotFound)
		return
	}

	if err := h.entryService.Delete(r.Context(), user.ID, entryID); err != nil {
		switch {
		case errors.Is(err, services.ErrEntryNotFound):
			h.view.Error(w, r, http.StatusNotFound)
		case errors.Is(err, services.ErrForbidden):
			h.view.Error(w, r, http.StatusForbidden)
		default:
			h.logger.Error().Err(err).Int("entry_id", entryID).Msg("delete entry")
			h.view.Error(w, r, http.StatusInternalServerError)
		}
		return
	}

	h.sessions.AddFlash(w, r, "Entry deleted successfully!")
	redirect(w, r, "/entries/list")
}

func (h *EntryHandler) Export(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	key, err := h.exportService.Export(r.Context(), user.ID)
	switch {
	case errors.Is(err, services.ErrExportDisabled):
		h.sessions.AddFlash(w, r, "Export is not configured.")
	case err != nil:
		h.logger.Error().Err(err).Int("user_id", user.ID).Msg("export journal")
		h.sessions.AddFlash(w, r, "Export failed. Please try again later.")
	default:
		redirect(w, r, "/entries/exports/"+services.ExportName(key))
		return
	}
	redirect(w, r, "/entries/list")
}

// Download streams one of the current user's exports. Names are resolved under
// the user's own prefix, so other users' exports are not found.
func (h *EntryHandler) Download(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	name := chi.URLParam(r, "name")

	body, err := h.exportService.Open(r.Context(), user.ID, name)
	switch {
	case errors.Is(err, services.ErrExportDisabled), errors.Is(err, services.ErrExportNotFound):
		h.view.Error(w, r, http.StatusNotFound)
		return
	case err != nil:
		h.logger.Error().Err(err).Int("user_id", user.ID).Str("export", name).Msg("open export")
		h.view.Error(w, r, http.StatusInternalServerError)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="mindsight-`+name+`"`)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn().Err(err).Str("export", name).Msg("stream export")
	}
}
