package server

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/abate-Agegnehu/musiccollectionbackend/core/music"
)

const msgDeleted = "Music deleted successfully"

// MusicHandler serves the /music resource.
type MusicHandler struct {
	svc *music.Service
}

func NewMusicHandler(svc *music.Service) *MusicHandler {
	return &MusicHandler{svc: svc}
}

func inputFrom(u *Upload) music.Input {
	return music.Input{
		Title:  u.Value("title"),
		Artist: u.Value("artist"),
		Email:  u.Value("email"),
	}
}

// CreateHandler handles POST /music.
func (h *MusicHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	upload := UploadFrom(r.Context())
	m, err := h.svc.Create(r.Context(), inputFrom(upload), upload.File)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ListHandler handles GET /music.
func (h *MusicHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	musics, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, musics)
}

// GetHandler handles GET /music/{key}. A key containing "@" is an owner
// email, anything else a record id.
func (h *MusicHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if strings.Contains(key, "@") {
		h.listByEmail(w, r, key)
		return
	}

	m, err := h.svc.Get(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ListByEmailHandler handles GET /music/email/{email}.
func (h *MusicHandler) ListByEmailHandler(w http.ResponseWriter, r *http.Request) {
	h.listByEmail(w, r, mux.Vars(r)["email"])
}

func (h *MusicHandler) listByEmail(w http.ResponseWriter, r *http.Request, email string) {
	musics, err := h.svc.ListByEmail(r.Context(), email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, musics)
}

// UpdateHandler handles PUT /music/{id}.
func (h *MusicHandler) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	upload := UploadFrom(r.Context())
	m, err := h.svc.Update(r.Context(), mux.Vars(r)["id"], inputFrom(upload), upload.File)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// DeleteHandler handles DELETE /music/{id}.
func (h *MusicHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, msgDeleted)
}
