package handler

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"memotags/internal/memo"

	"github.com/go-chi/chi/v5"
)

type MemoReadHandler struct {
	Svc   *memo.Service
	Vocab *memo.Vocabulary
}

func (h *MemoReadHandler) List(w http.ResponseWriter, r *http.Request) {
	out, err := h.Svc.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *MemoReadHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := memoID(w, r)
	if !ok {
		return
	}
	res, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *MemoReadHandler) Tags(w http.ResponseWriter, r *http.Request) {
	prefix := strings.TrimSpace(r.URL.Query().Get("q"))

	limit := 50
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	out, err := h.Vocab.List(r.Context(), prefix, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *MemoReadHandler) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.Svc.Categories(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": cats})
}

func (h *MemoReadHandler) ByCategory(w http.ResponseWriter, r *http.Request) {
	// chi routes on the raw path only when the request carried escapes the
	// decoded path cannot represent; otherwise the param is already decoded.
	name := chi.URLParam(r, "name")
	if r.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(name); err == nil {
			name = unescaped
		}
	}
	strip, _ := strconv.ParseBool(r.URL.Query().Get("strip"))

	out, err := h.Svc.ListByCategory(r.Context(), name, memo.ListOptions{StripTags: strip})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
