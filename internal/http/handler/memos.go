package handler

import (
	"net/http"

	"memotags/internal/memo"
)

type MemoHandler struct {
	Svc *memo.Service
}

// Password is accepted as an alias of Secret; older web clients send it.
type writeMemoReq struct {
	Content  string `json:"content" validate:"required"`
	Secret   string `json:"secret" validate:"required_without=Password"`
	Password string `json:"password"`
}

type deleteMemoReq struct {
	Secret   string `json:"secret" validate:"required_without=Password"`
	Password string `json:"password"`
}

func secretOf(secret, password string) string {
	if secret != "" {
		return secret
	}
	return password
}

func (h *MemoHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req writeMemoReq
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.Svc.Create(r.Context(), memo.CreateInput{
		Content: req.Content,
		Secret:  secretOf(req.Secret, req.Password),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

type updateMemoResp struct {
	*memo.Result
	Message string `json:"message"`
}

func (h *MemoHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := memoID(w, r)
	if !ok {
		return
	}
	var req writeMemoReq
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.Svc.Update(r.Context(), id, memo.UpdateInput{
		Content: req.Content,
		Secret:  secretOf(req.Secret, req.Password),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updateMemoResp{Result: res, Message: "memo updated"})
}

type deleteMemoResp struct {
	Deleted *memo.Summary `json:"deleted"`
	Message string        `json:"message"`
}

func (h *MemoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := memoID(w, r)
	if !ok {
		return
	}
	var req deleteMemoReq
	if !decodeAndValidate(w, r, &req) {
		return
	}

	deleted, err := h.Svc.Delete(r.Context(), id, secretOf(req.Secret, req.Password))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteMemoResp{Deleted: deleted, Message: "memo deleted"})
}
