package admin

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/max0n1x/IIS/internal/httpx"
	"github.com/max0n1x/IIS/internal/user"
)

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	var req credRequest
	if err := httpx.Decode(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	stats, err := h.repo.GetStats(r.Context(), req.UserID, req.VKey)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	var req credRequest
	if err := httpx.Decode(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	users, err := h.repo.ListUsers(r.Context(), req.UserID, req.VKey)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, users)
}

func (h *Handler) BanUser(w http.ResponseWriter, r *http.Request) {
	var req userActionRequest
	if err := httpx.Decode(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.repo.BanUser(r.Context(), req.AdminID, req.VKey, req.UserID, req.Duration); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, true)
}

func (h *Handler) UnbanUser(w http.ResponseWriter, r *http.Request) {
	var req userActionRequest
	if err := httpx.Decode(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.repo.UnbanUser(r.Context(), req.AdminID, req.VKey, req.UserID); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, true)
}

func (h *Handler) PromoteUser(w http.ResponseWriter, r *http.Request) {
	h.setRole(w, r, user.RoleModerator)
}

func (h *Handler) DemoteUser(w http.ResponseWriter, r *http.Request) {
	h.setRole(w, r, user.RoleUser)
}

func (h *Handler) setRole(w http.ResponseWriter, r *http.Request, role string) {
	var req userActionRequest
	if err := httpx.Decode(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.repo.SetRole(r.Context(), req.AdminID, req.VKey, req.UserID, role); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, true)
}

func (h *Handler) UpdateEmail(w http.ResponseWriter, r *http.Request) {
	var req userActionRequest
	if err := httpx.Decode(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.repo.UpdateEmail(r.Context(), req.AdminID, req.VKey, req.UserID, req.Email); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, true)
}

func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	var req credRequest
	if err := httpx.Decode(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	reports, err := h.repo.ListReports(r.Context(), req.UserID, req.VKey)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, reports)
}

func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "report_id"))
	if err != nil {
		http.Error(w, "invalid report id", http.StatusBadRequest)
		return
	}
	var req credRequest
	if err := httpx.Decode(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rep, err := h.repo.GetReport(r.Context(), id, req.UserID, req.VKey)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rep)
}

func (h *Handler) ResolveReport(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := httpx.Decode(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.repo.ResolveReport(r.Context(), req.ReportID, req.UserID, req.VKey, req.Action, req.BanDuration); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, true)
}

func (h *Handler) ItemAction(w http.ResponseWriter, r *http.Request) {
	var req itemActionRequest
	if err := httpx.Decode(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.repo.ItemAction(r.Context(), req.ItemID, req.UserID, req.VKey, req.Action); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, true)
}
