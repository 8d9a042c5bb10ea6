package httpapi

import (
	"net/http"

	"github.com/riskibarqy/judging-portal/internal/domain/session"
)

type sessionDTO struct {
	LoggedIn      bool              `json:"logged_in"`
	Identity      *session.Identity `json:"identity"`
	LoginRequired bool              `json:"login_required"`
	LoginPath     string            `json:"login_path"`
	Redirect      *LoginRedirect    `json:"redirect,omitempty"`
}

func (h *Handler) sessionView(state session.State) sessionDTO {
	out := sessionDTO{
		LoggedIn:      state.LoggedIn,
		Identity:      state.Identity,
		LoginRequired: !state.LoggedIn,
		LoginPath:     h.navigator.LoginPath(),
	}
	if redirect, ok := h.navigator.Pending(); ok && !state.LoggedIn {
		out.Redirect = &redirect
	}
	return out
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetSession")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, h.sessionView(h.authService.State()))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Login")
	defer span.End()

	var req session.Credentials
	if err := h.decodeJSON(ctx, r, &req); err != nil {
		h.writeError(ctx, w, err)
		return
	}

	state, err := h.authService.SignIn(ctx, req)
	if err != nil {
		h.logger.WarnContext(ctx, "login failed", "username", req.Username, "error", err)
		h.writeError(ctx, w, err)
		return
	}
	h.navigator.Clear()

	writeSuccess(ctx, w, http.StatusOK, h.sessionView(state))
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Logout")
	defer span.End()

	h.authService.Logout(ctx)

	w.Header().Set("Location", h.navigator.LoginPath())
	writeSuccess(ctx, w, http.StatusOK, h.sessionView(h.authService.State()))
}
