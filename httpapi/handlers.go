package httpapi

import (
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/theo-gk/wordpress-menu-caching/menucache"
	"github.com/theo-gk/wordpress-menu-caching/observe"
	"github.com/theo-gk/wordpress-menu-caching/plugin"
)

type hookRequest struct {
	Menu         menuID         `json:"menu"`
	Args         menucache.Args `json:"args,omitempty"`
	Variant      string         `json:"variant,omitempty"`
	Personalized bool           `json:"personalized,omitempty"`
	Markup       *string        `json:"markup,omitempty"`
}

func (h hookRequest) request() menucache.Request {
	return menucache.Request{
		Menu:         string(h.Menu),
		Args:         h.Args,
		Variant:      h.Variant,
		Personalized: h.Personalized,
	}
}

type preRenderResponse struct {
	Hit    bool   `json:"hit"`
	Markup string `json:"markup,omitempty"`
}

type renderResponse struct {
	Markup string `json:"markup"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

// handlePreRender runs the pre-render filters. A filter failure is a miss.
func (s *Server) handlePreRender(w http.ResponseWriter, r *http.Request) {
	var body hookRequest
	if err := readJSON(w, r, s.limit, &body); err != nil {
		writeError(w, badRequestStatus(err), err.Error())
		return
	}
	req := body.request()

	out, err := s.plugin.Registry().ApplyFilters(r.Context(), plugin.HookPreRender, nil, req)
	if err != nil {
		s.logger.Warn(r.Context(), "pre-render filters failed", observe.F("menu", req.Menu), observe.F("error", err))
		writeJSON(w, http.StatusOK, preRenderResponse{})
		return
	}
	if markup, ok := out.(string); ok {
		writeJSON(w, http.StatusOK, preRenderResponse{Hit: true, Markup: markup})
		return
	}
	writeJSON(w, http.StatusOK, preRenderResponse{})
}

// handleRender runs the post-render filters and echoes the markup.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var body hookRequest
	if err := readJSON(w, r, s.limit, &body); err != nil {
		writeError(w, badRequestStatus(err), err.Error())
		return
	}
	if body.Markup == nil {
		writeError(w, http.StatusBadRequest, "markup is required")
		return
	}
	markup := *body.Markup
	req := body.request()

	out, err := s.plugin.Registry().ApplyFilters(r.Context(), plugin.HookPostRender, markup, req)
	if err != nil {
		s.logger.Warn(r.Context(), "post-render filters failed", observe.F("menu", req.Menu), observe.F("error", err))
		writeJSON(w, http.StatusOK, renderResponse{Markup: markup})
		return
	}
	if s, ok := out.(string); ok {
		markup = s
	}
	writeJSON(w, http.StatusOK, renderResponse{Markup: markup})
}

func (s *Server) handleMenuUpdated(w http.ResponseWriter, r *http.Request) {
	var body hookRequest
	if err := readJSON(w, r, s.limit, &body); err != nil {
		writeError(w, badRequestStatus(err), err.Error())
		return
	}
	if body.Menu == "" {
		writeError(w, http.StatusBadRequest, "menu is required")
		return
	}

	if err := s.plugin.Registry().DoAction(r.Context(), plugin.HookMenuUpdated, string(body.Menu)); err != nil {
		if errors.Is(err, menucache.ErrInvalidMenu) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error(r.Context(), "menu invalidation failed", observe.F("menu", string(body.Menu)), observe.F("error", err))
		writeError(w, http.StatusInternalServerError, "menu invalidation failed")
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleSiteCacheCleared(w http.ResponseWriter, r *http.Request) {
	if err := s.plugin.Registry().DoAction(r.Context(), plugin.HookSiteCacheCleared); err != nil {
		s.logger.Error(r.Context(), "menu purge failed", observe.F("error", err))
		writeError(w, http.StatusInternalServerError, "menu purge failed")
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

type ajaxRequest struct {
	Action string   `json:"action"`
	Menus  []menuID `json:"menus"`
}

// handleAdminAjax dispatches wp_ajax_<action>. Server-side failures are
// logged and reported with a generic message.
func (s *Server) handleAdminAjax(w http.ResponseWriter, r *http.Request) {
	req, err := s.readAjax(w, r)
	if err != nil {
		writeAjax(w, badRequestStatus(err), err)
		return
	}
	if req.Action == "" {
		writeAjax(w, http.StatusBadRequest, errors.New("action is required"))
		return
	}

	err = s.plugin.Dispatch(r.Context(), req.Action, ids(req.Menus))
	switch {
	case err == nil:
		writeAjax(w, http.StatusOK, nil)
	case errors.Is(err, plugin.ErrUnknownAction),
		errors.Is(err, plugin.ErrBadArgs),
		errors.Is(err, menucache.ErrInvalidMenu):
		writeAjax(w, http.StatusBadRequest, err)
	default:
		s.logger.Error(r.Context(), "admin action failed", observe.F("action", req.Action), observe.F("error", err))
		writeAjax(w, http.StatusInternalServerError, errors.New("the menu cache could not complete the action"))
	}
}

func (s *Server) readAjax(w http.ResponseWriter, r *http.Request) (ajaxRequest, error) {
	var req ajaxRequest
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		err := readJSON(w, r, s.limit, &req)
		req.Action = strings.TrimSpace(req.Action)
		return req, err
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.limit)
	if err := r.ParseForm(); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, errBodyTooLarge
		}
		return req, errors.New("invalid form body")
	}
	req.Action = strings.TrimSpace(r.PostForm.Get("action"))
	menus := r.PostForm["menus[]"]
	if len(menus) == 0 {
		menus = r.PostForm["menus"]
	}
	for _, m := range menus {
		req.Menus = append(req.Menus, menuID(m))
	}
	return req, nil
}
