package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"

	"pressadmin/internal/activity"
	"pressadmin/internal/themes"
	"pressadmin/pkg/theme"

	"go.uber.org/zap"
)

// ThemeResponse is the body of GET /api/theme.
type ThemeResponse struct {
	Theme   theme.Descriptor `json:"theme"`
	Handles []theme.Handle   `json:"handles"`
}

// ActivateRequest is the body of POST /api/theme.
type ActivateRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleListThemes(w http.ResponseWriter, r *http.Request) {
	list := []theme.Descriptor{theme.Default()}
	if s.deps.Themes != nil {
		list = append(list, s.deps.Themes.List()...)
	}
	writePage(w, r, list)
}

func (s *Server) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ThemeResponse{
		Theme:   s.deps.Loader.ActiveTheme(),
		Handles: s.deps.Loader.Handles(),
	})
}

// resolveTheme finds a theme by name. The built-in default is always
// available.
func (s *Server) resolveTheme(name string) (theme.Descriptor, error) {
	if name == theme.Default().Name {
		return theme.Default(), nil
	}
	if s.deps.Themes == nil {
		return theme.Descriptor{}, fmt.Errorf("%w: %s", themes.ErrUnknownTheme, name)
	}
	return s.deps.Themes.Get(name)
}

func (s *Server) handleActivateTheme(w http.ResponseWriter, r *http.Request) {
	var req ActivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, errors.New(`body must be {"name": "<theme>"}`))
		return
	}

	d, err := s.resolveTheme(req.Name)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.ActivationTimeout)
	defer cancel()

	if err := s.deps.Loader.ActivateTheme(ctx, d); err != nil {
		s.deps.Activity.Record(d.Name, activity.ActionThemeFailed, err.Error(), map[string]interface{}{
			"styles":  len(d.Styles),
			"scripts": len(d.Scripts),
		})
		writeError(w, statusFor(err), err)
		return
	}

	s.deps.Activity.Record(d.Name, activity.ActionThemeActivated, "activated via API", map[string]interface{}{
		"styles":  len(d.Styles),
		"scripts": len(d.Scripts),
	})
	if s.deps.Settings != nil {
		if err := s.deps.Settings.SetActiveTheme(d.Name); err != nil {
			s.logger.Error("Failed to persist active theme", zap.String("theme", d.Name), zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, ThemeResponse{
		Theme:   s.deps.Loader.ActiveTheme(),
		Handles: s.deps.Loader.Handles(),
	})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	writePage(w, r, s.deps.Activity.Recent(0))
}

// handleAdmin serves the admin shell with the active theme's resources.
func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	active := s.deps.Loader.ActiveTheme()

	var head, body string
	if s.deps.Document != nil {
		head = s.deps.Document.RenderHead()
		body = s.deps.Document.RenderBody()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>pressadmin</title>
<meta name="theme" content="%s">
%s</head>
<body>
<div id="app"></div>
%s</body>
</html>
`, html.EscapeString(active.Name), head, body)

	s.logger.Debug("Admin shell served",
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("theme", active.Name))
}
