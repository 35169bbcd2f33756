package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"pressadmin/internal/activity"
	"pressadmin/pkg/plugin"

	"go.uber.org/zap"
)

// CatalogEntry is a built-in plugin available for registration.
type CatalogEntry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Order       int    `json:"order"`
	Registered  bool   `json:"registered"`
}

// HookResponse is the result of POST /api/hooks/{name}.
type HookResponse struct {
	Results []any  `json:"results"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) sortedPlugins() []plugin.Metadata {
	snapshot := s.deps.Registry.Plugins()
	list := make([]plugin.Metadata, 0, len(snapshot))
	for _, meta := range snapshot {
		list = append(list, meta)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Descriptor.Name < list[j].Descriptor.Name
	})
	return list
}

func (s *Server) handleListPlugins(w http.ResponseWriter, r *http.Request) {
	writePage(w, r, s.sortedPlugins())
}

func (s *Server) handleGetPlugin(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	meta, ok := s.deps.Registry.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, &plugin.NotFoundError{Name: name})
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	var entries []CatalogEntry
	for _, info := range s.deps.Catalog.List() {
		_, registered := s.deps.Registry.Get(info.Name)
		entries = append(entries, CatalogEntry{
			Name:        info.Name,
			Description: info.Description,
			Order:       info.Order,
			Registered:  registered,
		})
	}
	writePage(w, r, entries)
}

func (s *Server) handleRegisterPlugin(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if s.deps.Catalog.Get(name) == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("plugin %s is not in the catalog", name))
		return
	}

	// Building runs the factory, which replaces the plugin's services in the
	// container, so a registered plugin is rejected first.
	if _, registered := s.deps.Registry.Get(name); registered {
		err := &plugin.DuplicateError{Name: name}
		s.deps.Activity.Record(name, activity.ActionPluginRejected, err.Error(), nil)
		writeError(w, http.StatusConflict, err)
		return
	}

	d, err := s.deps.Catalog.Build(s.deps.PluginContext, name)
	if err != nil {
		s.logger.Error("Failed to build plugin", zap.String("plugin", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	err = s.deps.Registry.RegisterPlugin(d)
	switch {
	case err == nil:
		s.deps.Activity.Record(name, activity.ActionPluginRegistered, "registered via API", map[string]interface{}{
			"version": d.Version,
			"hooks":   d.HookNames(),
		})
		s.persistPlugin(name, false)
		meta, _ := s.deps.Registry.Get(name)
		writeJSON(w, http.StatusCreated, meta)

	case errors.Is(err, plugin.ErrInitialization):
		// The plugin is recorded in the failed state; return its metadata
		// alongside the error.
		s.deps.Activity.Record(name, activity.ActionPluginFailed, err.Error(), nil)
		meta, _ := s.deps.Registry.Get(name)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":  err.Error(),
			"plugin": meta,
		})

	default:
		s.deps.Activity.Record(name, activity.ActionPluginRejected, err.Error(), nil)
		writeError(w, statusFor(err), err)
	}
}

func (s *Server) handleUnregisterPlugin(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.deps.Registry.UnregisterPlugin(name); err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	s.deps.Activity.Record(name, activity.ActionPluginUnregistered, "unregistered via API", nil)
	s.persistPlugin(name, true)
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "unregistered",
		"plugin": name,
	})
}

func (s *Server) persistPlugin(name string, disabled bool) {
	if s.deps.Settings == nil {
		return
	}
	if err := s.deps.Settings.SetPluginDisabled(name, disabled, s.deps.Clock.Now()); err != nil {
		s.logger.Error("Failed to persist plugin override",
			zap.String("plugin", name),
			zap.Bool("disabled", disabled),
			zap.Error(err))
	}
}

func (s *Server) handleListHooks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Registry.Hooks())
}

func (s *Server) handleExecuteHook(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var args []any
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("body must be a JSON array of arguments: %w", err))
			return
		}
	}

	results, err := s.deps.Registry.ExecuteHook(name, args...)
	if err != nil {
		var hookErr *plugin.HookError
		subject := name
		if errors.As(err, &hookErr) {
			subject = hookErr.Plugin
		}
		s.deps.Activity.Record(subject, activity.ActionHookFailed, err.Error(), map[string]interface{}{
			"hook":      name,
			"completed": len(results),
		})
		writeJSON(w, http.StatusInternalServerError, HookResponse{Results: results, Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, HookResponse{Results: results})
}
