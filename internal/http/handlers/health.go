package handlers

import (
	"net/http"

	"tryon/internal/imagegen"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{"status": "ok", "credential": a.hasCredential})
}

func (a *App) Sizes(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"sizes":   imagegen.Sizes(),
		"default": imagegen.DefaultSize,
	})
}
