package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	if !a.Videos.Health(r.Context()) {
		a.json(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
