package handlers

import "net/http"

// Index renders the home page.
func Index(view *View) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view.Render(w, r, http.StatusOK, pageHome, pageData{})
	}
}

func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
