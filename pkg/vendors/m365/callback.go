package m365

import (
	"html/template"
	"log/slog"
	"net/http"
)

var page = template.Must(template.New("callback").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body style="font-family: sans-serif; max-width: 40em; margin: 4em auto">
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
{{if .User}}<p><strong>User:</strong> {{.User}}</p>{{end}}
</body></html>
`))

type pageData struct {
	Title   string
	Message string
	User    string
}

func render(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := page.Execute(w, data); err != nil {
		slog.Warn("rendering m365 callback page", "error", err)
	}
}

// handleCallback completes consent in the browser.
func (p *Provider) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		msg := q.Get("error_description")
		if msg == "" {
			msg = e
		}
		render(w, http.StatusBadRequest, pageData{Title: "Authorization failed", Message: msg})
		return
	}

	if p.cfg.States == nil {
		render(w, http.StatusInternalServerError, pageData{Title: "Authorization failed", Message: "OAuth state signing is unavailable."})
		return
	}
	integration, err := p.cfg.States.Verify(q.Get("state"))
	if err != nil || integration != Integration {
		slog.Warn("m365 callback rejected", "reason", "state", "error", err, "integration", integration)
		render(w, http.StatusBadRequest, pageData{Title: "Authorization failed", Message: "The authorization link is invalid or has expired. Run m365_auth_start again."})
		return
	}

	code := q.Get("code")
	if code == "" {
		render(w, http.StatusBadRequest, pageData{Title: "Authorization failed", Message: "No authorization code was returned."})
		return
	}

	user, saved, err := p.complete(r.Context(), code)
	if err != nil {
		slog.Warn("m365 code exchange failed", "error", err)
		render(w, http.StatusBadGateway, pageData{Title: "Authorization failed", Message: err.Error()})
		return
	}

	msg := "Email, Calendar, OneDrive and Teams are now accessible. You can close this window."
	if !saved {
		msg = "Connected for this session only. The refresh token could not be saved to the secret store."
	}
	slog.Info("m365 connected", "user", user, "persisted", saved)
	render(w, http.StatusOK, pageData{Title: "Connected to Microsoft 365", Message: msg, User: user})
}
