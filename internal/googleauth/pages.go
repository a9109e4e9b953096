package googleauth

import (
	"html/template"
	"net/http"
	"os/exec"
	"runtime"
)

type pageKind int

const (
	pageSuccess pageKind = iota
	pageError
	pageCancelled
)

var pageTemplate = template.Must(template.New("page").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>sheetcal</title>
<style>body{font-family:system-ui,sans-serif;max-width:32rem;margin:4rem auto;color:#222}h1{font-size:1.4rem}</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
</body>
</html>
`))

type pageData struct {
	Title   string
	Message string
}

func renderPage(w http.ResponseWriter, status int, kind pageKind, msg string) {
	data := pageData{Title: "Error", Message: msg}
	switch kind {
	case pageSuccess:
		data = pageData{Title: "Authorized", Message: "sheetcal can now reach your sheet and calendar. You can close this window."}
	case pageCancelled:
		data = pageData{Title: "Authorization cancelled", Message: "You can close this window."}
	}
	w.WriteHeader(status)
	_ = pageTemplate.Execute(w, data)
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url) //nolint:gosec // fixed binary
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url) //nolint:gosec // fixed binary
	default:
		cmd = exec.Command("xdg-open", url) //nolint:gosec // fixed binary
	}
	return cmd.Start()
}
