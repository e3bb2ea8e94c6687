package http

import (
	"embed"
	"fmt"
	"html/template"
	"strconv"
)

//go:embed templates/*.html
var templateFS embed.FS

type htmlView struct {
	PageContext
	Loss template.JS
}

// newHTMLView marks the loss series as trusted script data. It is produced
// by json.Marshal over a []float64, never from user input.
func newHTMLView(v PageContext) htmlView {
	return htmlView{PageContext: v, Loss: template.JS(v.LossJSON)} //nolint:gosec // numeric JSON only
}

func parseTemplates() (*template.Template, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"fahrenheit": func(v *float64) string { return fmt.Sprintf("%.2f", *v) },
		"decimal":    func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return tmpl, nil
}
