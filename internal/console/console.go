// Package console renders the HTML form used to try the analyzer by hand.
package console

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"
	"strconv"

	"github.com/straja-ai/emotion/internal/sentiment"
)

const (
	RobotsTagHeader = "X-Robots-Tag"
	RobotsTagValue  = "noindex, nofollow"
)

//go:embed form.html
var formHTML string

var formTmpl = template.Must(template.New("form").Funcs(template.FuncMap{
	"percent": func(f float64) string { return strconv.FormatFloat(f*100, 'f', 1, 64) + "%" },
}).Parse(formHTML))

// View is the data shown by the form page.
type View struct {
	Text     string
	Result   *sentiment.Result
	Error    string
	Model    string
	MaxChars int
}

// Render writes the form page with status.
func Render(w http.ResponseWriter, status int, v View) error {
	var buf bytes.Buffer
	if err := formTmpl.Execute(&buf, v); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set(RobotsTagHeader, RobotsTagValue)
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}
