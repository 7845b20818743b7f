package console

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/straja-ai/emotion/internal/sentiment"
)

func TestRenderEmptyForm(t *testing.T) {
	rr := httptest.NewRecorder()
	if err := Render(rr, http.StatusOK, View{Model: "m", MaxChars: 5000}); err != nil {
		t.Fatalf("render: %v", err)
	}
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := rr.Header().Get(RobotsTagHeader); got != RobotsTagValue {
		t.Fatalf("expected %s header %q, got %q", RobotsTagHeader, RobotsTagValue, got)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `<textarea id="text" name="text" maxlength="5000"`) {
		t.Fatalf("form missing textarea: %s", body)
	}
	if strings.Contains(body, `class="result`) {
		t.Fatalf("unexpected result block")
	}
}

func TestRenderResultEscapesText(t *testing.T) {
	res := sentiment.NewResult("POSITIVE", 0.9876)
	rr := httptest.NewRecorder()
	if err := Render(rr, http.StatusOK, View{Text: "<script>x</script>", Result: &res}); err != nil {
		t.Fatalf("render: %v", err)
	}
	body := rr.Body.String()
	if strings.Contains(body, "<script>x</script>") {
		t.Fatalf("text was not escaped")
	}
	if !strings.Contains(body, `class="result positive"`) || !strings.Contains(body, "98.8%") {
		t.Fatalf("result not rendered: %s", body)
	}
}

func TestRenderError(t *testing.T) {
	rr := httptest.NewRecorder()
	if err := Render(rr, http.StatusBadRequest, View{Error: "text is required"}); err != nil {
		t.Fatalf("render: %v", err)
	}
	if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), "text is required") {
		t.Fatalf("unexpected response %d %s", rr.Code, rr.Body.String())
	}
}
