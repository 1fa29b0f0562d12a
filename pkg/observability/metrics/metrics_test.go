package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWritePrometheus(t *testing.T) {
	before := Read()
	ExtractionStarted()
	ModelAttempt(false)
	ModelAttempt(true)
	done := TrackModelCall()

	after := Read()
	if after.ExtractionsStarted != before.ExtractionsStarted+1 {
		t.Fatalf("expected started to increase by 1")
	}
	if after.ModelAttempts != before.ModelAttempts+2 || after.ModelRetries != before.ModelRetries+1 {
		t.Fatalf("unexpected model counters %+v", after)
	}
	if after.ModelInFlight != before.ModelInFlight+1 {
		t.Fatalf("expected one call in flight")
	}
	done()
	if Read().ModelInFlight != before.ModelInFlight {
		t.Fatalf("in-flight gauge should return to its previous value")
	}

	rec := httptest.NewRecorder()
	WritePrometheus(rec)
	body := rec.Body.String()
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected content type %q", ct)
	}
	for _, want := range []string{
		"# TYPE recipelens_extractions_started_total counter",
		"# TYPE recipelens_model_in_flight gauge",
		"recipelens_model_retries_total ",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("exposition missing %q:\n%s", want, body)
		}
	}
}
