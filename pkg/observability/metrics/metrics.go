package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
)

var (
	recipesCreated       atomic.Int64
	extractionsStarted   atomic.Int64
	extractionsSucceeded atomic.Int64
	extractionsFailed    atomic.Int64
	modelAttempts        atomic.Int64
	modelRetries         atomic.Int64
	modelInFlight        atomic.Int64
	uploadsStored        atomic.Int64
)

func RecipeCreated()       { recipesCreated.Add(1) }
func ExtractionStarted()   { extractionsStarted.Add(1) }
func ExtractionSucceeded() { extractionsSucceeded.Add(1) }
func ExtractionFailed()    { extractionsFailed.Add(1) }
func UploadStored()        { uploadsStored.Add(1) }

// ModelAttempt records one provider call; retry is true when it was not the first.
func ModelAttempt(retry bool) {
	modelAttempts.Add(1)
	if retry {
		modelRetries.Add(1)
	}
}

// TrackModelCall marks a provider call in flight until the returned func runs.
func TrackModelCall() func() {
	modelInFlight.Add(1)
	return func() { modelInFlight.Add(-1) }
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	RecipesCreated       int64
	ExtractionsStarted   int64
	ExtractionsSucceeded int64
	ExtractionsFailed    int64
	ModelAttempts        int64
	ModelRetries         int64
	ModelInFlight        int64
	UploadsStored        int64
}

func Read() Snapshot {
	return Snapshot{
		RecipesCreated:       recipesCreated.Load(),
		ExtractionsStarted:   extractionsStarted.Load(),
		ExtractionsSucceeded: extractionsSucceeded.Load(),
		ExtractionsFailed:    extractionsFailed.Load(),
		ModelAttempts:        modelAttempts.Load(),
		ModelRetries:         modelRetries.Load(),
		ModelInFlight:        modelInFlight.Load(),
		UploadsStored:        uploadsStored.Load(),
	}
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	write(w, Read())
}

func write(w io.Writer, s Snapshot) {
	series := []struct {
		name, help, kind string
		value            int64
	}{
		{"recipelens_recipes_created_total", "Number of recipes created from uploaded images.", "counter", s.RecipesCreated},
		{"recipelens_extractions_started_total", "Number of extraction workflow runs started.", "counter", s.ExtractionsStarted},
		{"recipelens_extractions_succeeded_total", "Number of extractions that ended in success.", "counter", s.ExtractionsSucceeded},
		{"recipelens_extractions_failed_total", "Number of extractions that ended in failed.", "counter", s.ExtractionsFailed},
		{"recipelens_model_attempts_total", "Number of model provider calls, retries included.", "counter", s.ModelAttempts},
		{"recipelens_model_retries_total", "Number of model provider calls that were retries.", "counter", s.ModelRetries},
		{"recipelens_model_in_flight", "Number of model provider calls currently running.", "gauge", s.ModelInFlight},
		{"recipelens_uploads_stored_total", "Number of images stored through upload URLs.", "counter", s.UploadsStored},
	}
	for _, m := range series {
		fmt.Fprintf(w, "# HELP %s %s\n", m.name, m.help)
		fmt.Fprintf(w, "# TYPE %s %s\n", m.name, m.kind)
		fmt.Fprintf(w, "%s %d\n", m.name, m.value)
	}
}
