package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeTriggers(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	raw := w.Header().Get("HX-Trigger")
	require.NotEmpty(t, raw, "HX-Trigger header not set")
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

func TestHTMXResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Status(http.StatusCreated).
		Body([]byte("test")).
		Write(w)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "test", w.Body.String())
	assert.Empty(t, w.Header().Get("HX-Trigger"))
}

func TestHTMXResponseBuilder_Triggers(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		TriggerRecordsChanged("expenses").
		TriggerFormReset().
		TriggerSuccessNotification("Saved").
		Write(w)

	triggers := decodeTriggers(t, w)
	assert.Equal(t, map[string]any{"page": "expenses"}, triggers[EventRecordsChanged])
	assert.Contains(t, triggers, EventFormReset)

	note, ok := triggers[EventNotification].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "success", note["type"])
	assert.Equal(t, "Saved", note["message"])
	assert.EqualValues(t, 3000, note["duration"])
}

func TestHTMXResponseBuilder_ExportQueued(t *testing.T) {
	w := httptest.NewRecorder()
	NewHTMXResponse().Status(http.StatusAccepted).TriggerExportQueued("job-1").Write(w)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, map[string]any{"id": "job-1"}, decodeTriggers(t, w)[EventExportQueued])
}

func TestHTMXResponseBuilder_ApplyLeavesStatusToCaller(t *testing.T) {
	w := httptest.NewRecorder()
	NewHTMXResponse().
		Header("HX-Push-Url", "/expenses").
		TriggerErrorNotification("Refresh failed").
		Apply(w)
	w.WriteHeader(http.StatusTeapot)

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "/expenses", w.Header().Get("HX-Push-Url"))
	assert.Contains(t, decodeTriggers(t, w), EventNotification)
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name   string
		build  func(string) *HTMXResponseBuilder
		status int
	}{
		{"bad request", BadRequestError, http.StatusBadRequest},
		{"unprocessable", UnprocessableEntityError, http.StatusUnprocessableEntity},
		{"internal", InternalServerError, http.StatusInternalServerError},
		{"bad gateway", BadGatewayError, http.StatusBadGateway},
		{"not found", NotFoundError, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.build("<b>boom</b>").Write(w)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
			assert.Equal(t, `<div class="error">&lt;b&gt;boom&lt;/b&gt;</div>`, w.Body.String())

			note, ok := decodeTriggers(t, w)[EventNotification].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, "error", note["type"])
			assert.Equal(t, "<b>boom</b>", note["message"])
		})
	}
}
