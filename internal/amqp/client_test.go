package amqp

import (
	"context"
	"errors"
	"testing"
	"time"

	"bizdash/internal/log"
)

type fakeDelivery struct {
	acked, nacked, requeued bool
}

func (d *fakeDelivery) Ack(bool) error {
	d.acked = true
	return nil
}

func (d *fakeDelivery) Nack(_, requeue bool) error {
	d.nacked = true
	d.requeued = requeue
	return nil
}

func TestNewExportRequest(t *testing.T) {
	msg := NewExportRequest("job-1", "expenses", "q=fuel", "ana")

	if msg.JobID != "job-1" || msg.Page != "expenses" || msg.Query != "q=fuel" || msg.RequestedBy != "ana" {
		t.Errorf("NewExportRequest() = %+v", msg)
	}
	if msg.Timestamp.IsZero() {
		t.Error("NewExportRequest() Timestamp should not be zero")
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("NewExportRequest() Timestamp should be recent")
	}
}

func TestExportRequest_JSON(t *testing.T) {
	timestamp := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	msg := &ExportRequest{JobID: "j", Page: "income", Query: "year=2024", Timestamp: timestamp}

	jsonBytes, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := ExportRequestFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("ExportRequestFromJSON() error = %v", err)
	}
	if parsed.JobID != msg.JobID || parsed.Page != msg.Page || parsed.Query != msg.Query {
		t.Errorf("Parsed = %+v, want %+v", parsed, msg)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Parsed Timestamp = %v, want %v", parsed.Timestamp, msg.Timestamp)
	}
}

func TestExportRequestFromJSON_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{"job_id":`},
		{"wrong type", `{"job_id": 5, "page": "x"}`},
		{"missing page", `{"job_id": "j"}`},
		{"missing job", `{"page": "expenses"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ExportRequestFromJSON([]byte(tt.body)); err == nil {
				t.Error("ExportRequestFromJSON() should fail")
			}
		})
	}
}

func TestClient_Handle(t *testing.T) {
	c := &Client{logger: log.Discard()}
	ctx := context.Background()
	ok := []byte(`{"job_id":"j1","page":"expenses"}`)

	t.Run("success acks", func(t *testing.T) {
		d := &fakeDelivery{}
		var got *ExportRequest
		c.handle(ctx, d, ok, func(_ context.Context, r *ExportRequest) error {
			got = r
			return nil
		})
		if !d.acked || d.nacked {
			t.Errorf("expected ack, got %+v", d)
		}
		if got == nil || got.JobID != "j1" {
			t.Errorf("handler got %+v", got)
		}
	})

	t.Run("handler error drops without requeue", func(t *testing.T) {
		d := &fakeDelivery{}
		c.handle(ctx, d, ok, func(context.Context, *ExportRequest) error { return errors.New("boom") })
		if !d.nacked || d.requeued || d.acked {
			t.Errorf("expected nack without requeue, got %+v", d)
		}
	})

	t.Run("malformed body never reaches handler", func(t *testing.T) {
		d := &fakeDelivery{}
		called := false
		c.handle(ctx, d, []byte(`nope`), func(context.Context, *ExportRequest) error {
			called = true
			return nil
		})
		if called {
			t.Error("handler should not be called")
		}
		if !d.nacked || d.requeued {
			t.Errorf("expected nack without requeue, got %+v", d)
		}
	})
}
