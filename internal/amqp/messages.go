package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// ExportRequest asks the export worker to recompute a page view and write it
// to the export spreadsheet. Query is the encoded view state of the page.
type ExportRequest struct {
	JobID       string    `json:"job_id"`
	Page        string    `json:"page"`
	Query       string    `json:"query"`
	RequestedBy string    `json:"requested_by,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewExportRequest creates a request stamped with the current time.
func NewExportRequest(jobID, page, query, user string) *ExportRequest {
	return &ExportRequest{
		JobID:       jobID,
		Page:        page,
		Query:       query,
		RequestedBy: user,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExportRequest) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExportRequestFromJSON decodes a message and checks its required fields.
func ExportRequestFromJSON(data []byte) (*ExportRequest, error) {
	var msg ExportRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.JobID == "" || msg.Page == "" {
		return nil, errors.New("export request missing job_id or page")
	}
	return &msg, nil
}
