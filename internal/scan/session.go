package scan

import (
	"time"

	"github.com/zombor/sheet-scanner/internal/partnumber"
)

// Status is the state of a scan session
type Status string

const (
	StatusIdle       Status = "idle"       // No image selected
	StatusPreviewing Status = "previewing" // Image selected, recognition not started
	StatusProcessing Status = "processing" // Recognition in flight
	StatusSucceeded  Status = "succeeded"  // Recognition finished; Result is set
	StatusFailed     Status = "failed"     // Recognition failed; Error is set
)

// IsFinal reports whether the status is terminal for a session
func (s Status) IsFinal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

func (s Status) String() string {
	return string(s)
}

// RecognitionErrorMessage is shown when the OCR engine could not read the image
const RecognitionErrorMessage = "recognition error"

// Session is one photograph of a production sheet and everything derived from it
type Session struct {
	ID          string
	ImageRef    string // storage handle, owned by this session
	Filename    string
	ContentType string
	Status      Status
	Progress    int // percent, only meaningful while processing
	Result      *partnumber.Outcome
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Snapshot is a read-only copy of the current session for the presentation layer
type Snapshot struct {
	SessionID   string              `json:"session_id,omitempty"`
	Status      Status              `json:"status"`
	Progress    int                 `json:"progress"`
	Filename    string              `json:"filename,omitempty"`
	ContentType string              `json:"content_type,omitempty"`
	Result      *partnumber.Outcome `json:"result,omitempty"`
	Message     string              `json:"message,omitempty"` // token, not-found message or error message
	Error       string              `json:"error,omitempty"`
	CreatedAt   *time.Time          `json:"created_at,omitempty"`
	UpdatedAt   *time.Time          `json:"updated_at,omitempty"`
}

// idleSnapshot is the state when there is no session
func idleSnapshot() Snapshot {
	return Snapshot{Status: StatusIdle}
}

// snapshot copies the session so callers can't mutate controller state
func (s *Session) snapshot() Snapshot {
	created, updated := s.CreatedAt, s.UpdatedAt
	snap := Snapshot{
		SessionID:   s.ID,
		Status:      s.Status,
		Progress:    s.Progress,
		Filename:    s.Filename,
		ContentType: s.ContentType,
		Error:       s.Error,
		CreatedAt:   &created,
		UpdatedAt:   &updated,
	}
	if s.Result != nil {
		result := *s.Result
		snap.Result = &result
		snap.Message = result.Message()
	}
	if s.Status == StatusFailed {
		snap.Message = s.Error
	}
	return snap
}
