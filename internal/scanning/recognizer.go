package scanning

import "context"

// StatusRecognizingText is the progress phase reported while text is being read
const StatusRecognizingText = "recognizing text"

// Progress is a single progress notification from a Recognizer
type Progress struct {
	Status   string  `json:"status"`
	Progress float64 `json:"progress"` // fraction complete in [0,1]
}

// ProgressFunc receives progress notifications. It may be called zero or more times.
type ProgressFunc func(Progress)

// Recognition holds the text read from an image
type Recognition struct {
	Text   string `json:"text"`
	Engine string `json:"engine"`
}

// Recognizer defines the interface for OCR engines
type Recognizer interface {
	// Recognize reads all text from an image. Progress is reported through onProgress,
	// which may be nil.
	Recognize(ctx context.Context, imageData []byte, contentType string, language string, onProgress ProgressFunc) (*Recognition, error)
	// Close closes the recognizer and releases resources
	Close() error
}

// report calls onProgress if it is set
func report(onProgress ProgressFunc, status string, fraction float64) {
	if onProgress != nil {
		onProgress(Progress{Status: status, Progress: fraction})
	}
}
