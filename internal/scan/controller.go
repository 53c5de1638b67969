package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/sheet-scanner/internal/partnumber"
	"github.com/zombor/sheet-scanner/internal/scanning"
)

var (
	// ErrNoSession is returned when an operation names a session that is not current
	ErrNoSession = errors.New("no such session")
	// ErrInvalidState is returned when a session is not in a state that allows the operation
	ErrInvalidState = errors.New("invalid session state")
	// ErrNoImage is returned when there is no selected image
	ErrNoImage = errors.New("no image selected")
)

// IDGenerator generates unique IDs for sessions
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates random UUIDs
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Controller owns the single scan session. Recognition runs in the background;
// every progress and completion event carries the ID of the session that started
// it and is dropped if that session is no longer current.
type Controller struct {
	recognizer  scanning.Recognizer
	storage     Storage
	language    string
	metrics     *Metrics
	idGenerator IDGenerator
	timeSource  TimeSource

	mu       sync.Mutex
	current  *Session
	inflight sync.WaitGroup
}

// NewController creates a new Controller with default ID generator and time source.
// metrics may be nil.
func NewController(recognizer scanning.Recognizer, storage Storage, language string, metrics *Metrics) *Controller {
	return NewControllerWithDeps(recognizer, storage, language, metrics, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewControllerWithDeps creates a new Controller with custom dependencies for testing
func NewControllerWithDeps(recognizer scanning.Recognizer, storage Storage, language string, metrics *Metrics, idGen IDGenerator, timeSrc TimeSource) *Controller {
	if language == "" {
		language = scanning.DefaultLanguage
	}
	return &Controller{
		recognizer:  recognizer,
		storage:     storage,
		language:    language,
		metrics:     metrics,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// SelectImage starts a new session for an image, replacing any previous one.
// A recognition still running for the previous session is not cancelled; its
// result is discarded when it arrives.
func (c *Controller) SelectImage(filename string, data []byte, contentType string) (Snapshot, error) {
	id := c.idGenerator.Generate()
	now := c.timeSource.Now()

	ref, err := c.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return Snapshot{}, fmt.Errorf("saving image: %w", err)
	}

	session := &Session{
		ID:          id,
		ImageRef:    ref,
		Filename:    filename,
		ContentType: contentType,
		Status:      StatusPreviewing,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	c.mu.Lock()
	prior := c.current
	c.current = session
	snap := session.snapshot()
	c.mu.Unlock()

	if prior != nil {
		c.discard(prior)
	}

	slog.Info("Image selected", "session_id", id, "filename", filename, "content_type", contentType, "file_size", len(data))
	return snap, nil
}

// StartRecognition moves a previewing session to processing and runs the OCR
// engine in the background
func (c *Controller) StartRecognition(sessionID string) error {
	c.mu.Lock()
	session := c.current
	if session == nil || session.ID != sessionID {
		c.mu.Unlock()
		return ErrNoSession
	}
	if session.Status != StatusPreviewing {
		c.mu.Unlock()
		return fmt.Errorf("%w: session is %s", ErrInvalidState, session.Status)
	}
	session.Status = StatusProcessing
	session.Progress = 0
	session.UpdatedAt = c.timeSource.Now()
	ref, contentType := session.ImageRef, session.ContentType
	c.inflight.Add(1)
	c.mu.Unlock()

	go c.recognize(sessionID, ref, contentType)
	return nil
}

// recognize runs one recognition to completion. No timeout is applied.
func (c *Controller) recognize(sessionID, ref, contentType string) {
	defer c.inflight.Done()
	started := c.timeSource.Now()

	data, err := c.storage.Get(ref)
	if err != nil {
		c.complete(sessionID, nil, fmt.Errorf("loading image: %w", err), started)
		return
	}

	recognition, err := c.recognizer.Recognize(context.Background(), data, contentType, c.language, func(p scanning.Progress) {
		c.applyProgress(sessionID, p)
	})
	c.complete(sessionID, recognition, err, started)
}

// applyProgress updates the progress bar. Only the text recognition phase counts
// and progress never goes backwards.
func (c *Controller) applyProgress(sessionID string, p scanning.Progress) {
	if p.Status != scanning.StatusRecognizingText {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	session := c.current
	if session == nil || session.ID != sessionID {
		c.metrics.observeStale()
		return
	}
	if session.Status != StatusProcessing {
		return
	}

	if percent := progressPercent(p.Progress); percent > session.Progress {
		session.Progress = percent
		session.UpdatedAt = c.timeSource.Now()
	}
}

// complete applies the terminal event of a recognition
func (c *Controller) complete(sessionID string, recognition *scanning.Recognition, recognizeErr error, started time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	session := c.current
	if session == nil || session.ID != sessionID {
		slog.Debug("Dropping result for discarded session", "session_id", sessionID)
		c.metrics.observeStale()
		return
	}
	if session.Status != StatusProcessing {
		return
	}

	now := c.timeSource.Now()
	elapsed := now.Sub(started)
	session.UpdatedAt = now

	if recognizeErr != nil {
		slog.Error("Failed to recognize image",
			"session_id", sessionID,
			"filename", session.Filename,
			"content_type", session.ContentType,
			"error", recognizeErr,
		)
		session.Status = StatusFailed
		session.Error = RecognitionErrorMessage
		c.metrics.observeOutcome(outcomeFailed, elapsed)
		return
	}

	var text, engine string
	if recognition != nil {
		text, engine = recognition.Text, recognition.Engine
	}
	outcome := partnumber.Extract(text)
	session.Status = StatusSucceeded
	session.Result = &outcome

	if outcome.Found {
		c.metrics.observeOutcome(outcomeFound, elapsed)
	} else {
		c.metrics.observeOutcome(outcomeNotFound, elapsed)
	}
	slog.Info("Scan finished",
		"session_id", sessionID,
		"engine", engine,
		"found", outcome.Found,
		"part_number", outcome.Token,
		"duration", elapsed,
	)
}

// Reset discards the current session and returns to idle
func (c *Controller) Reset() Snapshot {
	c.mu.Lock()
	prior := c.current
	c.current = nil
	c.mu.Unlock()

	if prior != nil {
		c.discard(prior)
	}
	return idleSnapshot()
}

// State returns a snapshot of the current session
func (c *Controller) State() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return idleSnapshot()
	}
	return c.current.snapshot()
}

// Image returns the selected image for preview
func (c *Controller) Image() ([]byte, string, error) {
	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return nil, "", ErrNoImage
	}
	ref, contentType := c.current.ImageRef, c.current.ContentType
	c.mu.Unlock()

	data, err := c.storage.Get(ref)
	if err != nil {
		// A concurrent reset or new selection deleted the file after we read the ref
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", ErrNoImage
		}
		return nil, "", fmt.Errorf("getting image: %w", err)
	}
	return data, contentType, nil
}

// SessionState returns a snapshot of the session with the given ID, or
// ErrNoSession if it is no longer current
func (c *Controller) SessionState(sessionID string) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil || c.current.ID != sessionID {
		return Snapshot{}, ErrNoSession
	}
	return c.current.snapshot(), nil
}

// Wait blocks until every recognition started so far has returned
func (c *Controller) Wait() {
	c.inflight.Wait()
}

// discard releases the image of a session that is no longer current
func (c *Controller) discard(session *Session) {
	if session.Status == StatusProcessing {
		slog.Debug("Discarding session with recognition in flight", "session_id", session.ID)
	}
	if err := c.storage.Delete(session.ImageRef); err != nil {
		// Log error but the session is gone either way
		slog.Warn("Failed to delete image", "session_id", session.ID, "ref", session.ImageRef, "error", err)
	}
}

// progressPercent converts a fraction to a whole percentage in [0,100]
func progressPercent(fraction float64) int {
	if math.IsNaN(fraction) {
		return 0
	}
	return int(math.Max(0, math.Min(100, math.Floor(fraction*100))))
}
