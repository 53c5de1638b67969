package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"github.com/zombor/sheet-scanner/internal/scanning"
)

// Progress phases reported by the engine. Only scanning.StatusRecognizingText
// advances the session's progress bar.
const (
	StatusLoadingImage    = "loading image"
	StatusInitializingAPI = "initializing api"
)

// Engine implements scanning.Recognizer using the gosseract client
type Engine struct {
	tessdataPrefix string
	clientFactory  func() *gosseract.Client
}

// Option configures an Engine
type Option func(*Engine)

// WithTessdataPrefix points Tesseract at a non-default tessdata directory
func WithTessdataPrefix(prefix string) Option {
	return func(e *Engine) { e.tessdataPrefix = prefix }
}

// New constructs a Tesseract-backed recognizer
func New(opts ...Option) *Engine {
	e := &Engine{clientFactory: gosseract.NewClient}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Recognize reads all text from an image. A fresh client is used per call so
// that a stale recognition never shares state with a newer one.
func (e *Engine) Recognize(ctx context.Context, imageData []byte, contentType string, language string, onProgress scanning.ProgressFunc) (*scanning.Recognition, error) {
	progress := func(status string, fraction float64) {
		if onProgress != nil {
			onProgress(scanning.Progress{Status: status, Progress: fraction})
		}
	}

	progress(StatusLoadingImage, 0)
	pngData, err := scanning.PreparePNG(imageData, contentType)
	if err != nil {
		return nil, err
	}
	progress(StatusLoadingImage, 1)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := e.clientFactory()
	defer c.Close()

	progress(StatusInitializingAPI, 0)
	if e.tessdataPrefix != "" {
		if err := c.SetTessdataPrefix(e.tessdataPrefix); err != nil {
			return nil, fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if language == "" {
		language = scanning.DefaultLanguage
	}
	if err := c.SetLanguage(language); err != nil {
		return nil, fmt.Errorf("set language: %w", err)
	}
	if err := c.SetVariable(gosseract.SettableVariable("preserve_interword_spaces"), "1"); err != nil {
		return nil, fmt.Errorf("set variable: %w", err)
	}
	if err := c.SetImageFromBytes(pngData); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	progress(StatusInitializingAPI, 1)

	progress(scanning.StatusRecognizingText, 0)
	text, err := c.Text()
	if err != nil {
		return nil, fmt.Errorf("recognize text: %w", err)
	}
	progress(scanning.StatusRecognizingText, 1)

	return &scanning.Recognition{
		Text:   strings.TrimSpace(text),
		Engine: "tesseract",
	}, nil
}

// Close is a no-op; clients are closed after each recognition
func (e *Engine) Close() error {
	return nil
}
