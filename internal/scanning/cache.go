package scanning

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.etcd.io/bbolt"
)

const recognitionBucketName = "recognitions"

// Cache stores recognized text keyed by image content. It holds no session data.
type Cache interface {
	// Get returns the cached recognition for a key, or nil if there is none
	Get(key string) (*Recognition, error)

	// Put stores a recognition under a key
	Put(key string, recognition *Recognition) error

	// Close closes the cache
	Close() error
}

// BoltCache implements the Cache interface using BoltDB
type BoltCache struct {
	db *bbolt.DB
}

// cachedRecognition is the stored form of a Recognition
type cachedRecognition struct {
	Recognition
	StoredAt time.Time `json:"stored_at"`
}

// NewBoltCache opens or creates a cache file at path
func NewBoltCache(path string) (*BoltCache, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(recognitionBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltCache{db: db}, nil
}

// Get retrieves a cached recognition
func (b *BoltCache) Get(key string) (*Recognition, error) {
	var entry *cachedRecognition
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(recognitionBucketName)).Get([]byte(key))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return nil, fmt.Errorf("reading cached recognition: %w", err)
	}
	if entry == nil {
		return nil, nil
	}
	return &entry.Recognition, nil
}

// Put stores a recognition
func (b *BoltCache) Put(key string, recognition *Recognition) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(cachedRecognition{Recognition: *recognition, StoredAt: time.Now()})
		if err != nil {
			return fmt.Errorf("marshaling recognition: %w", err)
		}
		return tx.Bucket([]byte(recognitionBucketName)).Put([]byte(key), data)
	})
}

// Close closes the database connection
func (b *BoltCache) Close() error {
	return b.db.Close()
}

// CachingRecognizer serves repeat photos of the same image from a Cache
type CachingRecognizer struct {
	next   Recognizer
	cache  Cache
	engine string
}

// NewCachingRecognizer wraps next. engine namespaces the cache keys so that
// switching engines does not return another engine's text.
func NewCachingRecognizer(next Recognizer, cache Cache, engine string) *CachingRecognizer {
	return &CachingRecognizer{
		next:   next,
		cache:  cache,
		engine: engine,
	}
}

// cacheKey returns engine:language:sha256(image)
func cacheKey(engine, language string, imageData []byte) string {
	sum := sha256.Sum256(imageData)
	return engine + ":" + language + ":" + hex.EncodeToString(sum[:])
}

// Recognize returns the cached text when present, otherwise calls the wrapped
// recognizer and caches a successful result. Cache failures never fail a recognition.
func (c *CachingRecognizer) Recognize(ctx context.Context, imageData []byte, contentType string, language string, onProgress ProgressFunc) (*Recognition, error) {
	key := cacheKey(c.engine, language, imageData)

	cached, err := c.cache.Get(key)
	if err != nil {
		slog.Warn("Failed to read recognition cache", "error", err)
	}
	if cached != nil {
		slog.Debug("Recognition cache hit", "engine", c.engine)
		report(onProgress, StatusRecognizingText, 1)
		return cached, nil
	}

	recognition, err := c.next.Recognize(ctx, imageData, contentType, language, onProgress)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Put(key, recognition); err != nil {
		slog.Warn("Failed to write recognition cache", "error", err)
	}
	return recognition, nil
}

// Close closes the wrapped recognizer and the cache
func (c *CachingRecognizer) Close() error {
	nextErr := c.next.Close()
	if err := c.cache.Close(); err != nil {
		return fmt.Errorf("closing cache: %w", err)
	}
	return nextErr
}
