package scanning

import (
	"context"
	"errors"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// mockRecognizer is a mock implementation of Recognizer
type mockRecognizer struct {
	recognition *Recognition
	err         error
	calls       int
	closed      bool
}

func (m *mockRecognizer) Recognize(ctx context.Context, imageData []byte, contentType string, language string, onProgress ProgressFunc) (*Recognition, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	report(onProgress, StatusRecognizingText, 0.5)
	return m.recognition, nil
}

func (m *mockRecognizer) Close() error {
	m.closed = true
	return nil
}

var _ = Describe("BoltCache", func() {
	var cache *BoltCache

	BeforeEach(func() {
		var err error
		cache, err = NewBoltCache(filepath.Join(GinkgoT().TempDir(), "cache.db"))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(cache.Close)
	})

	When("the key is missing", func() {
		It("should return nil without an error", func() {
			recognition, err := cache.Get("missing")
			Expect(err).NotTo(HaveOccurred())
			Expect(recognition).To(BeNil())
		})
	})

	When("a recognition is stored", func() {
		BeforeEach(func() {
			Expect(cache.Put("k", &Recognition{Text: "PN AB12345X", Engine: "tesseract"})).To(Succeed())
		})

		It("should return it", func() {
			recognition, err := cache.Get("k")
			Expect(err).NotTo(HaveOccurred())
			Expect(recognition).To(Equal(&Recognition{Text: "PN AB12345X", Engine: "tesseract"}))
		})
	})

	When("the path is not writable", func() {
		It("returns the error", func() {
			_, err := NewBoltCache(filepath.Join(GinkgoT().TempDir(), "missing", "cache.db"))
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("opening boltdb"))
		})
	})
})

var _ = Describe("CachingRecognizer", func() {
	var (
		next       *mockRecognizer
		cache      *BoltCache
		recognizer *CachingRecognizer
		events     []Progress
	)

	onProgress := func(p Progress) { events = append(events, p) }

	BeforeEach(func() {
		next = &mockRecognizer{recognition: &Recognition{Text: "LOTE 2024 AB12345X", Engine: "mock"}}
		var err error
		cache, err = NewBoltCache(filepath.Join(GinkgoT().TempDir(), "cache.db"))
		Expect(err).NotTo(HaveOccurred())
		recognizer = NewCachingRecognizer(next, cache, "mock")
		events = nil
	})

	AfterEach(func() {
		Expect(recognizer.Close()).To(Succeed())
	})

	When("the image has not been seen", func() {
		It("should call the wrapped recognizer", func() {
			recognition, err := recognizer.Recognize(context.Background(), []byte("img"), "image/png", "eng", onProgress)
			Expect(err).NotTo(HaveOccurred())
			Expect(recognition.Text).To(Equal("LOTE 2024 AB12345X"))
			Expect(next.calls).To(Equal(1))
		})

		It("should forward progress", func() {
			_, err := recognizer.Recognize(context.Background(), []byte("img"), "image/png", "eng", onProgress)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(Equal([]Progress{{Status: StatusRecognizingText, Progress: 0.5}}))
		})
	})

	When("the same image is recognized twice", func() {
		BeforeEach(func() {
			_, err := recognizer.Recognize(context.Background(), []byte("img"), "image/png", "eng", nil)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should serve the second call from the cache", func() {
			recognition, err := recognizer.Recognize(context.Background(), []byte("img"), "image/png", "eng", onProgress)
			Expect(err).NotTo(HaveOccurred())
			Expect(recognition.Text).To(Equal("LOTE 2024 AB12345X"))
			Expect(next.calls).To(Equal(1))
		})

		It("should report completed progress", func() {
			_, err := recognizer.Recognize(context.Background(), []byte("img"), "image/png", "eng", onProgress)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(Equal([]Progress{{Status: StatusRecognizingText, Progress: 1}}))
		})

		It("should not reuse text for another language", func() {
			_, err := recognizer.Recognize(context.Background(), []byte("img"), "image/png", "spa", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(next.calls).To(Equal(2))
		})
	})

	When("the wrapped recognizer fails", func() {
		BeforeEach(func() {
			next.err = errors.New("engine crashed")
		})

		It("returns the error", func() {
			_, err := recognizer.Recognize(context.Background(), []byte("img"), "image/png", "eng", nil)
			Expect(err).To(MatchError("engine crashed"))
		})

		It("should not cache the failure", func() {
			_, _ = recognizer.Recognize(context.Background(), []byte("img"), "image/png", "eng", nil)
			recognition, err := cache.Get(cacheKey("mock", "eng", []byte("img")))
			Expect(err).NotTo(HaveOccurred())
			Expect(recognition).To(BeNil())
		})
	})

	It("should close the wrapped recognizer", func() {
		Expect(recognizer.Close()).To(Succeed())
		Expect(next.closed).To(BeTrue())
		// AfterEach closes again; reopen so it has something to close
		var err error
		cache, err = NewBoltCache(filepath.Join(GinkgoT().TempDir(), "cache.db"))
		Expect(err).NotTo(HaveOccurred())
		recognizer = NewCachingRecognizer(next, cache, "mock")
	})
})
