package scan

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage *LocalStorage
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		var (
			ref string
			err error
		)

		JustBeforeEach(func() {
			ref, err = storage.Save("session-1_sheet.jpg", []byte("jpeg bytes"))
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should return the filename as the handle", func() {
			Expect(ref).To(Equal("session-1_sheet.jpg"))
		})

		It("should write the image to disk", func() {
			Expect(filepath.Join(tmpDir, "session-1_sheet.jpg")).To(BeAnExistingFile())
		})
	})

	Describe("Get", func() {
		var (
			ref  string
			data []byte
			err  error
		)

		JustBeforeEach(func() {
			data, err = storage.Get(ref)
		})

		When("the image exists", func() {
			BeforeEach(func() {
				ref = "session-1_sheet.jpg"
				_, saveErr := storage.Save(ref, []byte("jpeg bytes"))
				Expect(saveErr).NotTo(HaveOccurred())
			})

			It("should return the image bytes", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(string(data)).To(Equal("jpeg bytes"))
			})
		})

		When("the image does not exist", func() {
			BeforeEach(func() {
				ref = "missing.jpg"
			})

			It("returns the error", func() {
				Expect(err).To(MatchError(ContainSubstring("reading file")))
			})

			It("should report that the file does not exist", func() {
				Expect(err).To(MatchError(os.ErrNotExist))
			})
		})
	})

	Describe("Delete", func() {
		var (
			ref string
			err error
		)

		JustBeforeEach(func() {
			err = storage.Delete(ref)
		})

		When("the image exists", func() {
			BeforeEach(func() {
				ref = "session-1_sheet.jpg"
				_, saveErr := storage.Save(ref, []byte("jpeg bytes"))
				Expect(saveErr).NotTo(HaveOccurred())
			})

			It("should remove the file from disk", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(filepath.Join(tmpDir, ref)).NotTo(BeAnExistingFile())
			})
		})

		When("the image does not exist", func() {
			BeforeEach(func() {
				ref = "missing.jpg"
			})

			It("returns the error", func() {
				Expect(err).To(MatchError(ContainSubstring("deleting file")))
			})
		})
	})

	Describe("Purge", func() {
		BeforeEach(func() {
			_, err := storage.Save("old-1.jpg", []byte("a"))
			Expect(err).NotTo(HaveOccurred())
			_, err = storage.Save("old-2.jpg", []byte("b"))
			Expect(err).NotTo(HaveOccurred())
			Expect(os.Mkdir(filepath.Join(tmpDir, "keep"), 0755)).To(Succeed())
		})

		It("should remove leftover images", func() {
			Expect(storage.Purge()).To(Succeed())
			Expect(filepath.Join(tmpDir, "old-1.jpg")).NotTo(BeAnExistingFile())
			Expect(filepath.Join(tmpDir, "old-2.jpg")).NotTo(BeAnExistingFile())
		})

		It("should leave directories alone", func() {
			Expect(storage.Purge()).To(Succeed())
			Expect(filepath.Join(tmpDir, "keep")).To(BeADirectory())
		})
	})

	Describe("NewLocalStorage", func() {
		When("the directory does not exist", func() {
			It("should create it", func() {
				storagePath := filepath.Join(GinkgoT().TempDir(), "scans")
				_, err := NewLocalStorage(storagePath)
				Expect(err).NotTo(HaveOccurred())
				Expect(storagePath).To(BeADirectory())
			})
		})

		When("the path is a file", func() {
			It("returns the error", func() {
				path := filepath.Join(GinkgoT().TempDir(), "file")
				Expect(os.WriteFile(path, []byte("x"), 0600)).To(Succeed())
				_, err := NewLocalStorage(path)
				Expect(err).To(MatchError(ContainSubstring("creating storage directory")))
			})
		})
	})
})

var _ = Describe("sanitizeFilename", func() {
	DescribeTable("cleans filenames",
		func(input, expected string) {
			Expect(sanitizeFilename(input)).To(Equal(expected))
		},
		Entry("keeps a simple name", "sheet.jpg", "sheet.jpg"),
		Entry("keeps phone names", "IMG_2024.HEIC", "IMG_2024.HEIC"),
		Entry("strips path traversal", "../../etc/passwd", "etcpasswd"),
		Entry("collapses spaces", "hoja   de  produccion.png", "hoja de produccion.png"),
		Entry("defaults an empty base", "$$$.jpg", "sheet.jpg"),
		Entry("defaults an empty name", "", "sheet"),
	)

	It("should truncate long names", func() {
		name := sanitizeFilename(strings.Repeat("a", 80) + ".jpg")
		Expect(name).To(Equal(strings.Repeat("a", 50) + ".jpg"))
	})
})
