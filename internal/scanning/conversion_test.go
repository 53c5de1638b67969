package scanning

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// testImage returns a small white image
func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.White)
		}
	}
	return img
}

func testPNG() []byte {
	var buf bytes.Buffer
	Expect(png.Encode(&buf, testImage())).To(Succeed())
	return buf.Bytes()
}

func testJPEG() []byte {
	var buf bytes.Buffer
	Expect(jpeg.Encode(&buf, testImage(), nil)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("prepareImageData", func() {
	var (
		data        []byte
		contentType string
		result      []byte
		converted   bool
		err         error
	)

	JustBeforeEach(func() {
		result, converted, err = prepareImageData(data, contentType)
	})

	When("the image is already PNG", func() {
		BeforeEach(func() {
			data = testPNG()
			contentType = "image/png"
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should pass the data through", func() {
			Expect(converted).To(BeFalse())
			Expect(result).To(Equal(data))
		})
	})

	When("the image is a camera JPEG", func() {
		BeforeEach(func() {
			data = testJPEG()
			contentType = " IMAGE/JPEG; charset=binary "
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should convert to PNG", func() {
			Expect(converted).To(BeTrue())
			_, format, decodeErr := image.Decode(bytes.NewReader(result))
			Expect(decodeErr).NotTo(HaveOccurred())
			Expect(format).To(Equal("png"))
		})
	})

	When("the content type is missing", func() {
		BeforeEach(func() {
			data = testJPEG()
			contentType = ""
		})

		It("should assume JPEG", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(converted).To(BeTrue())
		})
	})

	When("the bytes are not an image", func() {
		BeforeEach(func() {
			data = []byte("definitely not an image")
			contentType = "image/jpeg"
		})

		It("returns the error", func() {
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unsupported image format"))
		})
	})

	When("the image is empty", func() {
		BeforeEach(func() {
			data = nil
			contentType = "image/png"
		})

		It("returns the error", func() {
			Expect(err).To(MatchError("empty image"))
		})
	})
})

var _ = Describe("isHEICFormat", func() {
	It("should detect a heic brand", func() {
		Expect(isHEICFormat([]byte("\x00\x00\x00\x18ftypheic\x00\x00"))).To(BeTrue())
	})

	It("should detect a mif1 brand", func() {
		Expect(isHEICFormat([]byte("\x00\x00\x00\x18ftypmif1\x00\x00"))).To(BeTrue())
	})

	It("should reject other files", func() {
		Expect(isHEICFormat(testPNG())).To(BeFalse())
	})

	It("should reject short data", func() {
		Expect(isHEICFormat([]byte("ftyp"))).To(BeFalse())
	})
})

var _ = Describe("isHEICMimeType", func() {
	It("should match heic and heif types", func() {
		Expect(isHEICMimeType("image/HEIC")).To(BeTrue())
		Expect(isHEICMimeType("image/heif")).To(BeTrue())
	})

	It("should not match jpeg", func() {
		Expect(isHEICMimeType("image/jpeg")).To(BeFalse())
	})
})
