package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// ErrEmptyImage is returned when an upload has no data or decodes to a zero-size image
var ErrEmptyImage = errors.New("image is empty")

// Image is an uploaded photo normalized to PNG, kept alongside its decoded form
type Image struct {
	PNG    []byte
	Width  int
	Height int

	img image.Image
}

// Load decodes JPEG, PNG, GIF, HEIC/HEIF or PDF (first page) data into an Image
func Load(data []byte, contentType string) (*Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	img, format, err := decode(data, mimeType)
	if err != nil {
		return nil, err
	}

	// bytes that really are PNG are stored as-is, whatever the declared type
	if format == "png" {
		return newImage(img, data)
	}
	return FromImage(img)
}

// FromImage wraps an already decoded image, encoding it as PNG
func FromImage(img image.Image) (*Image, error) {
	if img == nil {
		return nil, ErrEmptyImage
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return newImage(img, buf.Bytes())
}

func newImage(img image.Image, pngData []byte) (*Image, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, ErrEmptyImage
	}
	return &Image{
		PNG:    pngData,
		Width:  b.Dx(),
		Height: b.Dy(),
		img:    img,
	}, nil
}

// Decoded returns the decoded image
func (i *Image) Decoded() image.Image {
	return i.img
}

// SubImage returns the part of the image inside r, which must be in image coordinates
// starting at (0,0). The result is nil when r does not overlap the image.
func (i *Image) SubImage(r image.Rectangle) (*Image, error) {
	origin := i.img.Bounds().Min
	r = r.Add(origin).Intersect(i.img.Bounds())
	if r.Empty() {
		return nil, ErrEmptyImage
	}

	type subImager interface {
		SubImage(r image.Rectangle) image.Image
	}
	if s, ok := i.img.(subImager); ok {
		return FromImage(s.SubImage(r))
	}

	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), i.img, r.Min, draw.Src)
	return FromImage(dst)
}

// decode returns the image and the format it was actually decoded as
func decode(data []byte, mimeType string) (image.Image, string, error) {
	switch {
	case mimeType == "application/pdf":
		img, err := pdfToImage(data)
		if err != nil {
			return nil, "", fmt.Errorf("converting PDF to image: %w", err)
		}
		return img, "pdf", nil
	case isHEICFormat(data) || isHEICMimeType(mimeType):
		// Go's standard image package doesn't support HEIC (common on iPhones)
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, "", fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return img, "heic", nil
	default:
		img, format, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			if strings.Contains(err.Error(), "unknown format") || strings.Contains(err.Error(), "unsupported") {
				return nil, "", fmt.Errorf("unsupported image format. Supported formats: JPEG, PNG, GIF, HEIC, HEIF, PDF. Error: %w", err)
			}
			return nil, "", fmt.Errorf("decoding image: %w", err)
		}
		return img, format, nil
	}
}

// pdfToImage renders the first page of a PDF
func pdfToImage(pdfData []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}

// isHEICFormat checks for an ftyp box with a HEIC-related brand at offset 4
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	brand := string(data[8:12])
	return brand == "heic" || brand == "heif" || brand == "mif1" || brand == "msf1"
}

func isHEICMimeType(mimeType string) bool {
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}
