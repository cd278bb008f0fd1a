package detection

import (
	"image"
	"log/slog"

	"github.com/zombor/fridgetrack/internal/imaging"
)

// DefaultPadding is the number of pixels added around a box when cropping
const DefaultPadding = 10

// Crop returns the region of img inside box, grown by padding on every side and clipped
// to the image. It returns nil when there is no image, or the box itself does not overlap it.
func Crop(img *imaging.Image, box Box, padding int) *imaging.Image {
	if img == nil {
		return nil
	}
	if box[0] >= img.Width || box[1] >= img.Height || box[2] <= 0 || box[3] <= 0 {
		return nil
	}
	padding = max(padding, 0)

	x1 := max(box[0]-padding, 0)
	y1 := max(box[1]-padding, 0)
	x2 := min(box[2]+padding, img.Width)
	y2 := min(box[3]+padding, img.Height)
	if x1 >= x2 || y1 >= y2 {
		return nil
	}

	region, err := img.SubImage(image.Rect(x1, y1, x2, y2))
	if err != nil {
		slog.Warn("Failed to crop detection", "box", box, "error", err)
		return nil
	}
	return region
}
