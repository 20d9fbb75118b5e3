package imageprocessing

import (
	"fmt"
	"image"
	"log/slog"

	xdraw "golang.org/x/image/draw"
)

type PixelScaleParams struct {
	Height  *int // nil: derived from width
	Width   *int // nil: derived from height
	Upscale bool
}

func NewPixelScaleParamsFromMap(params map[string]any) (*PixelScaleParams, error) {
	_, hasHeight := params["height"]
	_, hasWidth := params["width"]
	if !hasHeight && !hasWidth {
		return nil, fmt.Errorf("at least one of 'height' or 'width' must be specified")
	}

	result := &PixelScaleParams{
		Upscale: getBoolParam(params, "upscale", false),
	}
	if hasHeight {
		height := getIntParam(params, "height", 0)
		if height <= 0 {
			return nil, fmt.Errorf("height must be positive, got %d", height)
		}
		result.Height = &height
	}
	if hasWidth {
		width := getIntParam(params, "width", 0)
		if width <= 0 {
			return nil, fmt.Errorf("width must be positive, got %d", width)
		}
		result.Width = &width
	}
	return result, nil
}

// PixelScaleCommand resizes a PNG image, keeping the aspect ratio when only one
// dimension is configured. Images are not enlarged unless upscale is set.
type PixelScaleCommand struct {
	name   string
	params *PixelScaleParams
}

func NewPixelScaleCommand(params map[string]any) (Command, error) {
	typedParams, err := NewPixelScaleParamsFromMap(params)
	if err != nil {
		return nil, err
	}
	return &PixelScaleCommand{
		name:   "PixelScaleCommand",
		params: typedParams,
	}, nil
}

func (c *PixelScaleCommand) Name() string {
	return c.name
}

func (c *PixelScaleCommand) Execute(imageData []byte) ([]byte, error) {
	img, err := decodePNG(imageData)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	targetWidth, targetHeight := c.targetSize(bounds.Dx(), bounds.Dy())
	if targetWidth == bounds.Dx() && targetHeight == bounds.Dy() {
		return imageData, nil
	}
	slog.Debug("PixelScaleCommand: scaling image",
		"original_width", bounds.Dx(),
		"original_height", bounds.Dy(),
		"target_width", targetWidth,
		"target_height", targetHeight)

	dst := image.NewRGBA(image.Rect(0, 0, targetWidth, targetHeight))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, xdraw.Src, nil)
	return encodePNG(dst)
}

func (c *PixelScaleCommand) targetSize(width, height int) (int, int) {
	aspectRatio := float64(width) / float64(height)

	var targetWidth, targetHeight int
	switch {
	case c.params.Width != nil && c.params.Height != nil:
		targetWidth, targetHeight = *c.params.Width, *c.params.Height
	case c.params.Width != nil:
		targetWidth = *c.params.Width
		targetHeight = int(float64(targetWidth) / aspectRatio)
	default:
		targetHeight = *c.params.Height
		targetWidth = int(float64(targetHeight) * aspectRatio)
	}

	if !c.params.Upscale && (targetWidth > width || targetHeight > height) {
		return width, height
	}
	return max(targetWidth, 1), max(targetHeight, 1)
}

func (c *PixelScaleCommand) GetHeight() *int {
	return c.params.Height
}

func (c *PixelScaleCommand) GetWidth() *int {
	return c.params.Width
}

func init() {
	registerCommand("PixelScaleCommand", NewPixelScaleCommand)
}
