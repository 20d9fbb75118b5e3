package imageprocessing

import (
	"fmt"
	"image"
	"image/draw"
	"log/slog"
)

const (
	cropModeSquare = "square"
	cropModeFixed  = "fixed"
)

type CropParams struct {
	Mode   string
	Height int
	Width  int
}

// NewCropParamsFromMap reads either {mode: square} or {mode: fixed, width, height}.
// Mode defaults to fixed when width and height are given and to square otherwise.
func NewCropParamsFromMap(params map[string]any) (*CropParams, error) {
	_, hasWidth := params["width"]
	_, hasHeight := params["height"]
	defaultMode := cropModeSquare
	if hasWidth || hasHeight {
		defaultMode = cropModeFixed
	}
	mode := getStringParam(params, "mode", defaultMode)

	switch mode {
	case cropModeSquare:
		return &CropParams{Mode: mode}, nil
	case cropModeFixed:
		if err := validateRequiredParams(params, []string{"height", "width"}); err != nil {
			return nil, err
		}
		height := getIntParam(params, "height", 0)
		width := getIntParam(params, "width", 0)
		if height <= 0 {
			return nil, fmt.Errorf("height must be positive, got %d", height)
		}
		if width <= 0 {
			return nil, fmt.Errorf("width must be positive, got %d", width)
		}
		return &CropParams{Mode: mode, Height: height, Width: width}, nil
	default:
		return nil, fmt.Errorf("invalid crop mode: %s (must be '%s' or '%s')", mode, cropModeSquare, cropModeFixed)
	}
}

// CropCommand cuts a centered region out of a PNG image.
type CropCommand struct {
	name   string
	params *CropParams
}

func NewCropCommand(params map[string]any) (Command, error) {
	typedParams, err := NewCropParamsFromMap(params)
	if err != nil {
		return nil, err
	}
	return &CropCommand{
		name:   "CropCommand",
		params: typedParams,
	}, nil
}

func (c *CropCommand) Name() string {
	return c.name
}

func (c *CropCommand) Execute(imageData []byte) ([]byte, error) {
	img, err := decodePNG(imageData)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	cropWidth, cropHeight := c.targetSize(bounds.Dx(), bounds.Dy())
	if cropWidth == bounds.Dx() && cropHeight == bounds.Dy() {
		slog.Debug("CropCommand: no crop needed")
		return imageData, nil
	}

	x0 := bounds.Min.X + (bounds.Dx()-cropWidth)/2
	y0 := bounds.Min.Y + (bounds.Dy()-cropHeight)/2
	slog.Debug("CropCommand: center crop",
		"crop_x", x0,
		"crop_y", y0,
		"crop_width", cropWidth,
		"crop_height", cropHeight)

	cropped := image.NewRGBA(image.Rect(0, 0, cropWidth, cropHeight))
	draw.Draw(cropped, cropped.Bounds(), img, image.Point{X: x0, Y: y0}, draw.Src)
	return encodePNG(cropped)
}

// targetSize never exceeds the original dimensions.
func (c *CropCommand) targetSize(width, height int) (int, int) {
	if c.params.Mode == cropModeSquare {
		side := min(width, height)
		return side, side
	}
	return min(c.params.Width, width), min(c.params.Height, height)
}

func (c *CropCommand) GetParams() *CropParams {
	return c.params
}

func init() {
	registerCommand("CropCommand", NewCropCommand)
}
