package imageprocessing

import (
	"fmt"
	"image"

	"github.com/jo-hoe/melonripe/internal/backend/inference"
	xdraw "golang.org/x/image/draw"
)

// ToTensor resizes a PNG image to height x width and returns its RGB channels
// in HWC order, each value scaled to [0,1]. Alpha is dropped.
func ToTensor(pngData []byte, height, width int) (inference.Tensor, error) {
	if height <= 0 || width <= 0 {
		return inference.Tensor{}, fmt.Errorf("tensor size must be positive, got %dx%d", height, width)
	}

	img, err := decodePNG(pngData)
	if err != nil {
		return inference.Tensor{}, err
	}

	resized := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(resized, resized.Bounds(), img, img.Bounds(), xdraw.Src, nil)

	data := make([]float32, 0, height*width*3)
	for y := 0; y < height; y++ {
		row := resized.Pix[y*resized.Stride : y*resized.Stride+width*4]
		for x := 0; x < width; x++ {
			px := row[x*4 : x*4+3]
			data = append(data, float32(px[0])/255, float32(px[1])/255, float32(px[2])/255)
		}
	}

	return inference.NewTensor([]int{height, width, 3}, data)
}

// InputSize extracts height and width from an HWC or NHWC model input shape.
func InputSize(shape []int) (height, width int, err error) {
	switch len(shape) {
	case 3:
		return shape[0], shape[1], nil
	case 4:
		if shape[0] != 1 {
			return 0, 0, fmt.Errorf("unsupported batch size %d in input shape %v", shape[0], shape)
		}
		return shape[1], shape[2], nil
	default:
		return 0, 0, fmt.Errorf("input shape %v is not an image shape", shape)
	}
}
