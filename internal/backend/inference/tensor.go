package inference

import "fmt"

// Tensor is a dense row-major float32 array. Image tensors use HWC layout.
type Tensor struct {
	Shape []int
	Data  []float32
}

// NewTensor checks that the data length matches the shape.
func NewTensor(shape []int, data []float32) (Tensor, error) {
	size := ShapeSize(shape)
	if size != len(data) {
		return Tensor{}, fmt.Errorf("tensor shape %v holds %d values, got %d", shape, size, len(data))
	}
	return Tensor{Shape: shape, Data: data}, nil
}

// ShapeSize returns the number of elements described by shape. An empty shape has size 0.
func ShapeSize(shape []int) int {
	if len(shape) == 0 {
		return 0
	}
	size := 1
	for _, dim := range shape {
		size *= dim
	}
	return size
}
