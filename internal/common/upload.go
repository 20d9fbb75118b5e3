package common

import (
	"fmt"
	"io"

	"github.com/labstack/echo/v4"
)

// MaxUploadBytes bounds a single uploaded image.
const MaxUploadBytes = 20 << 20

// ReadFormFile reads a multipart file field into memory.
func ReadFormFile(ctx echo.Context, field string) ([]byte, string, error) {
	file, err := ctx.FormFile(field)
	if err != nil {
		return nil, "", fmt.Errorf("missing form file %q: %w", field, err)
	}

	src, err := file.Open()
	if err != nil {
		return nil, file.Filename, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer func() { _ = src.Close() }()

	data, err := io.ReadAll(io.LimitReader(src, MaxUploadBytes+1))
	if err != nil {
		return nil, file.Filename, fmt.Errorf("failed to read uploaded file: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return nil, file.Filename, fmt.Errorf("uploaded file exceeds %d bytes", MaxUploadBytes)
	}
	return data, file.Filename, nil
}
