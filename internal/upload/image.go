package upload

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"strings"

	"golang.org/x/image/draw"
)

// DefaultMaxDimension bounds the longer edge of stored images.
const DefaultMaxDimension = 1280

// DefaultMaxPixels bounds width*height of images accepted for decoding.
const DefaultMaxPixels = 40_000_000

const jpegQuality = 85

// ErrUnsupportedImage is returned for data that is not a JPEG, PNG or GIF.
var ErrUnsupportedImage = errors.New("unsupported image")

// ErrImageTooLarge is returned for images whose pixel count exceeds the limit.
var ErrImageTooLarge = errors.New("image too large")

// ErrInvalidDataURL is returned by DecodeDataURL.
var ErrInvalidDataURL = errors.New("invalid data url")

// Downscale shrinks the image so its longer edge is at most maxDim and
// returns the encoded bytes with their content type. Images already within
// bounds are returned unchanged. JPEG stays JPEG; other formats become PNG.
// Images with more than maxPixels pixels are rejected before decoding.
func Downscale(data []byte, contentType string, maxDim, maxPixels int) ([]byte, string, error) {
	if maxDim <= 0 {
		maxDim = DefaultMaxDimension
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, "", fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageTooLarge, cfg.Width, cfg.Height, maxPixels)
	}
	if cfg.Width <= maxDim && cfg.Height <= maxDim {
		return data, contentTypeFor(format, contentType), nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	w, h := fit(cfg.Width, cfg.Height, maxDim)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if format == "jpeg" {
		if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/jpeg", nil
	}
	if err := png.Encode(&buf, dst); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "image/png", nil
}

// fit keeps the aspect ratio and never returns a zero edge.
func fit(w, h, maxDim int) (int, int) {
	if w >= h {
		nh := h * maxDim / w
		if nh < 1 {
			nh = 1
		}
		return maxDim, nh
	}
	nw := w * maxDim / h
	if nw < 1 {
		nw = 1
	}
	return nw, maxDim
}

func contentTypeFor(format, fallback string) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	}
	return fallback
}

// DecodeDataURL parses a base64 data URL such as the ones produced by a
// signature pad.
func DecodeDataURL(s string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, "", ErrInvalidDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", ErrInvalidDataURL
	}
	contentType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return nil, "", fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURL)
	}
	if contentType == "" {
		contentType = "text/plain"
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return data, contentType, nil
}
