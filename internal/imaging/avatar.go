// Package imaging implements the avatar field: decode an upload, normalize
// it to a fixed square and hand the JPEG to a Storage.
package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif" // register gif
	"image/jpeg"
	_ "image/png" // register png
	"io"
	"mime/multipart"
	"path"
	"path/filepath"
	"strings"

	"github.com/diewo77/go-club/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

const (
	DefaultSize      = 512
	DefaultQuality   = 85
	DefaultMaxBytes  = 10 << 20
	DefaultMaxPixels = 40_000_000 // decoded size cap, about 40 megapixels
)

var allowedExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true}

// Storage persists encoded images and returns their public URL.
type Storage interface {
	Put(ctx context.Context, name string, r io.Reader) (string, error)
	Delete(ctx context.Context, name string) error
}

// AvatarField is the image field type of the intro form.
type AvatarField struct {
	Name      string // form field name, used in validation errors
	Storage   Storage
	Width     int
	Height    int
	Quality   int
	MaxBytes  int64
	// MaxPixels caps width*height declared by the image header.
	MaxPixels int64
	Log       *zap.Logger
}

// NewAvatarField returns a 512x512 avatar field writing to storage.
func NewAvatarField(storage Storage, quality int, maxBytes int64, log *zap.Logger) *AvatarField {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AvatarField{
		Name:      "avatar",
		Storage:   storage,
		Width:     DefaultSize,
		Height:    DefaultSize,
		Quality:   quality,
		MaxBytes:  maxBytes,
		MaxPixels: DefaultMaxPixels,
		Log:       log,
	}
}

// Clean decodes the upload, resizes it and stores it. Problems with the
// upload itself are returned as validation field errors; storage failures
// are returned as plain errors.
func (f *AvatarField) Clean(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	if fh.Size > f.MaxBytes {
		return "", &validation.InvalidFormatError{FieldName: f.Name, Value: fh.Filename, Reason: "file_too_large"}
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedExt[ext] {
		return "", &validation.InvalidFormatError{FieldName: f.Name, Value: fh.Filename, Reason: "unsupported_file"}
	}

	file, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(io.LimitReader(file, f.MaxBytes))
	if err != nil {
		f.Log.Debug("avatar header unreadable", zap.String("filename", fh.Filename), zap.Error(err))
		return "", &validation.InvalidFormatError{FieldName: f.Name, Value: fh.Filename}
	}
	if f.MaxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > f.MaxPixels {
		f.Log.Info("avatar rejected",
			zap.String("filename", fh.Filename),
			zap.Int("width", cfg.Width),
			zap.Int("height", cfg.Height))
		return "", &validation.InvalidFormatError{FieldName: f.Name, Value: fh.Filename, Reason: "file_too_large"}
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind upload: %w", err)
	}

	img, format, err := image.Decode(io.LimitReader(file, f.MaxBytes))
	if err != nil {
		f.Log.Debug("avatar decode failed", zap.String("filename", fh.Filename), zap.Error(err))
		return "", &validation.InvalidFormatError{FieldName: f.Name, Value: fh.Filename}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Normalize(img, f.Width, f.Height), &jpeg.Options{Quality: f.Quality}); err != nil {
		return "", fmt.Errorf("encode avatar: %w", err)
	}

	name := uuid.NewString() + ".jpg"
	url, err := f.Storage.Put(ctx, name, &buf)
	if err != nil {
		return "", fmt.Errorf("store avatar: %w", err)
	}
	f.Log.Info("avatar stored",
		zap.String("source_format", format),
		zap.Int("source_width", img.Bounds().Dx()),
		zap.Int("source_height", img.Bounds().Dy()),
		zap.String("url", url))
	return url, nil
}

// Discard removes an avatar stored by Clean that ended up unused.
func (f *AvatarField) Discard(ctx context.Context, url string) error {
	if url == "" {
		return nil
	}
	if err := f.Storage.Delete(ctx, path.Base(url)); err != nil {
		return fmt.Errorf("discard avatar: %w", err)
	}
	f.Log.Info("avatar discarded", zap.String("url", url))
	return nil
}

// Normalize center-crops img to the target aspect ratio and scales it to
// exactly width x height.
func Normalize(img image.Image, width, height int) *image.RGBA {
	src := img.Bounds()
	crop := src
	// compare src.Dx/src.Dy with width/height without floats
	if src.Dx()*height > src.Dy()*width {
		w := src.Dy() * width / height
		x0 := src.Min.X + (src.Dx()-w)/2
		crop = image.Rect(x0, src.Min.Y, x0+w, src.Max.Y)
	} else if src.Dx()*height < src.Dy()*width {
		h := src.Dx() * height / width
		y0 := src.Min.Y + (src.Dy()-h)/2
		crop = image.Rect(src.Min.X, y0, src.Max.X, y0+h)
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, crop, draw.Over, nil)
	return dst
}
