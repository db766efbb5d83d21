package wizard

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// Upload file types accepted by the server.
const (
	FileTypeLogo  = "logo"
	FileTypePhoto = "photo"
	FileTypeFree  = "free"
)

var (
	ErrCropAspect = errors.New("crop must be square")
	ErrNotImage   = errors.New("selected file is not an image")
	ErrBadDataURL = errors.New("malformed data URL")
)

// Uploader stores one image and returns its server path.
type Uploader interface {
	Upload(ctx context.Context, fileType, filename string, data []byte) (string, error)
}

// CropRect is the crop selection in source pixels.
type CropRect struct {
	X, Y, Width, Height int
}

type pendingImage struct {
	filename    string
	contentType string
	data        []byte
}

// ImageField is one logo or profile photo input. A cropped selection is held
// until Flush; the current path falls back from this session's upload to the
// path seen at populate time and then to the cached card data.
type ImageField struct {
	FileType string

	pending  *pendingImage
	uploaded string
	initial  string
	cached   string
}

// NewImageField returns a field for fileType.
func NewImageField(fileType string) *ImageField {
	return &ImageField{FileType: fileType}
}

// Populate records the path the form was first filled with.
func (f *ImageField) Populate(path string) {
	f.initial = path
}

// SetCached records the path held in the in-memory card data.
func (f *ImageField) SetCached(path string) {
	f.cached = path
}

// SelectCropped stashes a 1:1 crop result encoded as a data URL.
func (f *ImageField) SelectCropped(dataURL, filename, contentType string, rect CropRect) error {
	if rect.Width <= 0 || rect.Width != rect.Height {
		return ErrCropAspect
	}
	if !strings.HasPrefix(contentType, "image/") {
		return ErrNotImage
	}
	data, err := decodeDataURL(dataURL)
	if err != nil {
		return err
	}
	f.pending = &pendingImage{filename: filename, contentType: contentType, data: data}
	return nil
}

// Pending reports whether a selection is waiting for Flush.
func (f *ImageField) Pending() bool {
	return f.pending != nil
}

// Flush uploads the stashed selection, if any, and returns the current path.
// On failure the selection stays pending and the previous path is kept.
func (f *ImageField) Flush(ctx context.Context, up Uploader) (string, error) {
	if f.pending == nil {
		return f.Path(), nil
	}
	path, err := up.Upload(ctx, f.FileType, f.pending.filename, f.pending.data)
	if err != nil {
		return f.Path(), fmt.Errorf("upload %s: %w", f.FileType, err)
	}
	f.uploaded = path
	f.pending = nil
	return path, nil
}

// UploadNow uploads data without cropping. Free input images use this.
func (f *ImageField) UploadNow(ctx context.Context, up Uploader, filename string, data []byte) (string, error) {
	path, err := up.Upload(ctx, f.FileType, filename, data)
	if err != nil {
		return f.Path(), err
	}
	f.uploaded = path
	return path, nil
}

// Path is the best known stored path, empty only when none was ever known.
func (f *ImageField) Path() string {
	for _, p := range []string{f.uploaded, f.initial, f.cached} {
		if p != "" {
			return p
		}
	}
	return ""
}

func decodeDataURL(dataURL string) ([]byte, error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return nil, ErrBadDataURL
	}
	comma := strings.IndexByte(dataURL, ',')
	if comma < 0 {
		return nil, ErrBadDataURL
	}
	meta, payload := dataURL[len("data:"):comma], dataURL[comma+1:]
	if !strings.HasSuffix(meta, ";base64") {
		return nil, ErrBadDataURL
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadDataURL, err)
	}
	return data, nil
}
