package services

import (
	"context"
	"errors"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
)

// Upload file types.
const (
	FileTypeLogo  = "logo"
	FileTypePhoto = "photo"
	FileTypeFree  = "free"
)

var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrUnsupportedImage    = errors.New("unsupported image format")
	ErrFileTooLarge        = errors.New("file too large")
	ErrEmptyFile           = errors.New("empty file")
)

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// UploadResult is returned to the client after an image upload.
type UploadResult struct {
	FilePath   string `json:"file_path"`
	WasResized bool   `json:"was_resized"`
}

// UploadService validates images and hands them to Storage.
type UploadService struct {
	storage  Storage
	maxBytes int64
	now      func() time.Time
}

// NewUploadService constructs an UploadService.
func NewUploadService(storage Storage, maxBytes int64) *UploadService {
	return &UploadService{storage: storage, maxBytes: maxBytes, now: func() time.Time { return time.Now().UTC() }}
}

// MaxBytes is the configured upload limit.
func (s *UploadService) MaxBytes() int64 {
	return s.maxBytes
}

// Upload sniffs the content type, rejects anything but jpeg/png/gif/webp and
// stores the bytes unchanged.
func (s *UploadService) Upload(ctx context.Context, userID uint, fileType string, data []byte) (UploadResult, error) {
	switch fileType {
	case FileTypeLogo, FileTypePhoto, FileTypeFree:
	default:
		return UploadResult{}, ErrUnsupportedFileType
	}
	if len(data) == 0 {
		return UploadResult{}, ErrEmptyFile
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return UploadResult{}, ErrFileTooLarge
	}

	mtype := mimetype.Detect(data)
	ext, ok := allowedImageTypes[mtype.String()]
	if !ok {
		return UploadResult{}, ErrUnsupportedImage
	}

	stored, err := s.storage.Save(ctx, UploadKey(fileType, ext, s.now()), data, mtype.String())
	if err != nil {
		return UploadResult{}, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":   userID,
		"file_type": fileType,
		"mime":      mtype.String(),
		"bytes":     len(data),
		"path":      stored,
	}).Info("image uploaded")

	return UploadResult{FilePath: stored, WasResized: false}, nil
}
