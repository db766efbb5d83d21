package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Max0709202/real-estate-ai-card-sub002/internal/config"
)

// Storage persists uploaded images and returns the path stored on the card.
type Storage interface {
	Save(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// UploadKey builds the object key for an upload of fileType ("logo", "photo"
// or "free") with the given extension.
func UploadKey(fileType, ext string, now time.Time) string {
	return path.Join(fileType, now.Format("200601"), uuid.NewString()+ext)
}

// NewStorage selects the provider named in cfg.
func NewStorage(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Provider {
	case "", "local":
		return NewLocalStorage(cfg.LocalDir, cfg.PublicPrefix)
	case "s3":
		return NewS3Storage(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}

// LocalStorage writes files under a base directory.
type LocalStorage struct {
	baseDir      string
	publicPrefix string
}

// NewLocalStorage constructs a LocalStorage rooted at baseDir.
func NewLocalStorage(baseDir, publicPrefix string) (*LocalStorage, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("base dir is required for local storage")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStorage{baseDir: baseDir, publicPrefix: strings.TrimRight(publicPrefix, "/")}, nil
}

// Save writes data to baseDir/key and returns publicPrefix/key.
func (s *LocalStorage) Save(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}

	if s.publicPrefix == "" {
		return key, nil
	}
	return s.publicPrefix + "/" + key, nil
}

type s3PutAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Storage uploads to an S3 compatible bucket. Stored paths are the object keys.
type S3Storage struct {
	client s3PutAPI
	bucket string
}

// NewS3Storage builds an S3 client from cfg.
func NewS3Storage(ctx context.Context, cfg config.StorageConfig) (*S3Storage, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET must be set for s3 storage")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if cfg.S3AccessKeyID != "" && cfg.S3SecretKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretKey, "")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = cfg.S3PathStyle
	})

	return &S3Storage{client: client, bucket: cfg.S3Bucket}, nil
}

// Save puts the object and returns its key.
func (s *S3Storage) Save(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"bucket": s.bucket, "key": key}).Error("s3 upload failed")
		return "", fmt.Errorf("put object: %w", err)
	}
	return key, nil
}
