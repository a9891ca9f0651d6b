package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"melodex/config"
	"melodex/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// minioFileStore serves library files out of one MinIO bucket. The object
// key doubles as the file id, with a leading slash so it reads as a path.
type minioFileStore struct {
	client *minio.Client
	bucket string
}

// NewMinioFileStore connects to MinIO and ensures the bucket exists.
func NewMinioFileStore(cfg *config.Config) (FileStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %q: %w", cfg.MinioBucket, err)
	}
	if !exists {
		err = client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket %q: %w", cfg.MinioBucket, err)
		}
		logger.Info("created bucket", logger.String("bucket", cfg.MinioBucket))
	}

	logger.Info("connected to MinIO",
		logger.String("endpoint", cfg.MinioEndpoint), logger.String("bucket", cfg.MinioBucket))
	return &minioFileStore{client: client, bucket: cfg.MinioBucket}, nil
}

func objectKey(id string) string {
	return strings.TrimPrefix(id, "/")
}

func isNoSuchKey(err error) bool {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code == "NoSuchKey"
	}
	return false
}

// GetByID stats one object. A missing object yields (nil, nil).
func (s *minioFileStore) GetByID(ctx context.Context, id string) (*File, error) {
	info, err := s.client.StatObject(ctx, s.bucket, objectKey(id), minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat object %q: %w", id, err)
	}
	return s.toFile(info), nil
}

// ReadAll fetches the full object body.
func (s *minioFileStore) ReadAll(ctx context.Context, id string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectKey(id), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %q: %w", id, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read object %q: %w", id, err)
	}
	return data, nil
}

// SearchByMime lists every object under a path whose mime starts with the
// given prefix.
func (s *minioFileStore) SearchByMime(ctx context.Context, mimePrefix, underPath string) ([]*File, error) {
	prefix := objectKey(underPath)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var files []*File
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if info.Err != nil {
			return nil, fmt.Errorf("failed to list objects under %q: %w", underPath, info.Err)
		}
		f := s.toFile(info)
		if strings.HasPrefix(f.Mime, mimePrefix) {
			files = append(files, f)
		}
	}
	return files, nil
}

// Siblings lists the files sharing a folder with the given file, the file
// itself included.
func (s *minioFileStore) Siblings(ctx context.Context, id string) ([]*File, error) {
	dir := path.Dir(objectKey(id))
	prefix := ""
	if dir != "." && dir != "/" {
		prefix = dir + "/"
	}

	var files []*File
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: false,
	}) {
		if info.Err != nil {
			return nil, fmt.Errorf("failed to list siblings of %q: %w", id, info.Err)
		}
		if strings.HasSuffix(info.Key, "/") {
			continue // sub-folder marker
		}
		files = append(files, s.toFile(info))
	}
	return files, nil
}

func (s *minioFileStore) toFile(info minio.ObjectInfo) *File {
	p := "/" + info.Key
	mimeType := info.ContentType
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = MimeByPath(p)
	}
	return &File{ID: p, Path: p, Mime: mimeType, Size: info.Size}
}
