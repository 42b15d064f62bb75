package fetch

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"claimforge/compliance/pkg/config"
	"claimforge/compliance/pkg/edits"
)

// Mirror archives downloaded distributions to durable storage.
type Mirror interface {
	// Put uploads the file at localPath for kind.
	Put(ctx context.Context, kind edits.Kind, localPath string) error

	// Check verifies the mirror is reachable.
	Check(ctx context.Context) error
}

// NopMirror discards everything.
type NopMirror struct{}

// Put implements Mirror.
func (NopMirror) Put(context.Context, edits.Kind, string) error { return nil }

// Check implements Mirror.
func (NopMirror) Check(context.Context) error { return nil }

// S3Mirror uploads distributions to an S3-compatible bucket under
// <prefix>/<kind>/<file>.
type S3Mirror struct {
	client     *minio.Client
	bucketName string
	region     string
	prefix     string

	mu    sync.Mutex
	ready bool
}

// NewMirror returns an S3Mirror when mirroring is enabled and a NopMirror
// otherwise.
func NewMirror(cfg config.MirrorConfig) (Mirror, error) {
	if !cfg.Enabled {
		return NopMirror{}, nil
	}
	return NewS3Mirror(cfg)
}

// NewS3Mirror creates an S3Mirror from the mirror configuration.
func NewS3Mirror(cfg config.MirrorConfig) (*S3Mirror, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("mirror endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("mirror access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("mirror bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = config.DefaultMirrorRegion
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init mirror client: %w", err)
	}

	return &S3Mirror{
		client:     client,
		bucketName: bucket,
		region:     region,
		prefix:     strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// ensureBucket creates the bucket on first use. Only success is
// remembered; a failed attempt is retried on the next call.
func (m *S3Mirror) ensureBucket(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ready {
		return nil
	}

	exists, err := m.client.BucketExists(ctx, m.bucketName)
	if err != nil {
		return err
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, m.bucketName, minio.MakeBucketOptions{Region: m.region}); err != nil {
			return err
		}
	}
	m.ready = true
	return nil
}

// Put implements Mirror.
func (m *S3Mirror) Put(ctx context.Context, kind edits.Kind, localPath string) error {
	if err := m.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}

	key := ObjectKey(m.prefix, kind, filepath.Base(localPath))
	_, err := m.client.FPutObject(ctx, m.bucketName, key, localPath, minio.PutObjectOptions{
		ContentType: contentType(localPath),
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// Check implements Mirror.
func (m *S3Mirror) Check(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucketName)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("bucket %q does not exist", m.bucketName)
	}
	return nil
}

// ObjectKey builds the object key for a mirrored file.
func ObjectKey(prefix string, kind edits.Kind, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return path.Join(string(kind), name)
	}
	return path.Join(prefix, string(kind), name)
}

func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".zip":
		return "application/zip"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".csv":
		return "text/csv"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
