package problems

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/puzpuzpuz/xsync/v3"
)

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioStore reads problem folders from an S3-compatible bucket. Artifacts
// are immutable once published, so they are cached for the life of the
// process.
type MinioStore struct {
	client *minio.Client
	bucket string
	cache  *xsync.MapOf[int64, Artifacts]
}

func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client failed: %w", err)
	}
	return &MinioStore{
		client: client,
		bucket: cfg.Bucket,
		cache:  xsync.NewMapOf[int64, Artifacts](),
	}, nil
}

func (s *MinioStore) Artifacts(ctx context.Context, problemID int64) (Artifacts, error) {
	if a, ok := s.cache.Load(problemID); ok {
		return a, nil
	}

	prefix := Key(problemID)
	var (
		a   Artifacts
		err error
	)
	if a.Template, err = s.get(ctx, path.Join(prefix, TemplateFile), true); err != nil {
		return Artifacts{}, err
	}
	if a.Harness, err = s.get(ctx, path.Join(prefix, HarnessFile), true); err != nil {
		return Artifacts{}, err
	}
	if a.Solution, err = s.get(ctx, path.Join(prefix, SolutionFile), false); err != nil {
		return Artifacts{}, err
	}
	if err := a.validate(problemID); err != nil {
		return Artifacts{}, err
	}

	s.cache.Store(problemID, a)
	return a, nil
}

func (s *MinioStore) get(ctx context.Context, key string, required bool) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio get object failed: %w", err)
	}
	defer obj.Close()

	// GetObject is lazy; a missing key surfaces on the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			if required {
				return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, s.bucket, key)
			}
			return nil, nil
		}
		return nil, fmt.Errorf("minio read object %s failed: %w", key, err)
	}
	return data, nil
}
