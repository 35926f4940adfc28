// Package publish uploads finalized LDIF files to an S3-compatible object
// store. Uploads happen after every stream is closed; a publish failure
// never invalidates the files already written to disk.
package publish

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/flowline/target-ldif/internal/config"
)

// Publisher wraps a minio client bound to one bucket.
type Publisher struct {
	client *minio.Client
	cfg    *config.PublishConfig
}

// New builds a Publisher and verifies the target bucket exists.
func New(ctx context.Context, cfg *config.PublishConfig) (*Publisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("publish config is required")
	}

	u, err := url.Parse(cfg.EndpointURL)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint URL: %w", err)
	}
	endpoint := u.Host
	if endpoint == "" {
		endpoint = cfg.EndpointURL
	}
	useSSL := cfg.UseSSL
	if u.Scheme == "https" {
		useSSL = true
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", cfg.Bucket)
	}

	return &Publisher{client: client, cfg: cfg}, nil
}

// Upload pushes each file under <prefix>/<runID>/<basename> and returns the
// object keys written. It stops at the first failure, returning the keys
// uploaded so far.
func (p *Publisher) Upload(ctx context.Context, runID string, files []string) ([]string, error) {
	keys := make([]string, 0, len(files))
	for _, file := range files {
		key := p.objectKey(runID, file)
		_, err := p.client.FPutObject(ctx, p.cfg.Bucket, key, file, minio.PutObjectOptions{
			ContentType: "text/plain; charset=utf-8",
		})
		if err != nil {
			return keys, fmt.Errorf("upload %s to %s: %w", file, key, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (p *Publisher) objectKey(runID, file string) string {
	prefix := strings.Trim(p.cfg.Prefix, "/")
	if prefix == "" {
		return path.Join(runID, filepath.Base(file))
	}
	return path.Join(prefix, runID, filepath.Base(file))
}
