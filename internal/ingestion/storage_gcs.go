package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCSSource implements ExtractSource using Google Cloud Storage.
type GCSSource struct {
	client *gcs.Client
	bucket string
	prefix string
}

// NewGCSSource creates a GCS-backed ExtractSource.
// It uses Application Default Credentials (works with Workload Identity, SA keys, gcloud auth).
func NewGCSSource(ctx context.Context, bucket, prefix string) (*GCSSource, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &GCSSource{client: client, bucket: bucket, prefix: prefix}, nil
}

// List returns the object names directly under the prefix.
func (s *GCSSource) List(ctx context.Context) ([]string, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &gcs.Query{Prefix: s.prefix, Delimiter: "/"})
	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gcs list %s/%s: %w", s.bucket, s.prefix, err)
		}
		// Delimited listings report sub-prefixes with an empty Name.
		name := strings.TrimPrefix(attrs.Name, s.prefix)
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// Fetch downloads one object.
func (s *GCSSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	key := s.prefix + name
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs read %s: %w", key, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}
