// Package s3 implements the remote document store on an S3-compatible
// backend (AWS S3 or MinIO). Each document is one JSON object; the key is
// namespace/collection/id.json.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/propiq/propiq/internal/domain"
)

// Compile-time check: DocumentStore implements domain.DocumentStore.
var _ domain.DocumentStore = (*DocumentStore)(nil)

const contentType = "application/json"

// api is the S3 client surface the store uses, narrowed for tests.
type api interface {
	GetObject(ctx context.Context, in *awss3.GetObjectInput, opts ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *awss3.PutObjectInput, opts ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *awss3.DeleteObjectInput, opts ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error)
}

// Config holds explicit construction parameters (mostly for tests). For prod
// we rely primarily on environment variables and the default credential chain.
type Config struct {
	Region    string
	Bucket    string
	Endpoint  string // optional; if set enables a custom endpoint (e.g. MinIO)
	PathStyle bool
}

// DocumentStore implements domain.DocumentStore over one S3 bucket.
type DocumentStore struct {
	client api
	bucket string
}

// New creates a document store from Config using the default AWS credential
// chain.
func New(ctx context.Context, cfg Config) (*DocumentStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &DocumentStore{client: client, bucket: cfg.Bucket}, nil
}

// NewWithClient creates a document store over an existing client.
func NewWithClient(client api, bucket string) *DocumentStore {
	return &DocumentStore{client: client, bucket: bucket}
}

func objectKey(namespace, collection, id string) string {
	return path.Join(namespace, collection, id) + ".json"
}

// AddDocument writes the document, replacing any prior object under the same
// key. Pushes may be retried, so add is a plain overwrite.
func (s *DocumentStore) AddDocument(ctx context.Context, namespace, collection, id string, doc map[string]any) error {
	return s.put(ctx, objectKey(namespace, collection, id), doc)
}

// UpdateDocument overlays the patch onto the stored document and writes the
// result back. A missing document is treated as an upsert of the patch.
func (s *DocumentStore) UpdateDocument(ctx context.Context, namespace, collection, id string, patch map[string]any) error {
	key := objectKey(namespace, collection, id)

	doc, err := s.get(ctx, key)
	if err != nil {
		var noKey *types.NoSuchKey
		if !errors.As(err, &noKey) {
			return err
		}
		doc = make(map[string]any)
	}
	for field, value := range patch {
		doc[field] = value
	}
	return s.put(ctx, key, doc)
}

// DeleteDocument removes the document. Deleting an absent document is not an
// error; S3 delete is idempotent.
func (s *DocumentStore) DeleteDocument(ctx context.Context, namespace, collection, id string) error {
	key := objectKey(namespace, collection, id)
	if _, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	}); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

func (s *DocumentStore) get(ctx context.Context, key string) (map[string]any, error) {
	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s body: %w", key, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", key, err)
	}
	return doc, nil
}

func (s *DocumentStore) put(ctx context.Context, key string, doc map[string]any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	ct := contentType
	if _, err := s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &ct,
	}); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}
