package supabase

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	storage "github.com/supabase-community/storage-go"
	"golang.org/x/sync/errgroup"

	"bodylog-backend/internal/bodylog"
	"bodylog-backend/internal/retry"
)

const signConcurrency = 4

// ObjectStore is the slice of the storage API the body log needs.
type ObjectStore interface {
	Upload(path string, data []byte, contentType string) error
	SignedURL(path string, expiresIn int) (string, error)
	Remove(paths []string) error
}

type bucketObjects struct {
	client *storage.Client
	bucket string
}

// NewBucketObjects binds a storage-go client to one bucket.
func NewBucketObjects(client *storage.Client, bucket string) ObjectStore {
	return &bucketObjects{client: client, bucket: bucket}
}

func (b *bucketObjects) Upload(path string, data []byte, contentType string) error {
	upsert := false
	_, err := b.client.UploadFile(b.bucket, path, bytes.NewReader(data), storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	return err
}

func (b *bucketObjects) SignedURL(path string, expiresIn int) (string, error) {
	resp, err := b.client.CreateSignedUrl(b.bucket, path, expiresIn)
	if err != nil {
		return "", err
	}
	return resp.SignedURL, nil
}

func (b *bucketObjects) Remove(paths []string) error {
	_, err := b.client.RemoveFile(b.bucket, paths)
	return err
}

type StorageOptions struct {
	SignedURLTTL time.Duration
	MaxRetries   int
	Backoffs     []time.Duration
}

type StorageClient struct {
	objects    ObjectStore
	baseURL    string
	ttl        time.Duration
	maxRetries int
	backoffs   []time.Duration
}

// NewStorageClient connects to the bucket under {supabaseURL}/storage/v1.
func NewStorageClient(supabaseURL, key, bucket string, opts StorageOptions) *StorageClient {
	baseURL := strings.TrimSuffix(supabaseURL, "/")
	client := storage.NewClient(baseURL+"/storage/v1", key, nil)
	return NewStorageClientWith(NewBucketObjects(client, bucket), baseURL, opts)
}

func NewStorageClientWith(objects ObjectStore, supabaseURL string, opts StorageOptions) *StorageClient {
	if opts.SignedURLTTL <= 0 {
		opts.SignedURLTTL = time.Hour
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	return &StorageClient{
		objects:    objects,
		baseURL:    strings.TrimSuffix(supabaseURL, "/"),
		ttl:        opts.SignedURLTTL,
		maxRetries: opts.MaxRetries,
		backoffs:   opts.Backoffs,
	}
}

// ObjectPath is users/{owner_id}/body-log/{uuid}.jpg.
func ObjectPath(ownerID string) string {
	return fmt.Sprintf("users/%s/body-log/%s.jpg", ownerID, uuid.New().String())
}

func (s *StorageClient) Upload(ctx context.Context, handle bodylog.LocalHandle, ownerID string) (string, error) {
	if len(handle.Data) == 0 {
		return "", bodylog.ErrNoImage
	}
	contentType := handle.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}

	storagePath := ObjectPath(ownerID)
	err := retry.WithBackoff(ctx, func() error {
		return s.objects.Upload(storagePath, handle.Data, contentType)
	}, s.maxRetries, s.backoffs)
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	return storagePath, nil
}

// ResolveDisplayURLs signs every path. Paths that cannot be signed get a nil
// entry; an error is returned only when ctx ends first.
func (s *StorageClient) ResolveDisplayURLs(ctx context.Context, storagePaths []string) ([]*string, error) {
	urls := make([]*string, len(storagePaths))
	expiresIn := int(s.ttl / time.Second)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(signConcurrency)
	for i, p := range storagePaths {
		if p == "" {
			continue
		}
		i, p := i, p
		g.Go(func() error {
			var signed string
			err := retry.WithBackoff(gctx, func() error {
				var err error
				signed, err = s.objects.SignedURL(p, expiresIn)
				return err
			}, s.maxRetries, s.backoffs)
			if err != nil {
				log.Printf("Warning: failed to sign %s: %v", p, err)
				return nil
			}
			abs := s.absoluteURL(signed)
			urls[i] = &abs
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return urls, fmt.Errorf("failed to resolve display urls: %w", err)
	}
	return urls, nil
}

func (s *StorageClient) Delete(ctx context.Context, storagePath string) error {
	if err := s.objects.Remove([]string{storagePath}); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Some storage versions return the signed url relative to the storage root.
func (s *StorageClient) absoluteURL(signed string) string {
	if strings.HasPrefix(signed, "http://") || strings.HasPrefix(signed, "https://") {
		return signed
	}
	if !strings.HasPrefix(signed, "/") {
		signed = "/" + signed
	}
	return s.baseURL + "/storage/v1" + signed
}
