package supabase_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bodylog-backend/internal/bodylog"
	"bodylog-backend/internal/supabase"
)

type fakeObjects struct {
	mu        sync.Mutex
	uploaded  map[string]string
	removed   []string
	failures  map[string]int
	signCalls map[string]int
	relative  bool
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{
		uploaded:  make(map[string]string),
		failures:  make(map[string]int),
		signCalls: make(map[string]int),
	}
}

func (f *fakeObjects) Upload(path string, data []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures["upload"] > 0 {
		f.failures["upload"]--
		return assert.AnError
	}
	f.uploaded[path] = contentType
	return nil
}

func (f *fakeObjects) SignedURL(path string, expiresIn int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signCalls[path]++
	if f.failures[path] > 0 {
		f.failures[path]--
		return "", assert.AnError
	}
	if f.relative {
		return "/object/sign/body-log/" + path + "?token=t", nil
	}
	return "https://cdn.test/" + path + "?expires=" + time.Duration(expiresIn*int(time.Second)).String(), nil
}

func (f *fakeObjects) Remove(paths []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, paths...)
	return nil
}

func newClient(objects *fakeObjects) *supabase.StorageClient {
	return supabase.NewStorageClientWith(objects, "https://project.supabase.co/", supabase.StorageOptions{
		SignedURLTTL: 15 * time.Minute,
		MaxRetries:   2,
		Backoffs:     []time.Duration{time.Millisecond},
	})
}

func TestObjectPath(t *testing.T) {
	path := supabase.ObjectPath("owner-1")
	assert.True(t, strings.HasPrefix(path, "users/owner-1/body-log/"))
	assert.True(t, strings.HasSuffix(path, ".jpg"))
	assert.NotEqual(t, path, supabase.ObjectPath("owner-1"))
}

func TestStorageClient_Upload(t *testing.T) {
	objects := newFakeObjects()
	objects.failures["upload"] = 1
	client := newClient(objects)

	path, err := client.Upload(context.Background(), bodylog.LocalHandle{Data: []byte("x")}, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", objects.uploaded[path])
}

func TestStorageClient_UploadRejectsEmptyHandle(t *testing.T) {
	client := newClient(newFakeObjects())

	_, err := client.Upload(context.Background(), bodylog.LocalHandle{}, "owner-1")
	assert.ErrorIs(t, err, bodylog.ErrNoImage)
}

func TestStorageClient_ResolveDisplayURLs(t *testing.T) {
	objects := newFakeObjects()
	objects.failures["p-retry"] = 1
	objects.failures["p-broken"] = 5
	client := newClient(objects)

	urls, err := client.ResolveDisplayURLs(context.Background(), []string{"p-ok", "p-retry", "p-broken", ""})
	require.NoError(t, err)
	require.Len(t, urls, 4)

	require.NotNil(t, urls[0])
	assert.Equal(t, "https://cdn.test/p-ok?expires=15m0s", *urls[0])
	require.NotNil(t, urls[1])
	assert.Nil(t, urls[2])
	assert.Nil(t, urls[3])
	assert.Equal(t, 2, objects.signCalls["p-broken"])
}

func TestStorageClient_ResolveRelativeURLs(t *testing.T) {
	objects := newFakeObjects()
	objects.relative = true
	client := newClient(objects)

	urls, err := client.ResolveDisplayURLs(context.Background(), []string{"p1"})
	require.NoError(t, err)
	require.NotNil(t, urls[0])
	assert.Equal(t, "https://project.supabase.co/storage/v1/object/sign/body-log/p1?token=t", *urls[0])
}

func TestStorageClient_Delete(t *testing.T) {
	objects := newFakeObjects()
	client := newClient(objects)

	require.NoError(t, client.Delete(context.Background(), "p1"))
	assert.Equal(t, []string{"p1"}, objects.removed)
}
