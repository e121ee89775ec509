package supabase

import (
	"fmt"

	"github.com/supabase-community/supabase-go"

	"bodylog-backend/internal/config"
)

type Client struct {
	Supabase *supabase.Client
	Config   *config.Config
}

func NewClient(cfg *config.Config) (*Client, error) {
	client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabasePublishableKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &Client{
		Supabase: client,
		Config:   cfg,
	}, nil
}

// Storage returns the storage gateway for the configured bucket.
func (c *Client) Storage() *StorageClient {
	return NewStorageClient(c.Config.SupabaseURL, c.Config.SupabasePublishableKey, c.Config.SupabaseStorageBucket,
		StorageOptions{SignedURLTTL: c.Config.SignedURLTTL})
}

// Records returns the PostgREST persistence gateway.
func (c *Client) Records() *RestRecordClient {
	return NewRestRecordClient(c.Supabase)
}
