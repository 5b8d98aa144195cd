package storage

import (
	"context"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
)

// Client fetches attachment content from the service's object storage
// bucket. Uploads happen elsewhere; the chat core only ever reads.
type Client struct {
	bkt *gcs.BucketHandle
}

func NewClient(ctx context.Context, bucket string) (*Client, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket name is empty")
	}
	gcsClient, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &Client{bkt: gcsClient.Bucket(bucket)}, nil
}

func (c *Client) DownloadFileContent(ctx context.Context, key string) ([]byte, error) {
	r, err := c.bkt.Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening object %q: %w", key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading object %q: %w", key, err)
	}
	return data, nil
}
