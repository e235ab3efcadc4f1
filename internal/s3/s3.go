package s3

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const region = "us-east-1"

// Client mirrors evidence frames to an object store and hands out time-limited links
type Client struct {
	client *minio.Client
	bucket string
	prefix string
	expiry time.Duration
}

func NewMinioClient(endpoint, accessKey, secretKey, bucket string, secure bool, expiry time.Duration, node string) (*Client, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &Client{client: client, bucket: bucket, prefix: node, expiry: expiry}, nil
}

// EnsureBucket creates the evidence bucket when it is missing
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", c.bucket, err)
	}
	if exists {
		return nil
	}
	if err := c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", c.bucket, err)
	}
	return nil
}

// ObjectKey places the file under the node name so several appliances can share a bucket
func (c *Client) ObjectKey(localPath string) string {
	return path.Join(c.prefix, filepath.Base(localPath))
}

// Mirror uploads the evidence file and returns a presigned download link
func (c *Client) Mirror(ctx context.Context, localPath string) (string, error) {
	key := c.ObjectKey(localPath)

	_, err := c.client.FPutObject(ctx, c.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType(localPath),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload evidence to S3: %w", err)
	}

	return c.PresignedURL(ctx, key)
}

// PresignedURL signs a GET for key, valid for the configured expiry
func (c *Client) PresignedURL(ctx context.Context, key string) (string, error) {
	u, err := c.client.PresignedGetObject(ctx, c.bucket, key, c.expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}

func contentType(p string) string {
	switch filepath.Ext(p) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
