package fetch

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// fetchGCS downloads gs://bucket/object using a service-account key from the
// registered credential map (credentialsJSON, base64 or raw JSON).
func fetchGCS(ctx context.Context, u *url.URL, creds map[string]string, ceiling int64) (*Result, error) {
	bucketName := u.Host
	objectName := strings.TrimPrefix(u.Path, "/")
	if bucketName == "" || objectName == "" {
		return nil, fmt.Errorf("gcs url must be gs://bucket/object")
	}
	if creds == nil || creds["credentialsJSON"] == "" {
		return nil, fmt.Errorf("gcs source requires registered credentials")
	}

	credentialsJSON, err := base64.StdEncoding.DecodeString(creds["credentialsJSON"])
	if err != nil {
		credentialsJSON = []byte(creds["credentialsJSON"])
	}

	client, err := storage.NewClient(ctx, option.WithCredentialsJSON(credentialsJSON))
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	defer client.Close()

	obj := client.Bucket(bucketName).Object(objectName)

	attrs, err := obj.Attrs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to stat object %s in bucket %s: %w", objectName, bucketName, err)
	}
	if attrs.Size > ceiling {
		return nil, fmt.Errorf("object %s announces %d bytes: %w", objectName, attrs.Size, ErrTooLarge)
	}

	rc, err := obj.NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open object %s: %w", objectName, err)
	}
	defer rc.Close()

	data, err := readCapped(rc, ceiling)
	if err != nil {
		return nil, err
	}

	return &Result{Bytes: data, ContentType: attrs.ContentType}, nil
}
