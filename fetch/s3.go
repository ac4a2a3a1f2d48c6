package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// fetchS3 downloads s3://bucket/key using static credentials from the
// registered credential map (accessKey, secretKey, region).
func fetchS3(ctx context.Context, u *url.URL, creds map[string]string, ceiling int64) (*Result, error) {
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("s3 url must be s3://bucket/key")
	}
	if creds == nil {
		return nil, fmt.Errorf("s3 source requires registered credentials")
	}

	provider := awscreds.NewStaticCredentialsProvider(creds["accessKey"], creds["secretKey"], "")
	client := s3.New(s3.Options{
		Region:      creds["region"],
		Credentials: provider,
	})

	// Size precheck before pulling the object; the buffered size is checked
	// again afterwards in case the head lied.
	head, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to head object %s in bucket %s: %w", key, bucket, err)
	}
	if head.ContentLength != nil && *head.ContentLength > ceiling {
		return nil, fmt.Errorf("object %s announces %d bytes: %w", key, *head.ContentLength, ErrTooLarge)
	}

	buf := manager.NewWriteAtBuffer(nil)
	downloader := manager.NewDownloader(client)
	if _, err := downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return nil, fmt.Errorf("failed to download object %s from bucket %s: %w", key, bucket, err)
	}

	data := buf.Bytes()
	if int64(len(data)) > ceiling {
		return nil, ErrTooLarge
	}

	ct := ""
	if head.ContentType != nil {
		ct = *head.ContentType
	}
	return &Result{Bytes: data, ContentType: ct}, nil
}
