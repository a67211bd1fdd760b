package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Recorder writes one JSON object per event, keyed by date and event ID.
type S3Recorder struct {
	client *minio.Client
	bucket string
}

func NewS3Recorder(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*S3Recorder, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &S3Recorder{
		client: client,
		bucket: bucket,
	}, nil
}

func (s *S3Recorder) Record(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	key := fmt.Sprintf("events/%s/%s.json", event.Time.UTC().Format("2006/01/02"), event.ID)

	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("failed to put event object: %w", err)
	}

	return nil
}
