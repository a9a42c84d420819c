package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/stormydragon/twitfix/internal/config"
	"github.com/stormydragon/twitfix/internal/downloader"
)

// objectNamespace seeds the deterministic object names. Changing it
// orphans every object already uploaded, so it never changes.
var objectNamespace = uuid.MustParse("dbc14e27-a6ed-4343-98ef-285aa17cacfd")

// presignTTL bounds how long a handed-out object URL stays valid.
const presignTTL = 5 * time.Minute

// S3Store rehosts media in an S3-compatible bucket and delivers it via
// short-lived presigned URLs.
type S3Store struct {
	client *minio.Client
	bucket string
	dl     downloader.Downloader
	logger *slog.Logger
}

func NewS3Store(cfg config.S3Config, dl downloader.Downloader, logger *slog.Logger) (*S3Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating s3 client: %w", err)
	}
	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
		dl:     dl,
		logger: logger.With("component", "storage", "backend", "s3"),
	}, nil
}

func (s *S3Store) Store(ctx context.Context, mediaURL string) (string, bool, error) {
	key := objectKey(mediaURL)

	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return key, true, nil
	}
	if resp := minio.ToErrorResponse(err); resp.Code != "NoSuchKey" {
		return "", false, fmt.Errorf("checking stored media: %w", err)
	}

	body, size, contentType, err := s.dl.Download(ctx, mediaURL)
	if err != nil {
		return "", false, err
	}
	defer body.Close()

	// size is -1 when the upstream omits Content-Length; minio switches
	// to a multipart upload in that case.
	info, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", false, fmt.Errorf("uploading media: %w", err)
	}
	s.logger.Info("stored media", "key", key, "bytes", info.Size)
	return key, false, nil
}

func (s *S3Store) Retrieve(ctx context.Context, identifier string) (*Delivery, error) {
	signed, err := s.client.PresignedGetObject(ctx, s.bucket, identifier, presignTTL, nil)
	if err != nil {
		return nil, fmt.Errorf("presigning media url: %w", err)
	}
	return &Delivery{Kind: DeliverRedirect, Location: signed.String()}, nil
}

// objectKey derives the bucket key from the source URL. Same URL, same
// key, always.
func objectKey(mediaURL string) string {
	id := uuid.NewSHA1(objectNamespace, []byte(mediaURL)).String()
	return strings.ReplaceAll(id, "-", "") + ".mp4"
}
