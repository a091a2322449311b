package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"hackhub/backend/internal/config"
	"hackhub/backend/internal/model"
)

// MediaService handles the pre-upload step: clients push bytes here, get an
// opaque URL back, and attach that URL to messages. The chat core never
// reads the object again.
type MediaService struct {
	cfg      *config.Config
	uploader *manager.Uploader
	client   *s3.Client
}

func NewMediaService(ctx context.Context, cfg *config.Config) (*MediaService, error) {
	var awsCfg aws.Config
	if cfg.S3AccessKeyID != "" {
		awsCfg = aws.Config{
			Region: cfg.S3Region,
			Credentials: credentials.NewStaticCredentialsProvider(
				cfg.S3AccessKeyID,
				cfg.S3SecretAccessKey,
				"",
			),
		}
	} else {
		loaded, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		awsCfg = loaded
	}

	opts := []func(*s3.Options){}
	if cfg.S3Endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, opts...)
	return &MediaService{
		cfg:      cfg,
		uploader: manager.NewUploader(client),
		client:   client,
	}, nil
}

func (s *MediaService) Upload(ctx context.Context, file io.Reader, filename, contentType, userID string) (*model.FileMetadata, error) {
	fileID := uuid.New().String()
	key := path.Join("uploads", fileID, filename)

	result, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.S3Bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}

	return &model.FileMetadata{
		ID:          fileID,
		Filename:    filename,
		ContentType: contentType,
		Key:         key,
		Bucket:      s.cfg.S3Bucket,
		URL:         result.Location,
		UploadedBy:  userID,
		CreatedAt:   time.Now(),
	}, nil
}

func (s *MediaService) PresignGet(ctx context.Context, bucket, key string, expires time.Duration) (string, error) {
	presign := s3.NewPresignClient(s.client)
	req, err := presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("failed to presign object: %w", err)
	}
	return req.URL, nil
}
