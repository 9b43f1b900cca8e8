// Package objectstore uploads cover images to blob storage.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/gabriel-vasile/mimetype"
)

const MaxImageSize = 5 << 20

var (
	ErrFileTooLarge = errors.New("file exceeds 5MB")
	ErrNotAnImage   = errors.New("file is not an image")
)

type ObjectStore interface {
	UploadFile(ctx context.Context, file io.Reader, id string) (string, error)
}

type CloudinaryStore struct {
	client *cloudinary.Cloudinary
	folder string
}

func NewCloudinaryStore(cloud, key, secret string) (*CloudinaryStore, error) {
	client, err := cloudinary.NewFromParams(cloud, key, secret)
	if err != nil {
		return nil, fmt.Errorf("error creating cloudinary client: %w", err)
	}
	return &CloudinaryStore{client: client, folder: "novelnest"}, nil
}

type CloudinaryError struct {
	Message string
}

func (e *CloudinaryError) Error() string {
	return "cloudinary: " + e.Message
}

func (c *CloudinaryStore) UploadFile(ctx context.Context, file io.Reader, id string) (string, error) {
	resp, err := c.client.Upload.Upload(ctx, file, uploader.UploadParams{PublicID: id, Folder: c.folder})
	if err != nil {
		return "", fmt.Errorf("error uploading file: %w", err)
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("error uploading file: %w", &CloudinaryError{Message: resp.Error.Message})
	}

	return resp.SecureURL, nil
}

type S3Store struct {
	client *s3.Client
	bucket string
	region string
}

func NewS3Store(ctx context.Context, bucket, region string) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("error loading aws config: %w", err)
	}
	return &S3Store{client: s3.NewFromConfig(cfg), bucket: bucket, region: region}, nil
}

func (o *S3Store) UploadFile(ctx context.Context, file io.Reader, id string) (string, error) {
	key := "covers/" + id

	_, err := o.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(key),
		Body:   file,
	})
	if err != nil {
		return "", fmt.Errorf("error uploading object to s3: %w", err)
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", o.bucket, o.region, key), nil
}

// ValidateImage checks the size cap and sniffs the content type. It returns
// the detected MIME type.
func ValidateImage(data []byte) (string, error) {
	if len(data) > MaxImageSize {
		return "", ErrFileTooLarge
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", fmt.Errorf("%w: detected %s", ErrNotAnImage, mt.String())
	}

	return mt.String(), nil
}

// ReadImage reads at most one byte past the cap so oversized uploads are
// rejected without buffering them whole.
func ReadImage(r io.Reader) ([]byte, string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("error reading file: %w", err)
	}

	mime, err := ValidateImage(data)
	if err != nil {
		return nil, "", err
	}
	return data, mime, nil
}

// UserMessage turns an upload error into text that can be shown to a user.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrFileTooLarge):
		return "Images must be 5MB or smaller."
	case errors.Is(err, ErrNotAnImage):
		return "Only image files can be uploaded."
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return "You do not have permission to upload files."
		case "EntityTooLarge":
			return "Images must be 5MB or smaller."
		case "NoSuchBucket":
			return "File storage is not available right now."
		}
	}

	var cErr *CloudinaryError
	if errors.As(err, &cErr) {
		msg := strings.ToLower(cErr.Message)
		switch {
		case strings.Contains(msg, "file size too large"):
			return "Images must be 5MB or smaller."
		case strings.Contains(msg, "invalid image file"):
			return "Only image files can be uploaded."
		case strings.Contains(msg, "api key"), strings.Contains(msg, "signature"):
			return "You do not have permission to upload files."
		}
	}

	return "Upload failed. Please try again."
}
