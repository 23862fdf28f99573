package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/nebula-convert/pkg/errors"
)

// Artifact is a finished archive ready for delivery
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
	// Metadata is attached to object uploads
	Metadata map[string]string
}

// Deliverer moves an artifact to its destination and returns where it went
type Deliverer interface {
	Deliver(ctx context.Context, a Artifact) (string, error)
}

// FileDeliverer copies the artifact to a local path. A path ending in a
// separator, or naming an existing directory, receives the artifact under
// its own name.
type FileDeliverer struct {
	Path string
}

// Deliver implements Deliverer
func (d *FileDeliverer) Deliver(_ context.Context, a Artifact) (string, error) {
	dst := d.Path
	if strings.HasSuffix(dst, string(os.PathSeparator)) || strings.HasSuffix(dst, "/") {
		dst = filepath.Join(dst, a.Name)
	} else if info, err := os.Stat(dst); err == nil && info.IsDir() {
		dst = filepath.Join(dst, a.Name)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeFile, "failed to create output directory").
			WithDetail("path", dst)
	}
	if err := os.WriteFile(dst, a.Data, 0o644); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeFile, "failed to write archive").
			WithDetail("path", dst)
	}
	return dst, nil
}

// S3Config configures S3 delivery
type S3Config struct {
	Region      string `yaml:"region" json:"region" mapstructure:"region"`
	PartSize    int64  `yaml:"part_size" json:"part_size" mapstructure:"part_size"`
	Concurrency int    `yaml:"concurrency" json:"concurrency" mapstructure:"concurrency"`
}

// s3Uploader is the part of manager.Uploader S3Deliverer uses
type s3Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Deliverer uploads the artifact with the S3 upload manager
type S3Deliverer struct {
	bucket   string
	key      string
	uploader s3Uploader
	logger   *zap.Logger
}

// NewS3Deliverer loads the default AWS configuration and targets
// bucket/key. A key that is empty or ends in "/" is a prefix for the
// artifact name.
func NewS3Deliverer(ctx context.Context, bucket, key string, cfg S3Config, logger *zap.Logger) (*S3Deliverer, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load AWS configuration")
	}

	client := s3.NewFromConfig(awsCfg)
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		if cfg.PartSize > 0 {
			u.PartSize = cfg.PartSize
		}
		if cfg.Concurrency > 0 {
			u.Concurrency = cfg.Concurrency
		}
	})
	return newS3Deliverer(bucket, key, uploader, logger), nil
}

func newS3Deliverer(bucket, key string, uploader s3Uploader, logger *zap.Logger) *S3Deliverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3Deliverer{
		bucket:   bucket,
		key:      key,
		uploader: uploader,
		logger:   logger.With(zap.String("component", "s3_sink")),
	}
}

// Deliver implements Deliverer
func (d *S3Deliverer) Deliver(ctx context.Context, a Artifact) (string, error) {
	key := objectKey(d.key, a.Name)
	start := time.Now()

	result, err := d.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(a.Data),
		ContentType: aws.String(a.ContentType),
		Metadata:    a.Metadata,
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeConnection, "failed to upload to S3").
			WithDetail("bucket", d.bucket).
			WithDetail("key", key)
	}

	location := "s3://" + d.bucket + "/" + key
	if result != nil && result.Location != "" {
		location = result.Location
	}
	d.logger.Info("archive uploaded to S3",
		zap.String("location", location),
		zap.Int("bytes", len(a.Data)),
		zap.Duration("duration", time.Since(start)))
	return "s3://" + d.bucket + "/" + key, nil
}

// GCSConfig configures GCS delivery
type GCSConfig struct {
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file" mapstructure:"credentials_file"`
}

// GCSDeliverer writes the artifact as a Cloud Storage object
type GCSDeliverer struct {
	bucket    string
	key       string
	newWriter func(ctx context.Context, object string, contentType string, metadata map[string]string) io.WriteCloser
	close     func() error
	logger    *zap.Logger
}

// NewGCSDeliverer creates a storage client and targets bucket/key. Key
// follows the same prefix rule as S3.
func NewGCSDeliverer(ctx context.Context, bucket, key string, cfg GCSConfig, logger *zap.Logger) (*GCSDeliverer, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create GCS client")
	}
	handle := client.Bucket(bucket)

	d := newGCSDeliverer(bucket, key, func(ctx context.Context, object, contentType string, metadata map[string]string) io.WriteCloser {
		w := handle.Object(object).NewWriter(ctx)
		w.ContentType = contentType
		w.Metadata = metadata
		return w
	}, logger)
	d.close = client.Close
	return d, nil
}

func newGCSDeliverer(bucket, key string, newWriter func(context.Context, string, string, map[string]string) io.WriteCloser, logger *zap.Logger) *GCSDeliverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GCSDeliverer{
		bucket:    bucket,
		key:       key,
		newWriter: newWriter,
		logger:    logger.With(zap.String("component", "gcs_sink")),
	}
}

// Deliver implements Deliverer
func (d *GCSDeliverer) Deliver(ctx context.Context, a Artifact) (string, error) {
	object := objectKey(d.key, a.Name)
	w := d.newWriter(ctx, object, a.ContentType, a.Metadata)

	if _, err := w.Write(a.Data); err != nil {
		_ = w.Close()
		return "", errors.Wrap(err, errors.ErrorTypeConnection, "failed to write GCS object").
			WithDetail("object", object)
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeConnection, "failed to finalize GCS object").
			WithDetail("object", object)
	}

	location := "gs://" + d.bucket + "/" + object
	d.logger.Info("archive uploaded to GCS", zap.String("location", location), zap.Int("bytes", len(a.Data)))
	return location, nil
}

// Close releases the storage client
func (d *GCSDeliverer) Close() error {
	if d.close == nil {
		return nil
	}
	return d.close()
}

// HTTPDeliverer streams the artifact as a download
type HTTPDeliverer struct {
	W      http.ResponseWriter
	Status int
}

// Deliver implements Deliverer
func (d *HTTPDeliverer) Deliver(_ context.Context, a Artifact) (string, error) {
	SetDownloadHeaders(d.W.Header(), a)
	status := d.Status
	if status == 0 {
		status = http.StatusOK
	}
	d.W.WriteHeader(status)
	if _, err := d.W.Write(a.Data); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeConnection, "failed to stream archive")
	}
	return "http response", nil
}

// SetDownloadHeaders sets the headers of an attachment download
func SetDownloadHeaders(h http.Header, a Artifact) {
	contentType := a.ContentType
	if contentType == "" {
		contentType = "application/zip"
	}
	h.Set("Cache-Control", "no-cache, must-revalidate")
	h.Set("Content-Type", contentType)
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", a.Name))
	h.Set("Content-Length", strconv.Itoa(len(a.Data)))
}

// Options configures ForURI
type Options struct {
	S3     S3Config
	GCS    GCSConfig
	Logger *zap.Logger
}

// ForURI picks a Deliverer from the scheme of uri: s3://bucket/key,
// gs://bucket/key, or a local path.
func ForURI(ctx context.Context, uri string, opts Options) (Deliverer, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		return &FileDeliverer{Path: uri}, nil
	}

	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	switch u.Scheme {
	case "s3":
		if bucket == "" {
			return nil, errors.New(errors.ErrorTypeValidation, "s3 destination needs a bucket")
		}
		d, err := NewS3Deliverer(ctx, bucket, key, opts.S3, opts.Logger)
		if err != nil {
			return nil, err
		}
		return d, nil
	case "gs", "gcs":
		if bucket == "" {
			return nil, errors.New(errors.ErrorTypeValidation, "gcs destination needs a bucket")
		}
		d, err := NewGCSDeliverer(ctx, bucket, key, opts.GCS, opts.Logger)
		if err != nil {
			return nil, err
		}
		return d, nil
	case "file":
		return &FileDeliverer{Path: u.Path}, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeValidation, "unsupported destination scheme: %s", u.Scheme)
	}
}

func objectKey(key, name string) string {
	if key == "" || strings.HasSuffix(key, "/") {
		return key + name
	}
	return key
}
