package services

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/wneessen/go-mail"

	"mail-agent/backend/internal/config"
	"mail-agent/backend/internal/logging"
	"mail-agent/backend/pkg/models"
)

// ObjectPutter is the slice of the S3 API the archive needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Client builds an S3 client for the mail archive. Static credentials
// are used when both keys are set, else the default AWS chain applies.
func NewS3Client(ctx context.Context, cfg config.MailArchiveConfig) (*s3.Client, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, models.NotConfigured("mail_archive", "mail_archive.bucket is not set")
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// ArchiveTransport stores a copy of every delivered message in S3 after
// the inner transport succeeds. Archive failures are logged only.
type ArchiveTransport struct {
	inner  MailTransport
	s3     ObjectPutter
	bucket string
	prefix string
	logger *logging.Logger
	now    func() time.Time
}

// NewArchiveTransport decorates inner.
func NewArchiveTransport(inner MailTransport, client ObjectPutter, bucket, prefix string, logger *logging.Logger) *ArchiveTransport {
	return &ArchiveTransport{
		inner:  inner,
		s3:     client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
		now:    time.Now,
	}
}

func (t *ArchiveTransport) Deliver(ctx context.Context, msg *mail.Msg) error {
	if err := t.inner.Deliver(ctx, msg); err != nil {
		return err
	}

	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		t.logger.Warn("mail archive: render message", "error", err)
		return nil
	}
	key := t.objectKey()
	_, err := t.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(t.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("message/rfc822"),
	})
	if err != nil {
		t.logger.Warn("mail archive: upload failed", "key", key, "error", err)
		return nil
	}
	t.logger.Debug("mail archived", "bucket", t.bucket, "key", key)
	return nil
}

// objectKey is {prefix}/{yyyy}/{mm}/{dd}/{uuid}.eml.
func (t *ArchiveTransport) objectKey() string {
	d := t.now().UTC()
	return path.Join(t.prefix, d.Format("2006"), d.Format("01"), d.Format("02"), uuid.NewString()+".eml")
}
