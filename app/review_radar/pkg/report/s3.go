package report

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/iWorld-y/review_radar/app/review_radar/pkg/config"
)

// S3Sink 将 CSV 报告上传到 S3 兼容的对象存储
type S3Sink struct {
	client   *minio.Client
	bucket   string
	region   string

	mu    sync.Mutex
	ready bool // 桶已确认存在，出错时下次写入重新检查
}

// NewS3Sink 创建对象存储输出
func NewS3Sink(cfg config.ObjectStoreConfig) (*S3Sink, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3Sink{client: client, bucket: bucket, region: region}, nil
}

// Ensure S3Sink implements Sink
var _ Sink = (*S3Sink)(nil)

// Name implements Sink
func (s *S3Sink) Name() string { return "s3" }

// Write implements Sink
func (s *S3Sink) Write(ctx context.Context, t *Table) (string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket: %w", err)
	}
	data, err := t.CSV()
	if err != nil {
		return "", err
	}

	key := ObjectKey(t)
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "text/csv",
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

func (s *S3Sink) ensureBucket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return err
		}
	}
	s.ready = true
	return nil
}

// ObjectKey 报告在桶中的路径
func ObjectKey(t *Table) string {
	return "trend_analysis/" + sanitize(t.AnalysisID) + "/" + t.FileName("csv")
}
