package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOOptions は MinIO への接続設定です。
type MinIOOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinIOBackend は S3 互換のオブジェクトストレージに保存します。ロケーションはオブジェクトキーです。
type MinIOBackend struct {
	client *minio.Client
	bucket string
}

// NewMinIOBackend はクライアントを作成し、バケットが無ければ作成します。
func NewMinIOBackend(ctx context.Context, opts MinIOOptions) (*MinIOBackend, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinIOBackend{client: client, bucket: opts.Bucket}, nil
}

// Put はサイズ不明のストリームとしてアップロードします。
func (b *MinIOBackend) Put(ctx context.Context, location string, r io.Reader, contentType string) error {
	key, err := cleanLocation(location)
	if err != nil {
		return err
	}
	if _, err := b.client.PutObject(ctx, b.bucket, key, r, -1, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return fmt.Errorf("failed to upload to MinIO: %w", err)
	}
	return nil
}

// Remove はオブジェクトを削除します。RemoveObject は存在しないキーでも成功するため事前に確認します。
func (b *MinIOBackend) Remove(ctx context.Context, location string) (bool, error) {
	key, err := cleanLocation(location)
	if err != nil {
		return false, err
	}
	if _, err := b.stat(ctx, key); err != nil {
		if isNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := b.client.RemoveObject(ctx, b.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return false, fmt.Errorf("failed to delete from MinIO: %w", err)
	}
	return true, nil
}

// Stat はオブジェクトの情報を返します。
func (b *MinIOBackend) Stat(ctx context.Context, location string) (Info, error) {
	key, err := cleanLocation(location)
	if err != nil {
		return Info{}, err
	}
	return b.stat(ctx, key)
}

// Open はオブジェクトの読み込みストリームを返します。
func (b *MinIOBackend) Open(ctx context.Context, location string) (io.ReadCloser, Info, error) {
	key, err := cleanLocation(location)
	if err != nil {
		return nil, Info{}, err
	}
	info, err := b.stat(ctx, key)
	if err != nil {
		return nil, Info{}, err
	}
	obj, err := b.client.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, Info{}, fmt.Errorf("failed to get object: %w", err)
	}
	return obj, info, nil
}

func (b *MinIOBackend) stat(ctx context.Context, key string) (Info, error) {
	st, err := b.client.StatObject(ctx, b.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return Info{}, fmt.Errorf("%s: %w", key, fs.ErrNotExist)
		}
		return Info{}, fmt.Errorf("failed to stat object: %w", err)
	}
	return Info{Size: st.Size, Locator: fmt.Sprintf("s3://%s/%s", b.bucket, key)}, nil
}
