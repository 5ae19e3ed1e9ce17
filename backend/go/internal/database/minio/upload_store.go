package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
)

// objectAPI 是 UploadStore 用到的 minio.Client 方法子集。
type objectAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// UploadStore 保存用户上传的原始文件，对象键为 "user_<id>/<source>"。
type UploadStore struct {
	api    objectAPI
	bucket string
}

// NewUploadStore 创建 UploadStore，存储桶不存在时自动创建。
func NewUploadStore(ctx context.Context, c *minio.Client, bucket string) (*UploadStore, error) {
	return newUploadStore(ctx, c, bucket)
}

func newUploadStore(ctx context.Context, api objectAPI, bucket string) (*UploadStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("未配置 MinIO 存储桶")
	}
	exists, err := api.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("检查存储桶 '%s' 失败: %w", bucket, err)
	}
	if !exists {
		if err := api.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建存储桶 '%s' 失败: %w", bucket, err)
		}
		log.WithField("bucket", bucket).Info("✅ 已创建 MinIO 存储桶")
	}
	return &UploadStore{api: api, bucket: bucket}, nil
}

// userPrefix 返回一个用户所有上传对象共享的前缀。
func userPrefix(userID string) string {
	return "user_" + userID + "/"
}

// ObjectKey 返回某个上传文件的对象键。
func ObjectKey(userID, sourceID string) string {
	return userPrefix(userID) + path.Base(sourceID)
}

// Put 保存一个上传文件，同名文件会被覆盖。
func (s *UploadStore) Put(ctx context.Context, userID, sourceID, contentType string, data []byte) error {
	key := ObjectKey(userID, sourceID)
	_, err := s.api.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("上传对象 '%s' 失败: %w", key, err)
	}
	return nil
}

// Delete 删除一个上传文件。对象不存在时不报错。
func (s *UploadStore) Delete(ctx context.Context, userID, sourceID string) error {
	key := ObjectKey(userID, sourceID)
	if err := s.api.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("删除对象 '%s' 失败: %w", key, err)
	}
	return nil
}

// DeleteUser 删除一个用户的所有上传文件，返回删除的数量。
func (s *UploadStore) DeleteUser(ctx context.Context, userID string) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	removed := 0
	for obj := range s.api.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: userPrefix(userID), Recursive: true}) {
		if obj.Err != nil {
			return removed, fmt.Errorf("列出用户 %s 的对象失败: %w", userID, obj.Err)
		}
		if err := s.api.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return removed, fmt.Errorf("删除对象 '%s' 失败: %w", obj.Key, err)
		}
		removed++
	}
	return removed, nil
}
