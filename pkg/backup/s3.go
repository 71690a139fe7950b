// pkg/backup/s3.go
package backup

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/fxamacker/cbor/v2"
)

var (
	// ErrDigestMismatch: 下载的容器内容与清单里的 sha256 不符
	ErrDigestMismatch = errors.New("restored container digest mismatch")
)

// Manifest 是备份对象旁的小清单，cbor 编码，
// 记录容器身份和校验信息，restore 时先核对它。
type Manifest struct {
	ContainerID string    `cbor:"cid"`
	ByteSize    int64     `cbor:"size"`
	SHA256      string    `cbor:"sha256"`
	CreatedAt   time.Time `cbor:"created"`
}

// Config S3 目标配置
type Config struct {
	Endpoint        string // MinIO 等自建网关时指定，留空走 AWS
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
}

// Uploader 把单文件容器备份到 S3
type Uploader struct {
	client *s3.Client
	bucket string
}

// New 初始化 S3 客户端 (aws-sdk-go-v2 规范写法)
func New(ctx context.Context, cfg Config) (*Uploader, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		// MinIO 必须 Path Style: http://host:9000/bucket/key
		o.UsePathStyle = true
	})

	return &Uploader{client: client, bucket: cfg.Bucket}, nil
}

// Backup 上传容器文件到 key，并在 key+".manifest" 放 cbor 清单。
// containerID 写进清单，restore 端用它核对身份。
func (u *Uploader) Backup(ctx context.Context, containerPath, containerID, key string) (*Manifest, error) {
	file, err := os.Open(containerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open container file: %w", err)
	}
	defer file.Close()

	// 先过一遍算摘要和大小 (容器文件在引擎关闭后是静止的)
	digest := sha256.New()
	size, err := io.Copy(digest, file)
	if err != nil {
		return nil, err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	manifest := &Manifest{
		ContainerID: containerID,
		ByteSize:    size,
		SHA256:      hex.EncodeToString(digest.Sum(nil)),
		CreatedAt:   time.Now().UTC(),
	}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   file,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload container: %w", err)
	}

	manifestBytes, err := cbor.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key + ".manifest"),
		Body:   bytes.NewReader(manifestBytes),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload manifest: %w", err)
	}

	return manifest, nil
}

// Restore 下载 key 对应的容器到 destPath，并对照清单校验摘要。
// 校验通过前绝不触碰 destPath (临时文件 + rename)。
func (u *Uploader) Restore(ctx context.Context, key, destPath string) (*Manifest, error) {
	manifest, err := u.fetchManifest(ctx, key)
	if err != nil {
		return nil, err
	}

	object, err := u.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download container: %w", err)
	}
	defer object.Body.Close()

	temp, err := os.CreateTemp(filepath.Dir(destPath), ".nest-restore-*")
	if err != nil {
		return nil, err
	}
	tempName := temp.Name()
	defer os.Remove(tempName)

	digest := sha256.New()
	size, err := io.Copy(io.MultiWriter(temp, digest), object.Body)
	if err != nil {
		temp.Close()
		return nil, err
	}
	if err := temp.Close(); err != nil {
		return nil, err
	}

	if size != manifest.ByteSize || hex.EncodeToString(digest.Sum(nil)) != manifest.SHA256 {
		return nil, fmt.Errorf("%w: key %s", ErrDigestMismatch, key)
	}

	if err := os.Rename(tempName, destPath); err != nil {
		return nil, err
	}
	return manifest, nil
}

func (u *Uploader) fetchManifest(ctx context.Context, key string) (*Manifest, error) {
	object, err := u.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key + ".manifest"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download manifest: %w", err)
	}
	defer object.Body.Close()

	raw, err := io.ReadAll(object.Body)
	if err != nil {
		return nil, err
	}
	var manifest Manifest
	if err := cbor.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &manifest, nil
}
