// Copyright (c) 2025 Netskope, Inc. All rights reserved.

package fsx

import (
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/netSkope/db-export-tool/internal/util"
)

// S3 reads export sources from S3 object storage. Paths are of the form
// s3://bucket/key; a key prefix with children behaves like a directory.
type S3 struct {
	client *s3.Client
}

// NewS3 returns an S3-backed filesystem. Credentials come from the SDK
// default chain; a custom endpoint can be set via AWS_ENDPOINT_URL (for
// LocalStack, which also needs path-style addressing).
func NewS3(ctx context.Context, region string) (*S3, error) {
	util.LoadAWSCredentials("", "", "")

	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := os.Getenv("AWS_ENDPOINT_URL"); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true // required for LocalStack
		}
	})

	return &S3{client: client}, nil
}

// NewS3WithClient returns an S3 filesystem over an existing client.
func NewS3WithClient(client *s3.Client) *S3 {
	return &S3{client: client}
}

// SplitS3Path splits an s3://bucket/key URL into bucket and key.
func SplitS3Path(path string) (bucket, key string, err error) {
	if !IsS3Path(path) {
		return "", "", fmt.Errorf("not an s3 path: %s", path)
	}
	rest := strings.TrimPrefix(path, "s3://")
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("missing bucket in s3 path: %s", path)
	}
	return bucket, strings.TrimSuffix(key, "/"), nil
}

// JoinS3Path builds an s3://bucket/key URL.
func JoinS3Path(bucket, key string) string {
	return fmt.Sprintf("s3://%s/%s", bucket, strings.TrimPrefix(key, "/"))
}

// Qualify validates that the path is a well-formed s3 URL. S3 paths are
// already absolute.
func (s *S3) Qualify(path string) (string, error) {
	bucket, key, err := SplitS3Path(path)
	if err != nil {
		return "", err
	}
	if key == "" {
		return "s3://" + bucket, nil
	}
	return JoinS3Path(bucket, key), nil
}

// Stat returns metadata for an object, or reports the prefix as a
// directory when it has children.
func (s *S3) Stat(ctx context.Context, path string) (FileInfo, error) {
	bucket, key, err := SplitS3Path(path)
	if err != nil {
		return FileInfo{}, err
	}

	if key != "" {
		head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err == nil {
			return FileInfo{Path: path, Size: aws.ToInt64(head.ContentLength)}, nil
		}
		var nf *types.NotFound
		if !errors.As(err, &nf) {
			return FileInfo{}, fmt.Errorf("stat %s: %w", path, err)
		}
	}

	// No object at the key; a prefix with children is a directory.
	prefix := key
	if prefix != "" {
		prefix += "/"
	}
	list, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return FileInfo{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if aws.ToInt32(list.KeyCount) == 0 {
		return FileInfo{}, fmt.Errorf("stat %s: %w", path, iofs.ErrNotExist)
	}
	return FileInfo{Path: path, Dir: true}, nil
}

// List returns the immediate children under a prefix.
func (s *S3) List(ctx context.Context, path string) ([]FileInfo, error) {
	bucket, key, err := SplitS3Path(path)
	if err != nil {
		return nil, err
	}

	prefix := key
	if prefix != "" {
		prefix += "/"
	}

	var infos []FileInfo
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			Prefix:            aws.String(prefix),
			Delimiter:         aws.String("/"),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", path, err)
		}

		for _, cp := range out.CommonPrefixes {
			infos = append(infos, FileInfo{
				Path: JoinS3Path(bucket, strings.TrimSuffix(aws.ToString(cp.Prefix), "/")),
				Dir:  true,
			})
		}
		for _, obj := range out.Contents {
			objKey := aws.ToString(obj.Key)
			if objKey == prefix {
				continue // placeholder object for the prefix itself
			}
			infos = append(infos, FileInfo{
				Path: JoinS3Path(bucket, objKey),
				Size: aws.ToInt64(obj.Size),
			})
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}

	return infos, nil
}

// Open opens an object for reading.
func (s *S3) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	bucket, key, err := SplitS3Path(path)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("open %s: %w", path, iofs.ErrNotExist)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return out.Body, nil
}
