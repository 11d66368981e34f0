package s3fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/Abraxas-365/visionocr/errx"
	"github.com/Abraxas-365/visionocr/fsx"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// API is the subset of the S3 client used here
type API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// FileSystem maps s3://bucket/key paths onto S3 objects. Paths without a
// scheme are keys in the default bucket.
type FileSystem struct {
	client API
	bucket string
}

var _ fsx.FileSystem = (*FileSystem)(nil)

// New creates a file system with the default AWS credential chain
func New(ctx context.Context, region, bucket string) (*FileSystem, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fsx.ErrRegistry.NewWithCause(fsx.ErrReadFailed, err).WithDetail("service", "s3")
	}
	return NewWithClient(s3.NewFromConfig(cfg), bucket), nil
}

// NewWithClient wraps an existing client
func NewWithClient(client API, bucket string) *FileSystem {
	return &FileSystem{client: client, bucket: bucket}
}

// split parses "s3://bucket/key" or a bare key
func (f *FileSystem) split(p string) (string, string, error) {
	if rest, ok := strings.CutPrefix(p, "s3://"); ok {
		bucket, key, _ := strings.Cut(rest, "/")
		if bucket == "" {
			return "", "", fsx.ErrRegistry.New(fsx.ErrInvalidPath).WithDetail("path", p)
		}
		return bucket, key, nil
	}
	if f.bucket == "" {
		return "", "", fsx.ErrRegistry.NewWithMessage(fsx.ErrInvalidPath, "no bucket for path").
			WithDetail("path", p)
	}
	return f.bucket, strings.TrimPrefix(p, "/"), nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}

func wrap(err error, code errx.Code, p string) error {
	if isNotFound(err) {
		return fsx.ErrRegistry.NewWithCause(fsx.ErrNotFound, err).WithDetail("path", p)
	}
	return fsx.ErrRegistry.NewWithCause(code, err).WithDetail("path", p)
}

func (f *FileSystem) ReadFile(ctx context.Context, p string) ([]byte, error) {
	body, err := f.ReadFileStream(ctx, p)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, wrap(err, fsx.ErrReadFailed, p)
	}
	return data, nil
}

func (f *FileSystem) ReadFileStream(ctx context.Context, p string) (io.ReadCloser, error) {
	bucket, key, err := f.split(p)
	if err != nil {
		return nil, err
	}
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, wrap(err, fsx.ErrReadFailed, p)
	}
	return out.Body, nil
}

func (f *FileSystem) Stat(ctx context.Context, p string) (fsx.FileInfo, error) {
	bucket, key, err := f.split(p)
	if err != nil {
		return fsx.FileInfo{}, err
	}
	out, err := f.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fsx.FileInfo{}, wrap(err, fsx.ErrReadFailed, p)
	}
	return fsx.FileInfo{
		Name:        path.Base(key),
		Size:        aws.ToInt64(out.ContentLength),
		ModTime:     aws.ToTime(out.LastModified),
		ContentType: aws.ToString(out.ContentType),
		Metadata:    out.Metadata,
	}, nil
}

func (f *FileSystem) List(ctx context.Context, p string) ([]fsx.FileInfo, error) {
	bucket, prefix, err := f.split(p)
	if err != nil {
		return nil, err
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var out []fsx.FileInfo
	pager := s3.NewListObjectsV2Paginator(f.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, wrap(err, fsx.ErrReadFailed, p)
		}
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			out = append(out, fsx.FileInfo{Name: name, IsDir: true})
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == prefix {
				continue
			}
			out = append(out, fsx.FileInfo{
				Name:    path.Base(key),
				Size:    aws.ToInt64(obj.Size),
				ModTime: aws.ToTime(obj.LastModified),
			})
		}
	}
	return out, nil
}

func (f *FileSystem) WriteFile(ctx context.Context, p string, data []byte) error {
	bucket, key, err := f.split(p)
	if err != nil {
		return err
	}
	_, err = f.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(http.DetectContentType(data)),
	})
	if err != nil {
		return wrap(err, fsx.ErrWriteFailed, p)
	}
	return nil
}

// WriteFileStream buffers r since uploads need a known length
func (f *FileSystem) WriteFileStream(ctx context.Context, p string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return wrap(err, fsx.ErrWriteFailed, p)
	}
	return f.WriteFile(ctx, p, data)
}

// CreateDir is a no-op; S3 prefixes exist implicitly
func (f *FileSystem) CreateDir(ctx context.Context, p string) error {
	_, _, err := f.split(p)
	return err
}

func (f *FileSystem) DeleteFile(ctx context.Context, p string) error {
	bucket, key, err := f.split(p)
	if err != nil {
		return err
	}
	if _, err := f.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return wrap(err, fsx.ErrDeleteFailed, p)
	}
	return nil
}

func (f *FileSystem) DeleteDir(ctx context.Context, p string, recursive bool) error {
	bucket, prefix, err := f.split(p)
	if err != nil {
		return err
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	pager := s3.NewListObjectsV2Paginator(f.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return wrap(err, fsx.ErrDeleteFailed, p)
		}
		if len(page.Contents) == 0 {
			continue
		}
		if !recursive {
			return fsx.ErrRegistry.New(fsx.ErrDirNotEmpty).WithDetail("path", p)
		}
		ids := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			ids = append(ids, types.ObjectIdentifier{Key: obj.Key})
		}
		if _, err := f.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		}); err != nil {
			return wrap(err, fsx.ErrDeleteFailed, p)
		}
	}
	return nil
}

// Join keeps the s3:// prefix of the first element
func (f *FileSystem) Join(elem ...string) string {
	if len(elem) == 0 {
		return ""
	}
	if rest, ok := strings.CutPrefix(elem[0], "s3://"); ok {
		parts := append([]string{rest}, elem[1:]...)
		return "s3://" + path.Join(parts...)
	}
	return path.Join(elem...)
}

func (f *FileSystem) Exists(ctx context.Context, p string) (bool, error) {
	_, err := f.Stat(ctx, p)
	if err == nil {
		return true, nil
	}
	if errx.IsCode(err, fsx.ErrNotFound) {
		return false, nil
	}
	return false, err
}
