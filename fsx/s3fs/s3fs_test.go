package s3fs

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/Abraxas-365/visionocr/errx"
	"github.com/Abraxas-365/visionocr/fsx"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type fakeS3 struct {
	API
	objects map[string][]byte // "bucket/key"
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func TestReadWriteRoundTrip(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	fs := NewWithClient(fake, "default-bucket")
	ctx := context.Background()

	if err := fs.WriteFile(ctx, "s3://scans/2024/page.png", []byte("png")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, ok := fake.objects["scans/2024/page.png"]; !ok {
		t.Fatalf("object stored under wrong key: %v", fake.objects)
	}
	if err := fs.WriteFile(ctx, "results/out.json", []byte("{}")); err != nil {
		t.Fatal(err)
	}
	if _, ok := fake.objects["default-bucket/results/out.json"]; !ok {
		t.Fatalf("bare key not written to the default bucket")
	}

	data, err := fs.ReadFile(ctx, "s3://scans/2024/page.png")
	if err != nil || string(data) != "png" {
		t.Fatalf("ReadFile = %q, %v", data, err)
	}
	info, err := fs.Stat(ctx, "s3://scans/2024/page.png")
	if err != nil || info.Size != 3 || info.Name != "page.png" {
		t.Fatalf("Stat = %+v, %v", info, err)
	}
}

func TestMissingObjects(t *testing.T) {
	fs := NewWithClient(&fakeS3{objects: map[string][]byte{}}, "")
	ctx := context.Background()

	_, err := fs.ReadFile(ctx, "s3://scans/missing.png")
	if !errx.IsCode(err, fsx.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	ok, err := fs.Exists(ctx, "s3://scans/missing.png")
	if ok || err != nil {
		t.Fatalf("Exists = %v, %v", ok, err)
	}
	if _, err := fs.ReadFile(ctx, "bare-key"); !errx.IsCode(err, fsx.ErrInvalidPath) {
		t.Fatalf("bare key without default bucket should be invalid, got %v", err)
	}
}

func TestJoin(t *testing.T) {
	fs := NewWithClient(nil, "")
	if got := fs.Join("s3://bucket/out", "run", "result.json"); got != "s3://bucket/out/run/result.json" {
		t.Fatalf("unexpected join %q", got)
	}
}
