package datamgr

import (
	"context"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// s3Backend addresses an S3-compatible object store. The URI's authority
// is the bucket name and its chopped_path (sans leading slash) is the
// object key prefix. Object storage has no real directories, so Mkdir is
// a no-op and List returns the entries one level below the given prefix
// (objects and sub-prefixes); deeper keys are not listed.
type s3Backend struct{}

func (s3Backend) client(c S3Ctx) (*minio.Client, error) {
	if c.Client != nil {
		return c.Client, nil
	}
	return minio.New(c.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.AccessKey, c.SecretKey, ""),
		Secure: c.UseSSL,
	})
}

func (uri URI) s3Key() string {
	return strings.TrimPrefix(uri.ChoppedPath, "/")
}

func (b s3Backend) Exists(ctx context.Context, uri URI, c Ctx) (bool, error) {
	cli, err := b.client(c.(S3Ctx))
	if err != nil {
		return false, err
	}
	_, err = cli.StatObject(ctx, uri.Authority, uri.s3Key(), minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NotFound" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (b s3Backend) List(ctx context.Context, uri URI, c Ctx) ([]string, error) {
	cli, err := b.client(c.(S3Ctx))
	if err != nil {
		return nil, err
	}

	prefix := uri.s3Key()
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var names []string
	for obj := range cli.ListObjects(ctx, uri.Authority, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		names = append(names, strings.TrimPrefix(strings.TrimSuffix(obj.Key, "/"), prefix))
	}
	return names, nil
}

// Mkdir is a no-op: S3 has no directory objects, so a prefix exists the
// moment its first object is written.
func (s3Backend) Mkdir(_ context.Context, _ URI, _ bool, _ Ctx) error {
	return nil
}

func (b s3Backend) Delete(ctx context.Context, uri URI, c Ctx) error {
	cli, err := b.client(c.(S3Ctx))
	if err != nil {
		return err
	}

	prefix := uri.s3Key()
	objCh := cli.ListObjects(ctx, uri.Authority, minio.ListObjectsOptions{Prefix: prefix, Recursive: true})
	keys := make(chan minio.ObjectInfo)
	go func() {
		defer close(keys)
		for obj := range objCh {
			keys <- obj
		}
	}()
	for result := range cli.RemoveObjects(ctx, uri.Authority, keys, minio.RemoveObjectsOptions{}) {
		if result.Err != nil {
			return result.Err
		}
	}
	return nil
}

func (b s3Backend) Open(ctx context.Context, uri URI, c Ctx) (io.ReadCloser, error) {
	cli, err := b.client(c.(S3Ctx))
	if err != nil {
		return nil, err
	}
	return cli.GetObject(ctx, uri.Authority, uri.s3Key(), minio.GetObjectOptions{})
}

func (b s3Backend) Create(ctx context.Context, uri URI, c Ctx) (io.WriteCloser, error) {
	cli, err := b.client(c.(S3Ctx))
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	errCh := make(chan error, 1)
	go func() {
		_, err := cli.PutObject(ctx, uri.Authority, uri.s3Key(), pr, -1, minio.PutObjectOptions{})
		pr.CloseWithError(err)
		errCh <- err
	}()

	return &s3Upload{pw: pw, errCh: errCh}, nil
}

type s3Upload struct {
	pw    *io.PipeWriter
	errCh chan error
}

func (u *s3Upload) Write(p []byte) (int, error) { return u.pw.Write(p) }

func (u *s3Upload) Close() error {
	if err := u.pw.Close(); err != nil {
		return err
	}
	return <-u.errCh
}
