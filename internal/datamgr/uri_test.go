package datamgr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse_LocalWithTrailingSlash(t *testing.T) {
	uri, err := Parse("local:///data/output/")
	require.NoError(t, err)
	require.Equal(t, SchemeLocal, uri.Scheme)
	require.Equal(t, "", uri.Authority)
	require.Equal(t, "/data/output/", uri.Path)
	require.Equal(t, "/data/output", uri.ChoppedPath)
	require.Equal(t, "local:///data/output", uri.ChoppedURI)
	require.Equal(t, "output", uri.Name)
}

func TestParse_WithAuthority(t *testing.T) {
	uri, err := Parse("s3://my-bucket/prefix/key.txt")
	require.NoError(t, err)
	require.Equal(t, SchemeS3, uri.Scheme)
	require.Equal(t, "my-bucket", uri.Authority)
	require.Equal(t, "/prefix/key.txt", uri.Path)
	require.Equal(t, "key.txt", uri.Name)
}

func TestParse_Root(t *testing.T) {
	uri, err := Parse("remote://gateway.example.com/")
	require.NoError(t, err)
	require.Equal(t, "gateway.example.com", uri.Authority)
	require.Equal(t, "/", uri.ChoppedPath)
	require.Equal(t, "", uri.Name)
}

func TestParse_MissingScheme(t *testing.T) {
	_, err := Parse("/just/a/path")
	require.Error(t, err)
}

func TestJoin(t *testing.T) {
	base, err := Parse("local:///data/work")
	require.NoError(t, err)
	joined := base.Join("sample.fastq")
	require.Equal(t, "local:///data/work/sample.fastq", joined.ChoppedURI)
	require.Equal(t, "sample.fastq", joined.Name)
}
