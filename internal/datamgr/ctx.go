package datamgr

import (
	"github.com/go-resty/resty/v2"
	"github.com/minio/minio-go/v7"
	"golang.org/x/crypto/ssh"
)

// Ctx is the per-scheme configuration bundle passed to every Manager
// operation: credentials, a retry policy, and a remote client handle, per
// SPEC_FULL.md §4.3. It is a tagged union of four concrete types rather
// than an untyped map, per §9's design guidance.
type Ctx interface {
	scheme() Scheme
}

// LocalCtx addresses the scheme-less filesystem the engine itself runs on.
type LocalCtx struct{}

func (LocalCtx) scheme() Scheme { return SchemeLocal }

// SSHCtx addresses a grid scheduler's shared filesystem over SFTP.
type SSHCtx struct {
	Host       string
	Port       int
	User       string
	Signer     ssh.Signer
	HostKeyCB  ssh.HostKeyCallback
	RetryLimit int
}

func (SSHCtx) scheme() Scheme { return SchemeSSH }

// RemoteCtx addresses a remote HPC gateway's REST API.
type RemoteCtx struct {
	BaseURL    string
	Token      string
	Client     *resty.Client
	RetryLimit int
}

func (RemoteCtx) scheme() Scheme { return SchemeRemote }

// S3Ctx addresses an S3-compatible object store.
type S3Ctx struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Client    *minio.Client
}

func (S3Ctx) scheme() Scheme { return SchemeS3 }
