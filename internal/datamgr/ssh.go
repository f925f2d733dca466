package datamgr

import (
	"context"
	"fmt"
	"io"
	"net"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// sshBackend addresses a grid scheduler's shared filesystem over SFTP —
// used to stage inputs/outputs for gridengine/slurm contexts whose work
// filesystem is not locally mounted on the engine host.
type sshBackend struct{}

func (sshBackend) dial(c SSHCtx) (*ssh.Client, *sftp.Client, error) {
	cb := c.HostKeyCB
	if cb == nil {
		cb = ssh.InsecureIgnoreHostKey()
	}
	config := &ssh.ClientConfig{
		User:            c.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(c.Signer)},
		HostKeyCallback: cb,
	}
	addr := net.JoinHostPort(c.Host, fmt.Sprintf("%d", c.Port))
	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, nil, fmt.Errorf("ssh dial %s: %w", addr, err)
	}
	sc, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("sftp client: %w", err)
	}
	return client, sc, nil
}

func (b sshBackend) Exists(_ context.Context, uri URI, c Ctx) (bool, error) {
	cli, sc, err := b.dial(c.(SSHCtx))
	if err != nil {
		return false, err
	}
	defer cli.Close()
	defer sc.Close()

	_, err = sc.Stat(uri.ChoppedPath)
	if err != nil {
		if sftpNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (b sshBackend) List(_ context.Context, uri URI, c Ctx) ([]string, error) {
	cli, sc, err := b.dial(c.(SSHCtx))
	if err != nil {
		return nil, err
	}
	defer cli.Close()
	defer sc.Close()

	entries, err := sc.ReadDir(uri.ChoppedPath)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func (b sshBackend) Mkdir(_ context.Context, uri URI, recursive bool, c Ctx) error {
	cli, sc, err := b.dial(c.(SSHCtx))
	if err != nil {
		return err
	}
	defer cli.Close()
	defer sc.Close()

	if recursive {
		return sc.MkdirAll(uri.ChoppedPath)
	}
	return sc.Mkdir(uri.ChoppedPath)
}

func (b sshBackend) Delete(_ context.Context, uri URI, c Ctx) error {
	cli, sc, err := b.dial(c.(SSHCtx))
	if err != nil {
		return err
	}
	defer cli.Close()
	defer sc.Close()

	return sc.RemoveAll(uri.ChoppedPath)
}

func (b sshBackend) Open(_ context.Context, uri URI, c Ctx) (io.ReadCloser, error) {
	cli, sc, err := b.dial(c.(SSHCtx))
	if err != nil {
		return nil, err
	}
	f, err := sc.Open(uri.ChoppedPath)
	if err != nil {
		sc.Close()
		cli.Close()
		return nil, err
	}
	return &sftpReadCloser{File: f, sc: sc, cli: cli}, nil
}

func (b sshBackend) Create(_ context.Context, uri URI, c Ctx) (io.WriteCloser, error) {
	cli, sc, err := b.dial(c.(SSHCtx))
	if err != nil {
		return nil, err
	}
	f, err := sc.Create(uri.ChoppedPath)
	if err != nil {
		sc.Close()
		cli.Close()
		return nil, err
	}
	return &sftpWriteCloser{File: f, sc: sc, cli: cli}, nil
}

// sftpReadCloser and sftpWriteCloser carry the SSH and SFTP client
// connections they were opened over so Copy can close the whole chain
// through a single io.ReadCloser/io.WriteCloser.
type sftpReadCloser struct {
	*sftp.File
	sc  *sftp.Client
	cli *ssh.Client
}

func (f *sftpReadCloser) Close() error {
	err := f.File.Close()
	f.sc.Close()
	f.cli.Close()
	return err
}

type sftpWriteCloser struct {
	*sftp.File
	sc  *sftp.Client
	cli *ssh.Client
}

func (f *sftpWriteCloser) Close() error {
	err := f.File.Close()
	f.sc.Close()
	f.cli.Close()
	return err
}

func sftpNotExist(err error) bool {
	se, ok := err.(*sftp.StatusError)
	if !ok {
		return false
	}
	return se.Code == 2 // SSH_FX_NO_SUCH_FILE
}
