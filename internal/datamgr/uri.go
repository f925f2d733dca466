// Package datamgr implements the URI model and Data manager of
// SPEC_FULL.md §4.3: pure URI parsing plus capability-dispatched
// exists/list/mkdir/delete/copy operations across local, SSH-staged grid,
// remote-gateway, and S3 backends.
package datamgr

import (
	"fmt"
	"path"
	"strings"
)

// Scheme identifies which backend a URI addresses.
type Scheme string

const (
	SchemeLocal  Scheme = "local"
	SchemeRemote Scheme = "remote"
	SchemeSSH    Scheme = "ssh"
	SchemeS3     Scheme = "s3"
)

// URI is the parsed form of a scheme://authority/path string.
type URI struct {
	Raw         string
	Scheme      Scheme
	Authority   string
	Path        string
	ChoppedPath string
	ChoppedURI  string
	Name        string
}

// Parse decomposes raw into its scheme, authority, and path components.
// Parsing is pure and never touches any backend.
func Parse(raw string) (URI, error) {
	idx := strings.Index(raw, "://")
	if idx < 0 {
		return URI{}, fmt.Errorf("uri %q missing scheme separator", raw)
	}

	scheme := Scheme(raw[:idx])
	rest := raw[idx+3:]

	var authority, uriPath string
	if slash := strings.Index(rest, "/"); slash >= 0 {
		authority = rest[:slash]
		uriPath = rest[slash:]
	} else {
		authority = rest
		uriPath = ""
	}

	chopped := uriPath
	if chopped != "/" {
		chopped = strings.TrimSuffix(chopped, "/")
	}

	name := ""
	if chopped != "" && chopped != "/" {
		name = path.Base(chopped)
	}

	return URI{
		Raw:         raw,
		Scheme:      scheme,
		Authority:   authority,
		Path:        uriPath,
		ChoppedPath: chopped,
		ChoppedURI:  fmt.Sprintf("%s://%s%s", scheme, authority, chopped),
		Name:        name,
	}, nil
}

// Join appends name as a new path segment and reparses the result.
func (u URI) Join(name string) URI {
	joined := strings.TrimSuffix(u.ChoppedURI, "/") + "/" + strings.TrimPrefix(name, "/")
	out, _ := Parse(joined)
	return out
}

// String returns the URI in canonical scheme://authority/path form.
func (u URI) String() string {
	return fmt.Sprintf("%s://%s%s", u.Scheme, u.Authority, u.Path)
}
