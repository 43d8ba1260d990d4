// Package share wraps the SMB client used to scan, stat, and archive files
// on the remitter share. It is the only package in this module that talks
// to the network filesystem.
package share

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net"
	"path"
	"strings"
	"time"

	"github.com/hirochachacha/go-smb2"

	"github.com/coordinatorsvc/coordinator/internal/domain/candidate"
)

// defaultIgnoreSuffixes are always excluded regardless of configuration:
// any basename starting with ~$ or ending in .part, .tmp, or .crdownload.
var defaultIgnorePrefixes = []string{"~$"}
var defaultIgnoreSuffixes = []string{".part", ".tmp", ".crdownload"}

// Gateway is a single SMB session bound to a single share (source or
// archive may be the same share, different subpaths).
type Gateway struct {
	conn         net.Conn
	session      *smb2.Session
	share        *smb2.Share
	sourceRoot   string
	archiveRoot  string
	extraIgnores []string
}

// Config dials and authenticates the session used to build a Gateway.
type Config struct {
	Addr           string
	ShareName      string
	User           string
	Password       string
	Domain         string
	SourceRoot     string // UNC subpath under ShareName holding remitter drops
	ArchiveRoot    string // UNC subpath under ShareName holding archived files
	IgnoreSuffixes []string
}

// Dial opens a TCP connection, negotiates SMB2/3, authenticates, and mounts
// cfg.ShareName. The returned Gateway owns the connection and must be
// closed by the caller.
func Dial(ctx context.Context, cfg Config) (*Gateway, error) {
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("dial smb share %s: %w", cfg.Addr, err)
	}

	d := &smb2.Dialer{
		Initiator: &smb2.NTLMInitiator{
			User:     cfg.User,
			Password: cfg.Password,
			Domain:   cfg.Domain,
		},
	}
	session, err := d.DialContext(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("negotiate smb session: %w", err)
	}

	mounted, err := session.Mount(cfg.ShareName)
	if err != nil {
		session.Logoff()
		conn.Close()
		return nil, fmt.Errorf("mount share %s: %w", cfg.ShareName, err)
	}

	return &Gateway{
		conn:         conn,
		session:      session,
		share:        mounted,
		sourceRoot:   cfg.SourceRoot,
		archiveRoot:  cfg.ArchiveRoot,
		extraIgnores: cfg.IgnoreSuffixes,
	}, nil
}

// Close tears down the share mount and underlying session, outer to inner.
func (g *Gateway) Close() error {
	if g.share != nil {
		g.share.Umount()
	}
	if g.session != nil {
		g.session.Logoff()
	}
	if g.conn != nil {
		return g.conn.Close()
	}
	return nil
}

// ListFiles walks root and returns every entry not excluded by the ignore
// filter, as candidate.File values. It does not recurse into the archive
// root, even if nested under root.
func (g *Gateway) ListFiles(ctx context.Context, root string) ([]candidate.File, error) {
	var out []candidate.File
	err := Do(ctx, DefaultRetryPolicy, func() error {
		out = out[:0]
		return g.walk(root, root, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("list files under %s: %w", root, err)
	}
	return out, nil
}

func (g *Gateway) walk(root, dir string, out *[]candidate.File) error {
	entries, err := g.share.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		full := path.Join(dir, entry.Name())
		if entry.IsDir() {
			if strings.HasPrefix(full, g.archiveRoot) {
				continue
			}
			if err := g.walk(root, full, out); err != nil {
				return err
			}
			continue
		}
		if g.isIgnored(entry.Name()) {
			continue
		}
		if entry.Size() == 0 {
			continue
		}
		*out = append(*out, candidate.NewFile(root, full, entry.Size(), changeTime(entry)))
	}
	return nil
}

func (g *Gateway) isIgnored(name string) bool {
	for _, p := range defaultIgnorePrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	for _, s := range defaultIgnoreSuffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	for _, s := range g.extraIgnores {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

// Open opens path for reading. The caller must close the returned reader.
func (g *Gateway) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	var f *smb2.File
	err := Do(ctx, DefaultRetryPolicy, func() error {
		opened, err := g.share.Open(p)
		if err != nil {
			if isNotExist(err) {
				return ErrNotFound
			}
			return err
		}
		f = opened
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	return f, nil
}

// Stat samples the current size, mtime, and change time of path. Used by
// both stability modes.
func (g *Gateway) Stat(ctx context.Context, p string) (StatResult, error) {
	var result StatResult
	err := Do(ctx, DefaultRetryPolicy, func() error {
		info, err := g.share.Stat(p)
		if err != nil {
			if isNotExist(err) {
				return ErrNotFound
			}
			return err
		}
		result = StatResult{
			Size:       info.Size(),
			ModTime:    info.ModTime(),
			ChangeTime: changeTime(info),
		}
		return nil
	})
	if err != nil {
		return StatResult{}, err
	}
	return result, nil
}

// MoveToArchive renames src to dst, creating dst's parent directories
// first. On failure src is left untouched.
func (g *Gateway) MoveToArchive(ctx context.Context, src, dst string) error {
	return Do(ctx, DefaultRetryPolicy, func() error {
		if err := g.mkdirAll(path.Dir(dst)); err != nil {
			return fmt.Errorf("create archive parents for %s: %w", dst, err)
		}
		if err := g.share.Rename(src, dst); err != nil {
			return fmt.Errorf("rename %s to %s: %w", src, dst, err)
		}
		return nil
	})
}

func (g *Gateway) mkdirAll(dir string) error {
	if dir == "" || dir == "." || dir == "/" {
		return nil
	}
	if _, err := g.share.Stat(dir); err == nil {
		return nil
	}
	if err := g.mkdirAll(path.Dir(dir)); err != nil {
		return err
	}
	err := g.share.Mkdir(dir, 0o755)
	if err != nil && !isExist(err) {
		return err
	}
	return nil
}

// ComputeArchivePath mirrors src's path relative to the source root under
// the archive root: archive_root / relpath(src, source_root).
func (g *Gateway) ComputeArchivePath(src string) string {
	rel := strings.TrimPrefix(src, g.sourceRoot)
	rel = strings.TrimPrefix(rel, "/")
	rel = strings.TrimPrefix(rel, "\\")
	return path.Join(g.archiveRoot, rel)
}

func changeTime(info fs.FileInfo) time.Time {
	if st, ok := info.Sys().(interface{ ChangeTime() time.Time }); ok {
		return st.ChangeTime()
	}
	return info.ModTime()
}

func isNotExist(err error) bool {
	return strings.Contains(err.Error(), "OBJECT_NAME_NOT_FOUND") ||
		strings.Contains(err.Error(), "no such file")
}

func isExist(err error) bool {
	return strings.Contains(err.Error(), "OBJECT_NAME_COLLISION") ||
		strings.Contains(err.Error(), "file exists")
}
