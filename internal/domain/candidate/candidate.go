// Package candidate models the files a run considers processing: the
// in-memory candidate scanned off the share, and the version groups derived
// from them.
package candidate

import (
	"path"
	"strings"
	"time"
)

// File is a single entry discovered on the share during a scan. It carries
// just enough metadata for filtering, grouping, and stability probing;
// nothing here requires network I/O to construct.
type File struct {
	AbsPath    string
	Basename   string
	Remitter   string
	Size       int64
	ChangeTime time.Time
}

// NewFile derives a File from an absolute source path rooted at root. The
// remitter is the first path segment under root, per the glossary.
func NewFile(root, absPath string, size int64, changeTime time.Time) File {
	base := path.Base(absPath)
	return File{
		AbsPath:    absPath,
		Basename:   base,
		Remitter:   firstSegment(root, absPath),
		Size:       size,
		ChangeTime: changeTime,
	}
}

func firstSegment(root, absPath string) string {
	rel := strings.TrimPrefix(absPath, root)
	rel = strings.TrimPrefix(rel, "/")
	rel = strings.TrimPrefix(rel, "\\")
	rel = strings.ReplaceAll(rel, "\\", "/")
	if i := strings.Index(rel, "/"); i >= 0 {
		return rel[:i]
	}
	return rel
}

// Group is a set of File entries sharing (Remitter, strip_ts_basename).
// Members is sorted ascending by (ts or -inf, ChangeTime, AbsPath) — see
// version.go.
type Group struct {
	Remitter       string
	StrippedName   string
	Members        []File
}

// Key identifies a Group uniquely within a run.
type Key struct {
	Remitter     string
	StrippedName string
}

func (g Group) Key() Key {
	return Key{Remitter: g.Remitter, StrippedName: g.StrippedName}
}

// Newest returns the process candidate: the last element of Members.
// Group must be non-empty; callers build groups only from non-empty slices.
func (g Group) Newest() File {
	return g.Members[len(g.Members)-1]
}

// ArchiveOnly returns every member except the newest.
func (g Group) ArchiveOnly() []File {
	if len(g.Members) <= 1 {
		return nil
	}
	return g.Members[:len(g.Members)-1]
}

// GroupByVersion buckets files by (remitter, strip_ts_basename(basename)) and
// sorts each bucket ascending per the versioning utility's ordering rule.
// Group iteration order is not guaranteed — callers process groups
// independently and must not rely on a particular order; no cross-file
// ordering is guaranteed.
func GroupByVersion(files []File) []Group {
	index := make(map[Key]int)
	var groups []Group

	for _, f := range files {
		k := Key{Remitter: f.Remitter, StrippedName: StripTSBasename(f.Basename)}
		if i, ok := index[k]; ok {
			groups[i].Members = append(groups[i].Members, f)
			continue
		}
		index[k] = len(groups)
		groups = append(groups, Group{
			Remitter:     k.Remitter,
			StrippedName: k.StrippedName,
			Members:      []File{f},
		})
	}

	for i := range groups {
		SortVersions(groups[i].Members)
	}
	return groups
}
