package candidate

import (
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// tsPattern matches exactly one trailing timestamp token immediately before
// the extension: either a 14-digit (_YYYYMMDDHHMMSS / .YYYYMMDDHHMMSS) or an
// 8-digit (_YYYYMMDD / .YYYYMMDD) token. T-separated or millisecond-precision
// timestamps are deliberately not matched — the file is its own group.
var tsPattern = regexp.MustCompile(`^(.*)[_.](\d{14}|\d{8})$`)

// StripTSBasename removes exactly one trailing timestamp token from the stem
// of name, if present. The extension is preserved verbatim.
func StripTSBasename(name string) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	m := tsPattern.FindStringSubmatch(stem)
	if m == nil {
		return name
	}
	return m[1] + ext
}

// ExtractTS returns the embedded timestamp as an orderable integer (e.g.
// 20251105120450 or 20251105), or ok=false if name carries no such token.
func ExtractTS(name string) (int64, bool) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	m := tsPattern.FindStringSubmatch(stem)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// SortVersions orders files ascending by (ts or -inf, ChangeTime, AbsPath).
func SortVersions(files []File) {
	sort.SliceStable(files, func(i, j int) bool {
		ti, oki := ExtractTS(files[i].Basename)
		tj, okj := ExtractTS(files[j].Basename)
		vi, vj := tsOrMinusInf(ti, oki), tsOrMinusInf(tj, okj)
		if vi != vj {
			return vi < vj
		}
		if !files[i].ChangeTime.Equal(files[j].ChangeTime) {
			return files[i].ChangeTime.Before(files[j].ChangeTime)
		}
		return files[i].AbsPath < files[j].AbsPath
	})
}

func tsOrMinusInf(ts int64, ok bool) int64 {
	if !ok {
		return -1 << 62
	}
	return ts
}
