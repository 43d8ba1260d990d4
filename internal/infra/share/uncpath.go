package share

import (
	"fmt"
	"strings"
)

// ParseUNC splits a UNC path ("\\host\share\sub\path" or
// "//host/share/sub/path") into the TCP address to dial, the share name to
// mount, and the subpath under that share. Config.SourceRoot and
// Config.ArchiveRoot are plain subpaths, not full UNC strings — only the
// raw SMB_UNC_PATH setting is parsed this way, once, at startup.
func ParseUNC(unc string) (addr, shareName, subpath string, err error) {
	normalized := strings.ReplaceAll(unc, "\\", "/")
	normalized = strings.TrimPrefix(normalized, "//")
	if normalized == unc {
		return "", "", "", fmt.Errorf("not a UNC path: %s", unc)
	}

	parts := strings.SplitN(normalized, "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", fmt.Errorf("malformed UNC path, expected //host/share[/subpath]: %s", unc)
	}

	addr = parts[0] + ":445"
	shareName = parts[1]
	if len(parts) == 3 {
		subpath = "/" + parts[2]
	} else {
		subpath = "/"
	}
	return addr, shareName, subpath, nil
}
