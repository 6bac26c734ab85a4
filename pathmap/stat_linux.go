//go:build linux

package pathmap

import (
	"os"
	"syscall"
	"time"
)

// accessAndCreateTime reads the access and change time from the raw Linux
// stat structure, following backend/local/metadata_linux.go's readTime.
// Linux has no true birth time in struct stat, so ctime (last metadata
// change) stands in for creation time, same as the teacher does.
func accessAndCreateTime(fi os.FileInfo) (accessTime, createTime time.Time) {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return fi.ModTime(), fi.ModTime()
	}
	return time.Unix(st.Atim.Unix()), time.Unix(st.Ctim.Unix())
}
