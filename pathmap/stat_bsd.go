//go:build darwin || freebsd || netbsd || openbsd

package pathmap

import (
	"os"
	"syscall"
	"time"
)

// accessAndCreateTime reads the access and change time from the raw BSD
// stat structure, following backend/local/stat_unix.go's use of Atimespec.
func accessAndCreateTime(fi os.FileInfo) (accessTime, createTime time.Time) {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return fi.ModTime(), fi.ModTime()
	}
	return time.Unix(st.Atimespec.Unix()), time.Unix(st.Ctimespec.Unix())
}
