//go:build windows

package pathmap

import (
	"os"
	"syscall"
	"time"
)

// accessAndCreateTime reads access/creation time from the Win32 file
// attribute data, following backend/local/stat_windows.go.
func accessAndCreateTime(fi os.FileInfo) (accessTime, createTime time.Time) {
	d, ok := fi.Sys().(*syscall.Win32FileAttributeData)
	if !ok {
		return fi.ModTime(), fi.ModTime()
	}
	return time.Unix(0, d.LastAccessTime.Nanoseconds()), time.Unix(0, d.CreationTime.Nanoseconds())
}
