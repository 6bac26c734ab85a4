//go:build windows

package pathmap

import (
	"syscall"
	"time"
)

// setCreateTime sets the birth time of name, following
// backend/local/setbtime_windows.go.
func setCreateTime(name string, t time.Time) (err error) {
	pathp, err := syscall.UTF16PtrFromString(name)
	if err != nil {
		return err
	}
	h, err := syscall.CreateFile(pathp,
		syscall.FILE_WRITE_ATTRIBUTES, syscall.FILE_SHARE_WRITE, nil,
		syscall.OPEN_EXISTING, syscall.FILE_FLAG_BACKUP_SEMANTICS, 0)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := syscall.Close(h)
		if err == nil {
			err = closeErr
		}
	}()
	bFileTime := syscall.NsecToFiletime(t.UnixNano())
	return syscall.SetFileTime(h, &bFileTime, nil, nil)
}
