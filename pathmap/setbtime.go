//go:build !windows

package pathmap

import "time"

// setCreateTime is a no-op outside Windows: POSIX has no portable syscall
// to rewrite a file's birth time, matching backend/local/setbtime.go.
func setCreateTime(name string, t time.Time) error {
	return nil
}
