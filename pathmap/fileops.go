package pathmap

import (
	"os"
	"time"
)

// SetTimes sets the access, modification and (where supported) creation
// time of path, used by promotion to reset a file's LRU recency to "now"
// per spec.md §4.4. Creation time cannot be set on every platform; where it
// cannot, only access and modification time are updated, matching the
// teacher's own platform split (backend/local/setbtime.go / setbtime_windows.go).
func SetTimes(path string, t time.Time) error {
	if err := os.Chtimes(path, t, t); err != nil {
		return err
	}
	return setCreateTime(path, t)
}

// TouchAccessTime updates only path's last-access time to t, preserving its
// modification time. Used on every Hot-tier read so that LRU recency
// reflects serving activity without disturbing ForcedDeletionOfFilesAfterHours,
// which keys off last-write time.
func TouchAccessTime(path string, t time.Time) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.Chtimes(path, t, fi.ModTime())
}
