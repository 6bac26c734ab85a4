package pathmap

import (
	"io"
	"os"
	"path/filepath"
)

// CreateStaging opens the ".dl" staging file for dest for writing,
// truncating any previous attempt, and creates the shard directory if
// needed. Callers must Close the file and then call FinalizeStaging (on
// success) or RemoveStaging (on failure).
func CreateStaging(dest string) (*os.File, string, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o777); err != nil {
		return nil, "", err
	}
	staging := dest + ".dl"
	f, err := os.OpenFile(staging, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o666)
	if err != nil {
		return nil, "", err
	}
	return f, staging, nil
}

// FinalizeStaging atomically renames staging to dest, making the final name
// refer to the new bytes in a single step (spec.md §3 invariant: "a file
// appears in the Hot tier only after an atomic rename from a sibling temp
// path"). Renaming over an existing dest is allowed, matching os.Rename's
// overwrite semantics on POSIX and Windows alike (Go's implementation
// handles the Windows MoveFileEx REPLACE_EXISTING case internally).
func FinalizeStaging(staging, dest string) error {
	return os.Rename(staging, dest)
}

// RemoveStaging best-effort removes a staging file left behind by a failed
// materialization. The leftover ".dl" file, if any, is Janitor-collectible
// orphanage per spec.md §4.4.
func RemoveStaging(staging string) {
	_ = os.Remove(staging)
}

// CopyFile copies src to the ".dl" staging sibling of dest and then
// atomically renames it into place. Used by cold-to-hot promotion.
func CopyFile(src, dest string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, staging, err := CreateStaging(dest)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, in)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		RemoveStaging(staging)
		return err
	}
	return FinalizeStaging(staging, dest)
}
