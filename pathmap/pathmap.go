// Package pathmap implements the deterministic, sharded mapping from a
// content hash to a filesystem path, following the layout backend/local
// uses for its own root-relative path joins (filepath.Join against a
// configured root).
package pathmap

import (
	"os"
	"path/filepath"
	"time"

	"github.com/mare-synchronos/filecached/hashid"
)

// shardWidth is the number of leading hex characters used to bucket files
// into a subdirectory, per spec.md §4.1: "<root>/<H[0:2]>/<H>".
const shardWidth = 2

// PathFor returns the absolute path at which h would be stored under root.
// The mapping is pure: it performs no I/O and never fails.
func PathFor(root string, h hashid.Hash) string {
	h = hashid.Normalize(h.String())
	return filepath.Join(root, h.Shard(shardWidth), h.String())
}

// StagingPathFor returns the sibling ".dl" temp path used while a file is
// being materialized into its final location.
func StagingPathFor(root string, h hashid.Hash) string {
	return PathFor(root, h) + ".dl"
}

// Info is a stat-like record describing a StoredFile on disk.
type Info struct {
	Path       string
	Size       int64
	ModTime    time.Time
	AccessTime time.Time
	CreateTime time.Time
}

// InfoFor stats the file for h under root. It returns ok=false if the file
// does not exist or cannot be statted.
func InfoFor(root string, h hashid.Hash) (info Info, ok bool) {
	p := PathFor(root, h)
	fi, err := os.Stat(p)
	if err != nil {
		return Info{}, false
	}
	at, ct := accessAndCreateTime(fi)
	return Info{
		Path:       p,
		Size:       fi.Size(),
		ModTime:    fi.ModTime(),
		AccessTime: at,
		CreateTime: ct,
	}, true
}

// StatDirect stats an arbitrary path directly, without going through the
// hash-derived sharding rule. The Janitor uses this when it already has a
// path from walking a tier root, including staging (".dl") leftovers whose
// name does not round-trip through PathFor.
func StatDirect(path string) (Info, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Info{}, err
	}
	at, ct := accessAndCreateTime(fi)
	return Info{
		Path:       path,
		Size:       fi.Size(),
		ModTime:    fi.ModTime(),
		AccessTime: at,
		CreateTime: ct,
	}, nil
}
