package extract

import "github.com/docrag/engine/internal/ragerr"

func newCorruptSourceError(path string, cause error) error {
	return ragerr.New(ragerr.ErrCodeCorruptSource, "source document is corrupt or unreadable", cause).
		WithDetail("uri", path)
}
