package database

import (
	"time"
)

// StoredEmbedding represents an image embedding cached in the database.
// Size and ModTime fingerprint the file the embedding was computed from.
type StoredEmbedding struct {
	Path      string
	Size      int64
	ModTime   time.Time
	Embedding []float32
	Model     string
	Dim       int
	CreatedAt time.Time
}

// Fresh reports whether the cached embedding was computed from a file with the given
// size and modification time by the given model.
// Times are compared at microsecond precision, the resolution of PostgreSQL timestamps.
func (e *StoredEmbedding) Fresh(size int64, modTime time.Time, model string) bool {
	if e.Size != size || e.Model != model || len(e.Embedding) == 0 {
		return false
	}
	return e.ModTime.Truncate(time.Microsecond).Equal(modTime.Truncate(time.Microsecond))
}
