package videos

import (
	"bytes"
	"time"

	"github.com/google/uuid"

	"github.com/newtube/backend/internal/models"
)

// Cursor marks the last row of a returned page. Rows sort by
// (updated_at DESC, id DESC); updated_at alone is not unique, so the id
// tie-break guarantees every row is visited exactly once across pages even
// when rows are updated between fetches.
type Cursor struct {
	ID        uuid.UUID `json:"id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Page trims the limit+1 probe row and derives the next cursor. A nil
// cursor means the final page.
func Page(rows []models.Video, limit int) ([]models.Video, *Cursor) {
	if len(rows) <= limit {
		return rows, nil
	}
	items := rows[:limit]
	last := items[len(items)-1]
	return items, &Cursor{ID: last.ID, UpdatedAt: last.UpdatedAt}
}

// beforeCursor reports whether v belongs to a page after c, i.e. satisfies
// updated_at < c.updated_at OR (updated_at = c.updated_at AND id < c.id).
func beforeCursor(v models.Video, c Cursor) bool {
	if v.UpdatedAt.Before(c.UpdatedAt) {
		return true
	}
	return v.UpdatedAt.Equal(c.UpdatedAt) && bytes.Compare(v.ID[:], c.ID[:]) < 0
}

// moreRecent is the (updated_at DESC, id DESC) sort order.
func moreRecent(a, b models.Video) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return bytes.Compare(a.ID[:], b.ID[:]) > 0
}
