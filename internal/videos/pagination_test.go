package videos

import (
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newtube/backend/internal/models"
)

// pageOf simulates the repository query: filter by cursor, sort
// (updated_at DESC, id DESC), fetch limit+1 probe rows, trim via Page.
func pageOf(all []models.Video, cursor *Cursor, limit int) ([]models.Video, *Cursor) {
	var filtered []models.Video
	for _, v := range all {
		if cursor == nil || beforeCursor(v, *cursor) {
			filtered = append(filtered, v)
		}
	}
	sort.Slice(filtered, func(i, j int) bool { return moreRecent(filtered[i], filtered[j]) })
	if len(filtered) > limit+1 {
		filtered = filtered[:limit+1]
	}
	return Page(filtered, limit)
}

func videoAt(updatedAt time.Time) models.Video {
	return models.Video{ID: uuid.New(), UpdatedAt: updatedAt}
}

func TestPageTrimsProbeRow(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []models.Video{
		videoAt(base.Add(3 * time.Hour)),
		videoAt(base.Add(2 * time.Hour)),
		videoAt(base.Add(1 * time.Hour)),
	}

	items, next := Page(rows, 2)
	require.Len(t, items, 2)
	require.NotNil(t, next)
	assert.Equal(t, items[1].ID, next.ID)
	assert.Equal(t, items[1].UpdatedAt, next.UpdatedAt)
}

func TestPageFinalPageHasNilCursor(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []models.Video{videoAt(base), videoAt(base.Add(time.Hour))}

	items, next := Page(rows, 2)
	assert.Len(t, items, 2)
	assert.Nil(t, next)

	items, next = Page(nil, 2)
	assert.Empty(t, items)
	assert.Nil(t, next)
}

func TestPaginationWalksAllRowsOnce(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	all := []models.Video{
		videoAt(base.Add(4 * time.Hour)),
		videoAt(base.Add(3 * time.Hour)),
		videoAt(base.Add(2 * time.Hour)),
		videoAt(base.Add(1 * time.Hour)),
	}

	page1, cursor := pageOf(all, nil, 2)
	require.Len(t, page1, 2)
	require.NotNil(t, cursor)
	assert.Equal(t, all[0].ID, page1[0].ID)
	assert.Equal(t, all[1].ID, page1[1].ID)

	page2, cursor := pageOf(all, cursor, 2)
	require.Len(t, page2, 2)
	assert.Nil(t, cursor)
	assert.Equal(t, all[2].ID, page2[0].ID)
	assert.Equal(t, all[3].ID, page2[1].ID)
}

func TestPaginationTieBreaksOnID(t *testing.T) {
	// All rows share one updated_at; the id tie-break must still visit every
	// row exactly once.
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	all := make([]models.Video, 7)
	for i := range all {
		all[i] = videoAt(ts)
	}

	seen := make(map[uuid.UUID]int)
	var cursor *Cursor
	for pages := 0; ; pages++ {
		require.Less(t, pages, len(all)+1, "pagination did not terminate")
		items, next := pageOf(all, cursor, 3)
		for _, v := range items {
			seen[v.ID]++
		}
		if next == nil {
			break
		}
		cursor = next
	}

	require.Len(t, seen, len(all))
	for id, n := range seen {
		assert.Equal(t, 1, n, "row %s visited %d times", id, n)
	}
}

func TestPaginationStableWhenRowsUpdatedBetweenPages(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	all := []models.Video{
		videoAt(base.Add(4 * time.Hour)),
		videoAt(base.Add(3 * time.Hour)),
		videoAt(base.Add(2 * time.Hour)),
		videoAt(base.Add(1 * time.Hour)),
	}

	page1, cursor := pageOf(all, nil, 2)
	require.Len(t, page1, 2)
	require.NotNil(t, cursor)

	// A row already returned gets touched: it moves ahead of the cursor and
	// must not reappear; rows behind the cursor are unaffected.
	all[1].UpdatedAt = base.Add(10 * time.Hour)

	page2, next := pageOf(all, cursor, 2)
	assert.Nil(t, next)
	require.Len(t, page2, 2)
	assert.Equal(t, all[2].ID, page2[0].ID)
	assert.Equal(t, all[3].ID, page2[1].ID)
}
