package videos

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/newtube/backend/internal/models"
	"github.com/newtube/backend/pkg/apperr"
)

const videoColumns = `id, user_id, category_id, title, COALESCE(description,''), COALESCE(upload_token,''),
	COALESCE(external_asset_ref,''), encoding_status, COALESCE(playback_ref,''), COALESCE(track_ref,''),
	COALESCE(track_status,''), COALESCE(thumbnail_ref,''), COALESCE(thumbnail_locator,''),
	COALESCE(preview_locator,''), duration_ms, created_at, updated_at`

// Repository is the durable video asset store. Every mutation is a targeted
// column update scoped by row key (id+owner, upload token, or provider asset
// ref) so concurrent writers touching disjoint fields never interleave into
// an inconsistent row.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a videos repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new video at upload initiation. The upload token must be
// stored before any webhook referencing it can arrive.
func (r *Repository) Create(ctx context.Context, v *models.Video) error {
	const q = `INSERT INTO videos (id, user_id, title, upload_token, encoding_status)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, v.UserID, v.Title, v.UploadToken, v.EncodingStatus).
		Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
}

// GetByID returns a video by id scoped to its owner. A video owned by
// someone else is indistinguishable from a missing one.
func (r *Repository) GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Video, error) {
	q := `SELECT ` + videoColumns + ` FROM videos WHERE id = $1 AND user_id = $2`
	return scanVideo(r.pool.QueryRow(ctx, q, id, userID))
}

// List returns one page of the owner's videos ordered by
// (updated_at DESC, id DESC), plus the cursor for the next page when more
// rows exist. It fetches limit+1 rows and trims the probe row.
func (r *Repository) List(ctx context.Context, userID uuid.UUID, cursor *Cursor, limit int) ([]models.Video, *Cursor, error) {
	q := `SELECT ` + videoColumns + ` FROM videos WHERE user_id = $1`
	args := []any{userID}
	if cursor != nil {
		q += ` AND (updated_at < $2 OR (updated_at = $2 AND id < $3))`
		args = append(args, cursor.UpdatedAt, cursor.ID)
	}
	q += fmt.Sprintf(` ORDER BY updated_at DESC, id DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit+1)

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	var list []models.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, nil, err
		}
		list = append(list, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	items, next := Page(list, limit)
	return items, next, nil
}

// Update applies a partial update to a video scoped by id+owner.
func (r *Repository) Update(ctx context.Context, id, userID uuid.UUID, patch models.VideoPatch) error {
	return r.applyPatch(ctx, `id = $%d AND user_id = $%d`, []any{id, userID}, patch)
}

// UpdateByUploadToken applies a partial update to the video matching the
// provider upload token. Returns apperr.ErrNotFound when no row matches;
// it never creates a placeholder.
func (r *Repository) UpdateByUploadToken(ctx context.Context, token string, patch models.VideoPatch) error {
	return r.applyPatch(ctx, `upload_token = $%d`, []any{token}, patch)
}

// UpdateByExternalAssetRef applies a partial update to the video matching
// the provider asset id.
func (r *Repository) UpdateByExternalAssetRef(ctx context.Context, ref string, patch models.VideoPatch) error {
	return r.applyPatch(ctx, `external_asset_ref = $%d`, []any{ref}, patch)
}

// DeleteByUploadToken removes the video matching the upload token, returning
// the deleted row so callers can clean up derived storage objects.
func (r *Repository) DeleteByUploadToken(ctx context.Context, token string) (*models.Video, error) {
	q := `DELETE FROM videos WHERE upload_token = $1 RETURNING ` + videoColumns
	return scanVideo(r.pool.QueryRow(ctx, q, token))
}

// Delete removes a video scoped by id+owner, returning the deleted row.
func (r *Repository) Delete(ctx context.Context, id, userID uuid.UUID) (*models.Video, error) {
	q := `DELETE FROM videos WHERE id = $1 AND user_id = $2 RETURNING ` + videoColumns
	return scanVideo(r.pool.QueryRow(ctx, q, id, userID))
}

// UpdateTitle persists a generated or edited title.
func (r *Repository) UpdateTitle(ctx context.Context, id, userID uuid.UUID, title string) error {
	return r.Update(ctx, id, userID, models.VideoPatch{Title: &title})
}

// UpdateDescription persists a generated or edited description.
func (r *Repository) UpdateDescription(ctx context.Context, id, userID uuid.UUID, description string) error {
	return r.Update(ctx, id, userID, models.VideoPatch{Description: &description})
}

// SetThumbnail points the video at a newly stored thumbnail object.
func (r *Repository) SetThumbnail(ctx context.Context, id, userID uuid.UUID, key, url string) error {
	return r.Update(ctx, id, userID, models.VideoPatch{ThumbnailRef: &key, ThumbnailLocator: &url})
}

// ClearThumbnail nulls out the thumbnail reference pair. Callers delete the
// stored object first so no live file is left unreferenced.
func (r *Repository) ClearThumbnail(ctx context.Context, id, userID uuid.UUID) error {
	const q = `UPDATE videos SET thumbnail_ref = NULL, thumbnail_locator = NULL, updated_at = NOW()
		WHERE id = $1 AND user_id = $2`
	ct, err := r.pool.Exec(ctx, q, id, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// applyPatch builds the targeted UPDATE for the patch's non-nil fields. The
// where clause is a fmt template whose placeholders continue the SET clause
// numbering.
func (r *Repository) applyPatch(ctx context.Context, where string, whereArgs []any, patch models.VideoPatch) error {
	sets, args := patchClauses(patch)
	if len(sets) == 0 {
		return nil
	}
	nums := make([]any, len(whereArgs))
	for i := range whereArgs {
		nums[i] = len(args) + i + 1
	}
	q := `UPDATE videos SET ` + strings.Join(sets, ", ") + `, updated_at = NOW() WHERE ` + fmt.Sprintf(where, nums...)
	args = append(args, whereArgs...)

	ct, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func patchClauses(p models.VideoPatch) (sets []string, args []any) {
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if p.CategoryID != nil {
		add("category_id", *p.CategoryID)
	}
	if p.Title != nil {
		add("title", *p.Title)
	}
	if p.Description != nil {
		add("description", *p.Description)
	}
	if p.ExternalAssetRef != nil {
		add("external_asset_ref", *p.ExternalAssetRef)
	}
	if p.EncodingStatus != nil {
		add("encoding_status", *p.EncodingStatus)
	}
	if p.PlaybackRef != nil {
		add("playback_ref", *p.PlaybackRef)
	}
	if p.TrackRef != nil {
		add("track_ref", *p.TrackRef)
	}
	if p.TrackStatus != nil {
		add("track_status", *p.TrackStatus)
	}
	if p.ThumbnailRef != nil {
		add("thumbnail_ref", *p.ThumbnailRef)
	}
	if p.ThumbnailLocator != nil {
		add("thumbnail_locator", *p.ThumbnailLocator)
	}
	if p.PreviewLocator != nil {
		add("preview_locator", *p.PreviewLocator)
	}
	if p.DurationMS != nil {
		add("duration_ms", *p.DurationMS)
	}
	return sets, args
}

func scanVideo(row pgx.Row) (*models.Video, error) {
	var v models.Video
	err := row.Scan(&v.ID, &v.UserID, &v.CategoryID, &v.Title, &v.Description, &v.UploadToken,
		&v.ExternalAssetRef, &v.EncodingStatus, &v.PlaybackRef, &v.TrackRef,
		&v.TrackStatus, &v.ThumbnailRef, &v.ThumbnailLocator,
		&v.PreviewLocator, &v.DurationMS, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}
