package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/compuse/internal/models"
	"github.com/desertthunder/compuse/internal/shared"
)

// ClipRepository implements models.Repository[*models.PersistedClip].
//
// Clips keep the ID they were captured with, so Create only generates one when it is missing.
type ClipRepository struct {
	db *sql.DB
}

// NewClipRepository creates a new ClipRepository with the given database connection
func NewClipRepository(db *sql.DB) *ClipRepository {
	return &ClipRepository{db: db}
}

// Create inserts a new [models.PersistedClip]
func (r *ClipRepository) Create(clip *models.PersistedClip) error {
	if clip.ID() == "" {
		clip.SetID(shared.GenerateID())
	}
	if err := clip.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "clips")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	clip.SetSequence(sequence)

	query := `
		INSERT INTO clips (id, sequence, draft_id, name, source_uri, mime_type, size, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		clip.ID(),
		sequence,
		clip.DraftID(),
		clip.Name(),
		clip.SourceURI(),
		clip.MimeType(),
		clip.Size(),
		clip.CreatedAt(),
		clip.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert clip: %w", err)
	}

	return nil
}

// Get retrieves a clip by ID, excluding soft-deleted clips
func (r *ClipRepository) Get(id string) (*models.PersistedClip, error) {
	query := `
		SELECT id, sequence, draft_id, name, source_uri, mime_type, size, created_at, updated_at, deleted_at
		FROM clips
		WHERE id = ? AND deleted_at IS NULL
	`

	clip, err := scanClip(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrClipNotFound, id)
	}
	return clip, err
}

// Update modifies the name and audio location of an existing clip
func (r *ClipRepository) Update(clip *models.PersistedClip) error {
	if err := clip.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	clip.SetUpdatedAt(now)

	query := `
		UPDATE clips
		SET name = ?, source_uri = ?, mime_type = ?, size = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, clip.Name(), clip.SourceURI(), clip.MimeType(), clip.Size(), now, clip.ID())
	if err != nil {
		return fmt.Errorf("failed to update clip: %w", err)
	}

	return expectRow(result, shared.ErrClipNotFound, clip.ID())
}

// Delete soft-deletes a clip by ID
func (r *ClipRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE clips SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete clip: %w", err)
	}

	return expectRow(result, shared.ErrClipNotFound, id)
}

// List retrieves clips matching the given criteria in capture order.
//
// Supported criteria: "draft_id".
func (r *ClipRepository) List(criteria map[string]any) ([]*models.PersistedClip, error) {
	query := `
		SELECT id, sequence, draft_id, name, source_uri, mime_type, size, created_at, updated_at, deleted_at
		FROM clips
		WHERE deleted_at IS NULL
	`

	args := []any{}

	if draftID, ok := criteria["draft_id"].(string); ok && draftID != "" {
		query += " AND draft_id = ?"
		args = append(args, draftID)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query clips: %w", err)
	}
	defer rows.Close()

	var clips []*models.PersistedClip
	for rows.Next() {
		clip, err := scanClip(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan clip: %w", err)
		}
		clips = append(clips, clip)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return clips, nil
}

// ListByDraft retrieves the clips of one draft in capture order
func (r *ClipRepository) ListByDraft(draftID string) ([]*models.PersistedClip, error) {
	return r.List(map[string]any{"draft_id": draftID})
}

func scanClip(row scanner) (*models.PersistedClip, error) {
	var (
		id        string
		sequence  int
		draftID   string
		name      string
		sourceURI string
		mimeType  string
		size      int
		createdAt time.Time
		updatedAt time.Time
		deletedAt sql.NullTime
	)

	err := row.Scan(&id, &sequence, &draftID, &name, &sourceURI, &mimeType, &size, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	clip := models.NewPersistedClip(sequence, draftID, models.AudioClip{
		ID:        id,
		Name:      name,
		SourceURI: sourceURI,
		MimeType:  mimeType,
		Size:      size,
		CreatedAt: createdAt,
	})
	clip.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		clip.SetDeletedAt(&deletedAt.Time)
	}

	return clip, nil
}

var _ models.Repository[*models.PersistedClip] = (*ClipRepository)(nil)
