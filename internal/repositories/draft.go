package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/compuse/internal/models"
	"github.com/desertthunder/compuse/internal/shared"
)

// DraftRepository implements models.Repository[*models.Draft].
//
// Deleting a draft soft-deletes its clips in the same transaction.
type DraftRepository struct {
	db *sql.DB
}

// NewDraftRepository creates a new DraftRepository with the given database connection
func NewDraftRepository(db *sql.DB) *DraftRepository {
	return &DraftRepository{db: db}
}

// Create inserts a new [models.Draft] with a generated ID and sequence
func (r *DraftRepository) Create(draft *models.Draft) error {
	if err := draft.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "drafts")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	draft.SetID(shared.GenerateID())
	draft.SetSequence(sequence)

	query := `
		INSERT INTO drafts (id, sequence, title, song_key, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		draft.ID(),
		sequence,
		draft.Title(),
		draft.Key(),
		draft.Content(),
		draft.CreatedAt(),
		draft.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert draft: %w", err)
	}

	return nil
}

// Get retrieves a draft by ID, excluding soft-deleted drafts
func (r *DraftRepository) Get(id string) (*models.Draft, error) {
	query := `
		SELECT id, sequence, title, song_key, content, created_at, updated_at, deleted_at
		FROM drafts
		WHERE id = ? AND deleted_at IS NULL
	`

	draft, err := scanDraft(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrDraftNotFound, id)
	}
	return draft, err
}

// GetBySequence retrieves a draft by its sequence number, as shown in CLI listings
func (r *DraftRepository) GetBySequence(sequence int) (*models.Draft, error) {
	query := `
		SELECT id, sequence, title, song_key, content, created_at, updated_at, deleted_at
		FROM drafts
		WHERE sequence = ? AND deleted_at IS NULL
	`

	draft, err := scanDraft(r.db.QueryRow(query, sequence))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: #%d", shared.ErrDraftNotFound, sequence)
	}
	return draft, err
}

// Update modifies the title, key and content of an existing draft
func (r *DraftRepository) Update(draft *models.Draft) error {
	if err := draft.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	draft.SetUpdatedAt(now)

	query := `
		UPDATE drafts
		SET title = ?, song_key = ?, content = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, draft.Title(), draft.Key(), draft.Content(), now, draft.ID())
	if err != nil {
		return fmt.Errorf("failed to update draft: %w", err)
	}

	return expectRow(result, shared.ErrDraftNotFound, draft.ID())
}

// Delete soft-deletes a draft and its clips
func (r *DraftRepository) Delete(id string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()

	result, err := tx.Exec(`UPDATE drafts SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	if err := expectRow(result, shared.ErrDraftNotFound, id); err != nil {
		return err
	}

	if _, err := tx.Exec(`UPDATE clips SET deleted_at = ? WHERE draft_id = ? AND deleted_at IS NULL`, now, id); err != nil {
		return fmt.Errorf("failed to delete draft clips: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit draft deletion: %w", err)
	}
	return nil
}

// List retrieves drafts matching the given criteria, excluding soft-deleted drafts.
//
// Supported criteria: "key" (exact) and "title" (substring).
func (r *DraftRepository) List(criteria map[string]any) ([]*models.Draft, error) {
	query := `
		SELECT id, sequence, title, song_key, content, created_at, updated_at, deleted_at
		FROM drafts
		WHERE deleted_at IS NULL
	`

	args := []any{}

	if key, ok := criteria["key"].(string); ok && key != "" {
		query += " AND song_key = ?"
		args = append(args, key)
	}

	if title, ok := criteria["title"].(string); ok && title != "" {
		query += " AND title LIKE ?"
		args = append(args, "%"+title+"%")
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query drafts: %w", err)
	}
	defer rows.Close()

	var drafts []*models.Draft
	for rows.Next() {
		draft, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan draft: %w", err)
		}
		drafts = append(drafts, draft)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return drafts, nil
}

func scanDraft(row scanner) (*models.Draft, error) {
	var (
		id        string
		sequence  int
		title     string
		key       string
		content   string
		createdAt time.Time
		updatedAt time.Time
		deletedAt sql.NullTime
	)

	if err := row.Scan(&id, &sequence, &title, &key, &content, &createdAt, &updatedAt, &deletedAt); err != nil {
		return nil, err
	}

	draft := models.NewDraft(sequence, title, key, content)
	draft.SetID(id)
	draft.SetCreatedAt(createdAt)
	draft.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		draft.SetDeletedAt(&deletedAt.Time)
	}

	return draft, nil
}

var _ models.Repository[*models.Draft] = (*DraftRepository)(nil)
