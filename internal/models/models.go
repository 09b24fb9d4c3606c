// package models defines the data model for the compuse song drafting studio
package models

import (
	"fmt"
	"strings"
	"time"
)

// Model defines the base interface for all persistent models in the studio.
// Implementations include Draft and PersistedClip.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// TransientScheme prefixes source URIs that are only valid inside the process that captured them.
const TransientScheme = "blob:"

// AudioClip is a recorded take attached to a draft.
//
// ID never changes; SourceURI starts as a transient handle and is later swapped for a durable one.
type AudioClip struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SourceURI string    `json:"source_uri"`
	MimeType  string    `json:"mime_type,omitempty"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// IsTransient reports whether the clip's audio only lives in the current process.
func (c AudioClip) IsTransient() bool {
	return IsTransientURI(c.SourceURI)
}

// IsTransientURI reports whether uri is a process-local handle.
func IsTransientURI(uri string) bool {
	return strings.HasPrefix(uri, TransientScheme)
}

// base holds the bookkeeping fields shared by persistent entities.
type base struct {
	id        string
	sequence  int
	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time
}

func newBase(sequence int) base {
	now := time.Now()
	return base{sequence: sequence, createdAt: now, updatedAt: now}
}

func (b *base) ID() string { return b.id }
func (b *base) Sequence() int { return b.sequence }
func (b *base) CreatedAt() time.Time { return b.createdAt }
func (b *base) UpdatedAt() time.Time { return b.updatedAt }
func (b *base) DeletedAt() *time.Time { return b.deletedAt }
func (b *base) SetID(id string) { b.id = id }
func (b *base) SetSequence(sequence int) { b.sequence = sequence }
func (b *base) SetCreatedAt(t time.Time) { b.createdAt = t }
func (b *base) SetUpdatedAt(t time.Time) { b.updatedAt = t }
func (b *base) SetDeletedAt(t *time.Time) { b.deletedAt = t }

// IsDeleted reports whether the entity has been soft-deleted.
func (b *base) IsDeleted() bool { return b.deletedAt != nil }

// Draft is a song in progress: a title, the key its chords are written in, and the chord sheet itself.
type Draft struct {
	base
	title   string
	key     string
	content string
}

// NewDraft creates a Draft with timestamps set to now.
func NewDraft(sequence int, title, key, content string) *Draft {
	return &Draft{base: newBase(sequence), title: title, key: key, content: content}
}

func (d *Draft) Title() string { return d.title }
func (d *Draft) Key() string { return d.key }
func (d *Draft) Content() string { return d.content }
func (d *Draft) SetTitle(title string) { d.title = title }
func (d *Draft) SetKey(key string) { d.key = key }
func (d *Draft) SetContent(content string) { d.content = content }

// Validate checks required draft fields.
func (d *Draft) Validate() error {
	if strings.TrimSpace(d.title) == "" {
		return fmt.Errorf("draft title is required")
	}
	if d.key == "" {
		return fmt.Errorf("draft key is required")
	}
	return nil
}

// PersistedClip is the stored form of an [AudioClip].
//
// The clip keeps the ID assigned at capture time so the engine and the store agree on identity.
type PersistedClip struct {
	base
	draftID   string
	name      string
	sourceURI string
	mimeType  string
	size      int
}

// NewPersistedClip builds a stored clip from a captured one.
func NewPersistedClip(sequence int, draftID string, clip AudioClip) *PersistedClip {
	pc := &PersistedClip{
		base:      newBase(sequence),
		draftID:   draftID,
		name:      clip.Name,
		sourceURI: clip.SourceURI,
		mimeType:  clip.MimeType,
		size:      clip.Size,
	}
	pc.id = clip.ID
	if !clip.CreatedAt.IsZero() {
		pc.createdAt = clip.CreatedAt
	}
	return pc
}

func (c *PersistedClip) DraftID() string { return c.draftID }
func (c *PersistedClip) Name() string { return c.name }
func (c *PersistedClip) SourceURI() string { return c.sourceURI }
func (c *PersistedClip) MimeType() string { return c.mimeType }
func (c *PersistedClip) Size() int { return c.size }
func (c *PersistedClip) SetName(name string) { c.name = name }
func (c *PersistedClip) SetSourceURI(uri string) { c.sourceURI = uri }
func (c *PersistedClip) SetMimeType(mime string) { c.mimeType = mime }
func (c *PersistedClip) SetSize(size int) { c.size = size }

// Clip converts the stored clip back into the [AudioClip] the engine works with.
func (c *PersistedClip) Clip() AudioClip {
	return AudioClip{
		ID:        c.id,
		Name:      c.name,
		SourceURI: c.sourceURI,
		MimeType:  c.mimeType,
		Size:      c.size,
		CreatedAt: c.createdAt,
	}
}

// Validate checks required clip fields. Transient URIs never reach the store.
func (c *PersistedClip) Validate() error {
	if c.id == "" {
		return fmt.Errorf("clip id is required")
	}
	if c.draftID == "" {
		return fmt.Errorf("clip draft id is required")
	}
	if strings.TrimSpace(c.name) == "" {
		return fmt.Errorf("clip name is required")
	}
	if c.sourceURI == "" {
		return fmt.Errorf("clip source uri is required")
	}
	if IsTransientURI(c.sourceURI) {
		return fmt.Errorf("clip source uri must be durable, got %s", c.sourceURI)
	}
	return nil
}

var (
	_ Model = (*Draft)(nil)
	_ Model = (*PersistedClip)(nil)
)

// SyncStatus is the lifecycle state of a [SyncRun].
type SyncStatus string

const (
	SyncPending   SyncStatus = "pending"
	SyncRunning   SyncStatus = "running"
	SyncCompleted SyncStatus = "completed"
	SyncFailed    SyncStatus = "failed"
)

// SyncRun records one reconciliation of a draft's captured clips with the store.
type SyncRun struct {
	base
	draftID      string
	status       SyncStatus
	clipsTotal   int
	uploaded     int
	renamed      int
	removed      int
	failed       int
	errorMessage string
	startedAt    *time.Time
	completedAt  *time.Time
}

// NewSyncRun creates a pending run for a draft.
func NewSyncRun(sequence int, draftID string) *SyncRun {
	return &SyncRun{base: newBase(sequence), draftID: draftID, status: SyncPending}
}

func (s *SyncRun) DraftID() string { return s.draftID }
func (s *SyncRun) Status() SyncStatus { return s.status }
func (s *SyncRun) ClipsTotal() int { return s.clipsTotal }
func (s *SyncRun) Uploaded() int { return s.uploaded }
func (s *SyncRun) Renamed() int { return s.renamed }
func (s *SyncRun) Removed() int { return s.removed }
func (s *SyncRun) Failed() int { return s.failed }
func (s *SyncRun) ErrorMessage() string { return s.errorMessage }
func (s *SyncRun) StartedAt() *time.Time { return s.startedAt }
func (s *SyncRun) CompletedAt() *time.Time { return s.completedAt }
func (s *SyncRun) SetStatus(status SyncStatus) { s.status = status }
func (s *SyncRun) SetErrorMessage(msg string) { s.errorMessage = msg }
func (s *SyncRun) SetStartedAt(t *time.Time) { s.startedAt = t }
func (s *SyncRun) SetCompletedAt(t *time.Time) { s.completedAt = t }

// SetCounts records the outcome counters.
func (s *SyncRun) SetCounts(total, uploaded, renamed, removed, failed int) {
	s.clipsTotal, s.uploaded, s.renamed, s.removed, s.failed = total, uploaded, renamed, removed, failed
}

// Start marks the run as running.
func (s *SyncRun) Start() {
	now := time.Now()
	s.status = SyncRunning
	s.startedAt = &now
}

// Finish marks the run completed, or failed when err is non-nil.
func (s *SyncRun) Finish(err error) {
	now := time.Now()
	s.completedAt = &now
	if err != nil {
		s.status = SyncFailed
		s.errorMessage = err.Error()
		return
	}
	s.status = SyncCompleted
}

// Duration reports how long a finished run took.
func (s *SyncRun) Duration() time.Duration {
	if s.startedAt == nil || s.completedAt == nil {
		return 0
	}
	return s.completedAt.Sub(*s.startedAt)
}

// Validate checks required run fields.
func (s *SyncRun) Validate() error {
	if s.draftID == "" {
		return fmt.Errorf("sync run draft id is required")
	}
	switch s.status {
	case SyncPending, SyncRunning, SyncCompleted, SyncFailed:
		return nil
	default:
		return fmt.Errorf("invalid sync status: %s", s.status)
	}
}

var _ Model = (*SyncRun)(nil)
