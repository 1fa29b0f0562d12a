package recipe

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("recipe not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Recipe{})
}

// Create inserts a pending recipe for imageRef.
func (r *Repository) Create(ctx context.Context, imageRef string) (*Recipe, error) {
	doc, err := json.Marshal(Pending())
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	rec := &Recipe{
		ID:         uuid.New().String(),
		ImageRef:   imageRef,
		Status:     StatusPending,
		Extraction: datatypes.JSON(doc),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*Recipe, error) {
	var rec Recipe
	result := r.db.WithContext(ctx).First(&rec, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &rec, nil
}

func (r *Repository) List(ctx context.Context, limit int) ([]Recipe, error) {
	if limit <= 0 {
		limit = 50
	}
	var recipes []Recipe
	result := r.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&recipes)
	return recipes, result.Error
}

// Transition writes ext in one conditional UPDATE guarded by the current
// status. applied is false when the recipe is already in ext.Status (a
// replay); moves that CanTransition forbids return ErrInvalidTransition.
func (r *Repository) Transition(ctx context.Context, id string, ext Extraction) (applied bool, err error) {
	doc, err := json.Marshal(ext)
	if err != nil {
		return false, err
	}

	result := r.db.WithContext(ctx).Model(&Recipe{}).
		Where("id = ? AND status IN ?", id, predecessors(ext.Status)).
		Updates(map[string]interface{}{
			"status":     string(ext.Status),
			"extraction": datatypes.JSON(doc),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 1 {
		return true, nil
	}

	current, err := r.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if current.Status == ext.Status {
		return false, nil
	}
	return false, transitionError(id, current.Status, ext.Status)
}

// Unfinished lists recipes not yet in a terminal status, oldest first. Used to
// resume instances after an in-process restart.
func (r *Repository) Unfinished(ctx context.Context, limit int) ([]Recipe, error) {
	if limit <= 0 {
		limit = 100
	}
	var recipes []Recipe
	result := r.db.WithContext(ctx).
		Where("status IN ?", []string{string(StatusPending), string(StatusInProgress)}).
		Order("created_at asc").
		Limit(limit).
		Find(&recipes)
	return recipes, result.Error
}
