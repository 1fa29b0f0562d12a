package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Journal persists step results keyed by instance and step name.
type Journal interface {
	Load(ctx context.Context, instanceID, step string) ([]byte, bool, error)
	Save(ctx context.Context, instanceID, step string, output []byte) error
}

type Checkpoint struct {
	InstanceID string         `gorm:"primaryKey;column:instance_id"`
	Step       string         `gorm:"primaryKey;column:step"`
	Output     datatypes.JSON `gorm:"column:output"`
	CreatedAt  time.Time      `gorm:"column:created_at"`
}

func (Checkpoint) TableName() string {
	return "workflow_checkpoints"
}

type GormJournal struct {
	db *gorm.DB
}

func NewGormJournal(db *gorm.DB) *GormJournal {
	return &GormJournal{db: db}
}

func (j *GormJournal) AutoMigrate() error {
	return j.db.AutoMigrate(&Checkpoint{})
}

func (j *GormJournal) Load(ctx context.Context, instanceID, step string) ([]byte, bool, error) {
	var cp Checkpoint
	result := j.db.WithContext(ctx).First(&cp, "instance_id = ? AND step = ?", instanceID, step)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if result.Error != nil {
		return nil, false, result.Error
	}
	return []byte(cp.Output), true, nil
}

// Save keeps the first checkpoint written for a step; a concurrent duplicate
// is ignored.
func (j *GormJournal) Save(ctx context.Context, instanceID, step string, output []byte) error {
	cp := Checkpoint{
		InstanceID: instanceID,
		Step:       step,
		Output:     datatypes.JSON(output),
		CreatedAt:  time.Now().UTC(),
	}
	return j.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&cp).Error
}

// Steps lists the completed steps of an instance in completion order.
func (j *GormJournal) Steps(ctx context.Context, instanceID string) ([]string, error) {
	var steps []string
	err := j.db.WithContext(ctx).Model(&Checkpoint{}).
		Where("instance_id = ?", instanceID).
		Order("created_at asc").
		Pluck("step", &steps).Error
	return steps, err
}

type MemoryJournal struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{data: make(map[string][]byte)}
}

func (j *MemoryJournal) Load(_ context.Context, instanceID, step string) ([]byte, bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	data, ok := j.data[instanceID+"/"+step]
	return data, ok, nil
}

func (j *MemoryJournal) Save(_ context.Context, instanceID, step string, output []byte) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	key := instanceID + "/" + step
	if _, exists := j.data[key]; !exists {
		j.data[key] = append([]byte(nil), output...)
	}
	return nil
}

// Forget drops one checkpoint, simulating a crash before it was written.
func (j *MemoryJournal) Forget(instanceID, step string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.data, instanceID+"/"+step)
}
