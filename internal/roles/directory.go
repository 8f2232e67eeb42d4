package roles

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"greentrace/lifecycle-engine/internal/lifecycle"
)

// Manager is a role directory that can also be administered: auditors are
// granted and revoked by the issuing authority.
type Manager interface {
	lifecycle.RoleDirectory
	AddAuditor(ctx context.Context, actor, grantedBy lifecycle.Actor) error
	RemoveAuditor(ctx context.Context, actor lifecycle.Actor) error
	ListAuditors(ctx context.Context) ([]lifecycle.Actor, error)
}

// StaticDirectory keeps the auditor set in memory, seeded from config.
type StaticDirectory struct {
	mu       sync.RWMutex
	auditors map[lifecycle.Actor]struct{}
}

func NewStaticDirectory(auditors []string) *StaticDirectory {
	d := &StaticDirectory{auditors: map[lifecycle.Actor]struct{}{}}
	for _, a := range auditors {
		d.auditors[lifecycle.Actor(a)] = struct{}{}
	}
	return d
}

func (d *StaticDirectory) HasAuditorRole(ctx context.Context, actor lifecycle.Actor) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.auditors[actor]
	return ok, nil
}

func (d *StaticDirectory) AddAuditor(ctx context.Context, actor, grantedBy lifecycle.Actor) error {
	if actor == "" {
		return errors.New("roles: actor is required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.auditors[actor] = struct{}{}
	return nil
}

func (d *StaticDirectory) RemoveAuditor(ctx context.Context, actor lifecycle.Actor) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.auditors, actor)
	return nil
}

func (d *StaticDirectory) ListAuditors(ctx context.Context) ([]lifecycle.Actor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]lifecycle.Actor, 0, len(d.auditors))
	for a := range d.auditors {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// AuditorRole persists an auditor grant.
type AuditorRole struct {
	Actor     lifecycle.Actor `gorm:"primaryKey" json:"actor"`
	GrantedBy lifecycle.Actor `json:"granted_by"`
	CreatedAt time.Time       `json:"created_at"`
}

func (AuditorRole) TableName() string { return "auditor_roles" }

// GormDirectory backs the auditor set with a database table.
type GormDirectory struct {
	db *gorm.DB
}

func NewGormDirectory(db *gorm.DB) *GormDirectory { return &GormDirectory{db: db} }

func (d *GormDirectory) AutoMigrate() error {
	return d.db.AutoMigrate(&AuditorRole{})
}

func (d *GormDirectory) HasAuditorRole(ctx context.Context, actor lifecycle.Actor) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&AuditorRole{}).Where("actor = ?", actor).Count(&count).Error
	return count > 0, err
}

func (d *GormDirectory) AddAuditor(ctx context.Context, actor, grantedBy lifecycle.Actor) error {
	if actor == "" {
		return errors.New("roles: actor is required")
	}
	row := AuditorRole{Actor: actor, GrantedBy: grantedBy, CreatedAt: time.Now()}
	return d.db.WithContext(ctx).Where(AuditorRole{Actor: actor}).FirstOrCreate(&row).Error
}

func (d *GormDirectory) RemoveAuditor(ctx context.Context, actor lifecycle.Actor) error {
	return d.db.WithContext(ctx).Delete(&AuditorRole{}, "actor = ?", actor).Error
}

func (d *GormDirectory) ListAuditors(ctx context.Context) ([]lifecycle.Actor, error) {
	var rows []AuditorRole
	if err := d.db.WithContext(ctx).Order("actor asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]lifecycle.Actor, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Actor)
	}
	return out, nil
}
