package profiles

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// profileRow maps the profiles table.
type profileRow struct {
	ID         string         `gorm:"column:id;type:text;primaryKey"`
	UserID     string         `gorm:"column:user_id;type:text;index"`
	Name       string         `gorm:"column:name;type:text"`
	FirstName  string         `gorm:"column:first_name;type:text"`
	LastName   string         `gorm:"column:last_name;type:text"`
	Email      string         `gorm:"column:email;type:text"`
	Phone      string         `gorm:"column:phone;type:text"`
	Country    string         `gorm:"column:country;type:text"`
	City       string         `gorm:"column:city;type:text"`
	Summary    string         `gorm:"column:summary;type:text"`
	Details    datatypes.JSON `gorm:"column:details;type:jsonb"`
	SourceText string         `gorm:"column:source_text;type:text"`
	CreatedAt  time.Time      `gorm:"column:created_at;type:timestamptz"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;type:timestamptz"`
}

func (profileRow) TableName() string { return "profiles" }

func toRow(p Profile) profileRow {
	details := datatypes.JSON(p.Details)
	if len(details) == 0 {
		details = datatypes.JSON("{}")
	}
	return profileRow{
		ID:         p.ID,
		UserID:     p.UserID,
		Name:       p.Name,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		Email:      p.Email,
		Phone:      p.Phone,
		Country:    p.Country,
		City:       p.City,
		Summary:    p.Summary,
		Details:    details,
		SourceText: p.SourceText,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

func (r profileRow) toProfile() Profile {
	var details json.RawMessage
	if len(r.Details) > 0 && string(r.Details) != "{}" {
		details = json.RawMessage(r.Details)
	}
	return Profile{
		ID:         r.ID,
		UserID:     r.UserID,
		Name:       r.Name,
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		Email:      r.Email,
		Phone:      r.Phone,
		Country:    r.Country,
		City:       r.City,
		Summary:    r.Summary,
		Details:    details,
		SourceText: r.SourceText,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

// GormRepo implements Repo with gorm on the shared Postgres pool.
type GormRepo struct {
	DB *gorm.DB
}

// NewGormRepo wraps an existing *sql.DB. The schema is owned by goose
// migrations, so no AutoMigrate runs here.
func NewGormRepo(sqlDB *sql.DB) (*GormRepo, error) {
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	return &GormRepo{DB: gdb}, nil
}

// Create inserts a profile.
func (r *GormRepo) Create(ctx context.Context, p Profile) error {
	row := toRow(p)
	if err := r.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

// GetByID returns a profile by id.
func (r *GormRepo) GetByID(ctx context.Context, id string) (Profile, error) {
	var row profileRow
	err := r.DB.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return row.toProfile(), nil
}

// ListByUser returns a user's profiles, newest first.
func (r *GormRepo) ListByUser(ctx context.Context, userID string) ([]Profile, error) {
	var rows []profileRow
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	out := make([]Profile, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toProfile())
	}
	return out, nil
}

var _ Repo = (*GormRepo)(nil)
