package postgres

import "time"

// PointRecord is one chart point that was applied to a live view.
type PointRecord struct {
	ID uint `gorm:"primaryKey"`

	// unique index
	GameID string    `gorm:"type:text;not null;index:idx_point_game;index:idx_game_source_time,unique"`
	Source string    `gorm:"type:varchar(64);not null;index:idx_game_source_time,unique"`
	Time   time.Time `gorm:"not null;index:idx_game_source_time,unique"`

	Value float64 `gorm:"type:numeric;not null"`

	RecordedAt time.Time `gorm:"autoCreateTime"`
}

// TableName overrides the default table name for GORM.
func (PointRecord) TableName() string {
	return "chart_point"
}
