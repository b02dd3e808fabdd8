package postgres

import (
	"context"
	"time"

	"probchart/internal/updater"

	"gorm.io/gorm/clause"
)

const insertBatchSize = 500

// InsertPoints stores records, skipping ones already present for the same
// game, source and time. It returns the number of new rows.
func (p *PostgresClient) InsertPoints(ctx context.Context, records []PointRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx := p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "game_id"},
			{Name: "source"},
			{Name: "time"},
		},
		DoNothing: true,
	}).CreateInBatches(records, insertBatchSize)

	if tx.Error != nil {
		return 0, tx.Error
	}
	return tx.RowsAffected, nil
}

// ListPoints returns a game's stored points for source in time order.
func (p *PostgresClient) ListPoints(ctx context.Context, gameID, source string) ([]updater.TimePoint, error) {
	var records []PointRecord
	err := p.DB.WithContext(ctx).
		Where("game_id = ? AND source = ?", gameID, source).
		Order("time ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	out := make([]updater.TimePoint, len(records))
	for i, r := range records {
		out[i] = updater.TimePoint{Time: r.Time.Unix(), Value: r.Value}
	}
	return out, nil
}

func (p *PostgresClient) DeleteGamePoints(ctx context.Context, gameID string) error {
	return p.DB.WithContext(ctx).
		Where("game_id = ?", gameID).
		Delete(&PointRecord{}).Error
}

// ToPointRecords converts applied points of one series into rows.
func ToPointRecords(gameID, source string, pts []updater.TimePoint) []PointRecord {
	out := make([]PointRecord, len(pts))
	for i, pt := range pts {
		out[i] = PointRecord{
			GameID: gameID,
			Source: source,
			Time:   time.Unix(pt.Time, 0).UTC(),
			Value:  pt.Value,
		}
	}
	return out
}
