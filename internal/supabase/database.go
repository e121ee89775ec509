package supabase

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"bodylog-backend/internal/bodylog"
)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(connectionString string) (*DatabaseClient, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewDatabaseClientWith(db), nil
}

func NewDatabaseClientWith(db *sql.DB) *DatabaseClient {
	return &DatabaseClient{db: db}
}

func (d *DatabaseClient) CreateRecord(ctx context.Context, ownerID, storagePath string) (bodylog.CreatedRecord, error) {
	var created bodylog.CreatedRecord
	err := d.db.QueryRowContext(ctx, `
		INSERT INTO body_log_images (owner_id, storage_path)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, ownerID, storagePath).Scan(&created.DurableID, &created.CreatedAt)
	if err != nil {
		return bodylog.CreatedRecord{}, fmt.Errorf("failed to create body log image: %w", err)
	}

	return created, nil
}

func (d *DatabaseClient) ListRecords(ctx context.Context, ownerID string) ([]bodylog.PersistedRecord, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, storage_path, weight, body_fat_percentage, bmi, muscle_mass, analysis_status, created_at
		FROM body_log_images
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list body log images: %w", err)
	}
	defer rows.Close()

	var records []bodylog.PersistedRecord
	for rows.Next() {
		var (
			rec                      bodylog.PersistedRecord
			weight, fat, bmi, muscle sql.NullFloat64
			status                   string
		)
		err := rows.Scan(&rec.DurableID, &rec.StoragePath, &weight, &fat, &bmi, &muscle, &status, &rec.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan body log image: %w", err)
		}
		rec.Metrics = bodylog.Metrics{
			Weight:            nullFloat(weight),
			BodyFatPercentage: nullFloat(fat),
			BMI:               nullFloat(bmi),
			MuscleMass:        nullFloat(muscle),
		}
		rec.AnalysisStatus = bodylog.AnalysisStatus(status)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate body log images: %w", err)
	}

	return records, nil
}

func (d *DatabaseClient) Close() error {
	return d.db.Close()
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
