package supabase

import (
	"context"
	"fmt"
	"time"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"

	"bodylog-backend/internal/bodylog"
)

const imagesTable = "body_log_images"

type imageInsert struct {
	OwnerID     string `json:"owner_id"`
	StoragePath string `json:"storage_path"`
}

type imageRow struct {
	ID                string    `json:"id"`
	OwnerID           string    `json:"owner_id"`
	StoragePath       string    `json:"storage_path"`
	Weight            *float64  `json:"weight"`
	BodyFatPercentage *float64  `json:"body_fat_percentage"`
	BMI               *float64  `json:"bmi"`
	MuscleMass        *float64  `json:"muscle_mass"`
	AnalysisStatus    string    `json:"analysis_status"`
	CreatedAt         time.Time `json:"created_at"`
}

func (r imageRow) persisted() bodylog.PersistedRecord {
	return bodylog.PersistedRecord{
		DurableID:   r.ID,
		StoragePath: r.StoragePath,
		CreatedAt:   r.CreatedAt,
		Metrics: bodylog.Metrics{
			Weight:            r.Weight,
			BodyFatPercentage: r.BodyFatPercentage,
			BMI:               r.BMI,
			MuscleMass:        r.MuscleMass,
		},
		AnalysisStatus: bodylog.AnalysisStatus(r.AnalysisStatus),
	}
}

// RestRecordClient persists body log records through PostgREST. It is used
// when no direct DATABASE_URL is configured.
type RestRecordClient struct {
	client *supabase.Client
}

func NewRestRecordClient(client *supabase.Client) *RestRecordClient {
	return &RestRecordClient{client: client}
}

func (r *RestRecordClient) CreateRecord(ctx context.Context, ownerID, storagePath string) (bodylog.CreatedRecord, error) {
	if err := ctx.Err(); err != nil {
		return bodylog.CreatedRecord{}, fmt.Errorf("failed to create body log image: %w", err)
	}

	var rows []imageRow
	_, err := r.client.From(imagesTable).
		Insert(imageInsert{OwnerID: ownerID, StoragePath: storagePath}, false, "", "representation", "").
		ExecuteTo(&rows)
	if err != nil {
		return bodylog.CreatedRecord{}, fmt.Errorf("failed to create body log image: %w", err)
	}
	if len(rows) == 0 || rows[0].ID == "" {
		return bodylog.CreatedRecord{}, fmt.Errorf("failed to create body log image: empty response")
	}

	return bodylog.CreatedRecord{DurableID: rows[0].ID, CreatedAt: rows[0].CreatedAt}, nil
}

func (r *RestRecordClient) ListRecords(ctx context.Context, ownerID string) ([]bodylog.PersistedRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to list body log images: %w", err)
	}

	var rows []imageRow
	_, err := r.client.From(imagesTable).
		Select("*", "", false).
		Eq("owner_id", ownerID).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list body log images: %w", err)
	}

	records := make([]bodylog.PersistedRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.persisted())
	}
	return records, nil
}
