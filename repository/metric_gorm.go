package repository

import (
	"context"
	"time"

	"github.com/AzielCF/az-flow/pkg/botmonitor"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type metricEventModel struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	TenantID   string `gorm:"index"`
	ChatJID    string
	Provider   string
	Stage      string `gorm:"index;not null"`
	Kind       string
	Status     string            `gorm:"not null"`
	Error      string            `gorm:"type:text"`
	Metadata   datatypes.JSONMap `gorm:"type:json"`
	DurationMs int64
	RecordedAt time.Time `gorm:"index;not null"`
}

func (metricEventModel) TableName() string {
	return "metric_events"
}

// MetricGormSink persists monitor events (METRICS_PERSIST=true).
type MetricGormSink struct {
	db *gorm.DB
}

func NewMetricGormSink(db *gorm.DB) *MetricGormSink {
	return &MetricGormSink{db: db}
}

func (s *MetricGormSink) InitSchema(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&metricEventModel{})
}

func (s *MetricGormSink) Write(ctx context.Context, e botmonitor.Event) error {
	var meta datatypes.JSONMap
	if len(e.Metadata) > 0 {
		meta = make(datatypes.JSONMap, len(e.Metadata))
		for k, v := range e.Metadata {
			meta[k] = v
		}
	}
	m := metricEventModel{
		TenantID:   e.TenantID,
		ChatJID:    e.ChatJID,
		Provider:   e.Provider,
		Stage:      e.Stage,
		Kind:       e.Kind,
		Status:     e.Status,
		Error:      e.Error,
		Metadata:   meta,
		DurationMs: e.DurationMs,
		RecordedAt: e.Timestamp.UTC(),
	}
	return s.db.WithContext(ctx).Create(&m).Error
}

// CountByStage aggregates persisted events for one tenant since the given instant.
func (s *MetricGormSink) CountByStage(ctx context.Context, tenantID string, since time.Time) (map[string]int64, error) {
	type row struct {
		Stage string
		Total int64
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Model(&metricEventModel{}).
		Select("stage, COUNT(*) AS total").
		Where("tenant_id = ? AND recorded_at >= ?", tenantID, since.UTC()).
		Group("stage").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Stage] = r.Total
	}
	return out, nil
}
