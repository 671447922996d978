package recorder

import (
	"context"
	"time"
)

// RecentTelemetry returns the newest limit samples, oldest first.
func (r *Recorder) RecentTelemetry(ctx context.Context, limit int) ([]TelemetryRecord, error) {
	var rows []TelemetryRecord
	err := r.db.WithContext(ctx).Order("timestamp desc").Limit(limit).Find(&rows).Error
	reverse(rows)
	return rows, err
}

// RecentEvents returns the newest limit events, newest first.
func (r *Recorder) RecentEvents(ctx context.Context, limit int) ([]EventRecord, error) {
	var rows []EventRecord
	err := r.db.WithContext(ctx).Order("id desc").Limit(limit).Find(&rows).Error
	return rows, err
}

// CommandsSince returns commands sent at or after t, in send order.
func (r *Recorder) CommandsSince(ctx context.Context, t time.Time) ([]CommandRecord, error) {
	var rows []CommandRecord
	err := r.db.WithContext(ctx).Where("sent_at >= ?", t.UTC()).Order("id").Find(&rows).Error
	return rows, err
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
