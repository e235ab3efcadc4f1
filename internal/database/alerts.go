package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/models"
)

// AlertRecord is one row of alert history
type AlertRecord struct {
	ID             string                          `json:"id"`
	Node           string                          `json:"node"`
	Label          string                          `json:"label,omitempty"`
	Confidence     float64                         `json:"confidence"`
	Area           int                             `json:"area"`
	DetectionCount int                             `json:"detection_count"`
	SnapshotPath   string                          `json:"snapshot_path"`
	SnapshotURL    string                          `json:"snapshot_url,omitempty"`
	ChannelResults map[string]models.ChannelResult `json:"channel_results"`
	Delivered      int                             `json:"delivered"`
	CreatedAt      time.Time                       `json:"created_at"`
}

// OutboxMessage is an alert waiting to be published
type OutboxMessage struct {
	ID        string
	AlertID   string
	Payload   []byte
	CreatedAt time.Time
}

// alertMessage is what consumers of the alert topic receive
type alertMessage struct {
	Node string `json:"node"`
	*models.AlertEvent
}

// RecordAlert stores the dispatched alert and queues it for publishing in one transaction
func (d *Database) RecordAlert(ctx context.Context, node string, event *models.AlertEvent) error {
	bbox, err := json.Marshal(event.Detection.Box)
	if err != nil {
		return fmt.Errorf("marshal bbox: %w", err)
	}
	results, err := json.Marshal(event.ChannelResults)
	if err != nil {
		return fmt.Errorf("marshal channel results: %w", err)
	}
	payload, err := json.Marshal(alertMessage{Node: node, AlertEvent: event})
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	return d.InTx(ctx, func(ctx context.Context) error {
		q := d.querier(ctx)

		_, err := q.ExecContext(ctx, `
			INSERT INTO alerts (id, node, label, confidence, area, bbox, detection_count,
				snapshot_path, snapshot_url, channel_results, delivered, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			event.ID,
			node,
			event.Detection.Label,
			event.Detection.Confidence,
			event.Detection.Area,
			bbox,
			event.DetectionCount,
			event.SnapshotPath,
			event.SnapshotURL,
			results,
			event.Delivered(),
			event.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert alert: %w", err)
		}

		_, err = q.ExecContext(ctx,
			"INSERT INTO alert_outbox (id, alert_id, payload, created_at) VALUES ($1, $2, $3, $4)",
			uuid.New().String(),
			event.ID,
			payload,
			time.Now(),
		)
		if err != nil {
			return fmt.Errorf("insert outbox: %w", err)
		}
		return nil
	})
}

// RecentAlerts returns the newest alerts first
func (d *Database) RecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	rows, err := d.querier(ctx).QueryContext(ctx, `
		SELECT id, node, label, confidence, area, detection_count,
			snapshot_path, snapshot_url, channel_results, delivered, created_at
		FROM alerts
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []AlertRecord
	for rows.Next() {
		var (
			a       AlertRecord
			results []byte
		)
		err := rows.Scan(
			&a.ID,
			&a.Node,
			&a.Label,
			&a.Confidence,
			&a.Area,
			&a.DetectionCount,
			&a.SnapshotPath,
			&a.SnapshotURL,
			&results,
			&a.Delivered,
			&a.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(results, &a.ChannelResults); err != nil {
			return nil, fmt.Errorf("alert %s channel results: %w", a.ID, err)
		}
		alerts = append(alerts, a)
	}

	return alerts, rows.Err()
}

// GetPendingOutbox retrieves unpublished alerts, oldest first
func (d *Database) GetPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error) {
	rows, err := d.querier(ctx).QueryContext(ctx, `
		SELECT id, alert_id, payload, created_at
		FROM alert_outbox
		WHERE processed_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []OutboxMessage
	for rows.Next() {
		var m OutboxMessage
		if err := rows.Scan(&m.ID, &m.AlertID, &m.Payload, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

// MarkOutboxProcessed marks an outbox message as published
func (d *Database) MarkOutboxProcessed(ctx context.Context, id string) error {
	_, err := d.querier(ctx).ExecContext(ctx,
		"UPDATE alert_outbox SET processed_at = $1 WHERE id = $2",
		time.Now(),
		id,
	)
	return err
}
