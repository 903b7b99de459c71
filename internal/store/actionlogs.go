package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/safar/gold-ledger/internal/database"
	"github.com/safar/gold-ledger/internal/models"
)

func InsertActionLog(ctx context.Context, q database.DBTX, entry *models.ActionLog) (*models.ActionLog, error) {
	var diff any
	if len(entry.Diff) > 0 {
		diff = []byte(entry.Diff)
	}

	query := `
		INSERT INTO action_logs (user_id, action, model, model_id, diff, ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id, created_at`

	logged := *entry
	err := q.QueryRowContext(ctx, query,
		entry.UserID, entry.Action, entry.Model, entry.ModelID, diff, entry.IP, entry.UserAgent,
	).Scan(&logged.ID, &logged.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert action log: %w", err)
	}
	return &logged, nil
}

// ListActionLogs returns the history of one record, oldest first.
func ListActionLogs(ctx context.Context, q database.DBTX, model string, modelID int64) ([]models.ActionLog, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, user_id, action, model, model_id, diff, ip, user_agent, created_at
		 FROM action_logs
		 WHERE model = $1 AND model_id = $2
		 ORDER BY created_at, id`,
		model, modelID)
	if err != nil {
		return nil, fmt.Errorf("list action logs: %w", err)
	}
	defer rows.Close()

	logs := []models.ActionLog{}
	for rows.Next() {
		var (
			l    models.ActionLog
			diff []byte
		)
		err := rows.Scan(
			&l.ID,
			&l.UserID,
			&l.Action,
			&l.Model,
			&l.ModelID,
			&diff,
			&l.IP,
			&l.UserAgent,
			&l.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan action log: %w", err)
		}
		if diff != nil {
			l.Diff = json.RawMessage(diff)
		}
		logs = append(logs, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return logs, nil
}
