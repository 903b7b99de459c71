// Package audit records who changed what in action_logs. Entries are written
// through the caller's transaction so they commit or roll back with the change.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/sirupsen/logrus"

	"github.com/safar/gold-ledger/internal/database"
	"github.com/safar/gold-ledger/internal/logging"
	"github.com/safar/gold-ledger/internal/models"
	"github.com/safar/gold-ledger/internal/store"
)

const (
	ActionCreated   = "created"
	ActionUpdated   = "updated"
	ActionDeleted   = "deleted"
	ActionRestored  = "restored"
	ActionConfirmed = "confirmed"
	ActionCancelled = "cancelled"
	ActionArchived  = "archived"
	ActionImported  = "imported"
)

// Fields that change on every write and carry no audit value.
var ignoredFields = map[string]bool{
	"updated_at": true,
	"created_at": true,
	"updated_by": true,
	"items":      true,
}

type Entry struct {
	Actor   *int64
	Action  string
	Model   string
	ModelID int64
	Before  any
	After   any
}

// Change is the old and new value of one field.
type Change struct {
	Old any `json:"old"`
	New any `json:"new"`
}

type Recorder struct {
	logger *logrus.Logger
}

func NewRecorder(logger *logrus.Logger) *Recorder {
	return &Recorder{logger: logging.OrDiscard(logger)}
}

type requestMetaKey struct{}

type requestMeta struct {
	ip        string
	userAgent string
}

// WithRequestMeta attaches the client address and user agent to ctx for
// later entries.
func WithRequestMeta(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, requestMeta{ip: ip, userAgent: userAgent})
}

func metaFrom(ctx context.Context) requestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(requestMeta)
	return meta
}

// Record writes one entry. An update with no effective change is skipped.
func (r *Recorder) Record(ctx context.Context, q database.DBTX, e Entry) error {
	diff, err := Diff(e.Before, e.After)
	if err != nil {
		logging.LogError(r.logger, "audit", "Record", "diff", map[string]any{"model": e.Model, "id": e.ModelID}, err)
		return fmt.Errorf("audit diff: %w", err)
	}
	if len(diff) == 0 && e.Action == ActionUpdated {
		return nil
	}

	var raw json.RawMessage
	if len(diff) > 0 {
		raw, err = json.Marshal(diff)
		if err != nil {
			return fmt.Errorf("encode audit diff: %w", err)
		}
	}

	meta := metaFrom(ctx)
	_, err = store.InsertActionLog(ctx, q, &models.ActionLog{
		UserID:    e.Actor,
		Action:    e.Action,
		Model:     e.Model,
		ModelID:   e.ModelID,
		Diff:      raw,
		IP:        meta.ip,
		UserAgent: meta.userAgent,
	})
	if err != nil {
		return err
	}

	r.logger.WithFields(logrus.Fields{
		"module":  "audit",
		"action":  e.Action,
		"model":   e.Model,
		"modelId": e.ModelID,
	}).Debug("action recorded")
	return nil
}

// Diff compares the JSON forms of before and after field by field. A nil side
// yields the full snapshot of the other under new or old.
func Diff(before, after any) (map[string]Change, error) {
	oldFields, err := toFields(before)
	if err != nil {
		return nil, err
	}
	newFields, err := toFields(after)
	if err != nil {
		return nil, err
	}

	diff := make(map[string]Change)
	for k, nv := range newFields {
		if ignoredFields[k] {
			continue
		}
		ov, ok := oldFields[k]
		if !ok || !reflect.DeepEqual(ov, nv) {
			diff[k] = Change{Old: ov, New: nv}
		}
	}
	for k, ov := range oldFields {
		if ignoredFields[k] {
			continue
		}
		if _, ok := newFields[k]; !ok {
			diff[k] = Change{Old: ov}
		}
	}
	return diff, nil
}

func toFields(v any) (map[string]any, error) {
	if v == nil || (reflect.ValueOf(v).Kind() == reflect.Pointer && reflect.ValueOf(v).IsNil()) {
		return map[string]any{}, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
