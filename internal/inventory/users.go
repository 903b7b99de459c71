package inventory

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/safar/gold-ledger/internal/apperr"
	"github.com/safar/gold-ledger/internal/audit"
	"github.com/safar/gold-ledger/internal/database"
	"github.com/safar/gold-ledger/internal/models"
	"github.com/safar/gold-ledger/internal/store"
	"github.com/safar/gold-ledger/internal/validation"
)

type UserInput struct {
	Email string `json:"email" validate:"required,email,max=255"`
	Name  string `json:"name" validate:"required,max=255"`
	Role  string `json:"role" validate:"required,oneof=admin operator viewer"`
}

func (s *Service) CreateUser(ctx context.Context, in UserInput) (*models.User, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	user, err := store.CreateUser(ctx, s.db, email, strings.TrimSpace(in.Name), in.Role)
	if err != nil {
		return nil, conflictOnDuplicate(err, "user", email)
	}
	return user, nil
}

type UserUpdateInput struct {
	UserInput
	Version int `json:"version" validate:"required,min=1"`
}

// UpdateUser rewrites a user's profile. Version must match the stored one.
// Demoting the last admin is refused.
func (s *Service) UpdateUser(ctx context.Context, actor *int64, id int64, in UserUpdateInput) (*models.User, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	var updated *models.User
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		before, err := store.GetUser(ctx, tx, id)
		if err != nil {
			return err
		}
		if before.Role == models.RoleAdmin && in.Role != models.RoleAdmin {
			if err := guardLastAdmin(ctx, tx, id, "demote"); err != nil {
				return err
			}
		}

		next := *before
		next.Email = strings.ToLower(strings.TrimSpace(in.Email))
		next.Name = strings.TrimSpace(in.Name)
		next.Role = in.Role
		next.Version = in.Version

		updated, err = store.UpdateUser(ctx, tx, &next)
		if err != nil {
			if errors.Is(err, database.ErrOptimisticLock) {
				return &apperr.StateConflictError{Entity: "user", ID: id, State: "stale", Op: "update"}
			}
			return conflictOnDuplicate(err, "user", next.Email)
		}

		return s.recorder.Record(ctx, tx, audit.Entry{
			Actor: actor, Action: audit.ActionUpdated, Model: "user", ModelID: id, Before: before, After: updated,
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteUser removes a staff account. Users cannot delete themselves and the
// last admin cannot be deleted.
func (s *Service) DeleteUser(ctx context.Context, actor *int64, id int64) error {
	if actor != nil && *actor == id {
		return &apperr.StateConflictError{Entity: "user", ID: id, State: "self", Op: "delete"}
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		before, err := store.GetUser(ctx, tx, id)
		if err != nil {
			return err
		}
		if before.Role == models.RoleAdmin {
			if err := guardLastAdmin(ctx, tx, id, "delete"); err != nil {
				return err
			}
		}

		if err := store.DeleteUser(ctx, tx, id); err != nil {
			return err
		}
		return s.recorder.Record(ctx, tx, audit.Entry{
			Actor: actor, Action: audit.ActionDeleted, Model: "user", ModelID: id, Before: before,
		})
	})
}

func guardLastAdmin(ctx context.Context, tx *sql.Tx, id int64, op string) error {
	admins, err := store.LockAdmins(ctx, tx)
	if err != nil {
		return err
	}
	if admins <= 1 {
		return &apperr.StateConflictError{Entity: "user", ID: id, State: "last_admin", Op: op}
	}
	return nil
}

func (s *Service) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return store.GetUser(ctx, s.db, id)
}

func (s *Service) ListUsers(ctx context.Context, page, pageSize int) (*store.OffsetPage, error) {
	page, pageSize = normalizePage(page, pageSize)
	return store.ListUsers(ctx, s.db, page, pageSize)
}

// RecordLogin appends a login attempt. Failures are kept for rate checks.
func (s *Service) RecordLogin(ctx context.Context, entry models.LoginLog) (*models.LoginLog, error) {
	logged, err := store.RecordLogin(ctx, s.db, entry)
	if err != nil {
		return nil, err
	}
	if !entry.Success {
		s.logger.WithField("module", "inventory").WithField("ip", entry.IP).Warn("failed login attempt")
	}
	return logged, nil
}

// FailedLogins counts failed attempts from ip in the last window minutes.
func (s *Service) FailedLogins(ctx context.Context, ip string, window int) (int64, error) {
	return store.CountFailedLogins(ctx, s.db, ip, window)
}
