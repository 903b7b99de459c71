package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/gold-ledger/internal/database"
	"github.com/safar/gold-ledger/internal/models"
)

func CreateUser(ctx context.Context, q database.DBTX, email, name, role string) (*models.User, error) {
	user := &models.User{}

	query := `
		INSERT INTO users (email, name, role, created_at, updated_at, version)
		VALUES ($1, $2, $3, NOW(), NOW(), 1)
		RETURNING id, email, name, role, created_at, updated_at, version`

	err := q.QueryRowContext(ctx, query, email, name, role).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

func GetUser(ctx context.Context, q database.DBTX, id int64) (*models.User, error) {
	user := &models.User{}

	query := `
		SELECT id, email, name, role, created_at, updated_at, version
		FROM users
		WHERE id = $1`

	err := q.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.Version,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

func ListUsers(ctx context.Context, q database.DBTX, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `
		SELECT id, email, name, role, created_at, updated_at, version
		FROM users
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := q.QueryContext(ctx, query, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		err := rows.Scan(
			&user.ID,
			&user.Email,
			&user.Name,
			&user.Role,
			&user.CreatedAt,
			&user.UpdatedAt,
			&user.Version,
		)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(users, total, page, pageSize), nil
}

// UpdateUser writes the profile of u if its version is still current and
// bumps the version.
func UpdateUser(ctx context.Context, q database.DBTX, u *models.User) (*models.User, error) {
	updated := &models.User{}
	err := q.QueryRowContext(ctx,
		`UPDATE users
		 SET email = $2, name = $3, role = $4, version = version + 1, updated_at = NOW()
		 WHERE id = $1 AND version = $5
		 RETURNING id, email, name, role, created_at, updated_at, version`,
		u.ID, u.Email, u.Name, u.Role, u.Version,
	).Scan(
		&updated.ID,
		&updated.Email,
		&updated.Name,
		&updated.Role,
		&updated.CreatedAt,
		&updated.UpdatedAt,
		&updated.Version,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOptimisticLock
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return updated, nil
}

func DeleteUser(ctx context.Context, q database.DBTX, id int64) error {
	result, err := q.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return database.ErrUserNotFound
	}
	return nil
}

// LockAdmins holds the row locks of every admin until the transaction ends
// and returns how many there are.
func LockAdmins(ctx context.Context, tx *sql.Tx) (int, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM users WHERE role = 'admin' FOR UPDATE`)
	if err != nil {
		return 0, fmt.Errorf("lock admins: %w", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		n++
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("rows error: %w", err)
	}
	return n, nil
}

func RecordLogin(ctx context.Context, q database.DBTX, entry models.LoginLog) (*models.LoginLog, error) {
	query := `
		INSERT INTO login_logs (user_id, ip, user_agent, success, attempted_email, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at`

	err := q.QueryRowContext(ctx, query,
		entry.UserID, entry.IP, entry.UserAgent, entry.Success, entry.AttemptedEmail,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}

	return &entry, nil
}

// CountFailedLogins counts failed attempts from ip since the given number of minutes ago.
func CountFailedLogins(ctx context.Context, q database.DBTX, ip string, minutes int) (int64, error) {
	var count int64
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM login_logs
		 WHERE ip = $1 AND success = FALSE
		   AND created_at > NOW() - make_interval(mins => $2)`,
		ip, minutes).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count failed logins: %w", err)
	}
	return count, nil
}
