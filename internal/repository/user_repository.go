package repository

import (
	"database/sql"
	"fmt"

	"paydeck/timeclock/internal/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(email, name, role string, autoStopLimitMinutes int) (*models.User, error) {
	query := `
		INSERT INTO users (email, name, role, status, auto_stop_limit_minutes)
		VALUES (?, ?, ?, 'ACTIVE', ?)
		RETURNING id, created_at
	`

	user := &models.User{
		Email:                email,
		Name:                 name,
		Role:                 role,
		Status:               models.StatusActive,
		AutoStopLimitMinutes: autoStopLimitMinutes,
	}
	err := r.db.QueryRow(query, email, name, role, autoStopLimitMinutes).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetByID returns the user or nil when absent.
func (r *UserRepository) GetByID(id int64) (*models.User, error) {
	var user models.User
	err := r.db.QueryRow(`
		SELECT id, email, name, role, status, auto_stop_limit_minutes, created_at
		FROM users WHERE id = ?
	`, id).Scan(&user.ID, &user.Email, &user.Name, &user.Role, &user.Status,
		&user.AutoStopLimitMinutes, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// ListNotDisabled returns every user the daily report covers.
func (r *UserRepository) ListNotDisabled() ([]*models.User, error) {
	return r.list(`
		SELECT id, email, name, role, status, auto_stop_limit_minutes, created_at
		FROM users WHERE status != 'DISABLED'
		ORDER BY id ASC
	`)
}

// ListManagers returns every EMPLOYER/ADMIN user (admin digest recipients).
func (r *UserRepository) ListManagers() ([]*models.User, error) {
	return r.list(`
		SELECT id, email, name, role, status, auto_stop_limit_minutes, created_at
		FROM users WHERE role IN ('EMPLOYER', 'ADMIN')
		ORDER BY id ASC
	`)
}

func (r *UserRepository) UpdateStatus(id int64, status string) error {
	result, err := r.db.Exec("UPDATE users SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return fmt.Errorf("failed to update user status: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *UserRepository) list(query string) ([]*models.User, error) {
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Email, &user.Name, &user.Role, &user.Status,
			&user.AutoStopLimitMinutes, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &user)
	}
	return users, rows.Err()
}
