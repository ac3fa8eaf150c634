package repository

import (
	"database/sql"
	"fmt"

	"paydeck/timeclock/internal/models"
)

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) CreateProject(name string) (*models.Project, error) {
	project := &models.Project{Name: name}
	err := r.db.QueryRow(`
		INSERT INTO projects (name) VALUES (?)
		RETURNING id, created_at
	`, name).Scan(&project.ID, &project.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return project, nil
}

func (r *TaskRepository) Create(projectID int64, name string, isOpenToAll bool) (*models.Task, error) {
	task := &models.Task{ProjectID: projectID, Name: name, IsOpenToAll: isOpenToAll}
	err := r.db.QueryRow(`
		INSERT INTO tasks (project_id, name, is_open_to_all) VALUES (?, ?, ?)
		RETURNING id, created_at
	`, projectID, name, isOpenToAll).Scan(&task.ID, &task.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return task, nil
}

func (r *TaskRepository) AddAssignee(taskID, userID int64) error {
	_, err := r.db.Exec(`
		INSERT OR IGNORE INTO task_assignees (task_id, user_id) VALUES (?, ?)
	`, taskID, userID)
	if err != nil {
		return fmt.Errorf("failed to add assignee: %w", err)
	}
	return nil
}

// GetByID returns the task with its assignee set loaded, or nil when absent.
func (r *TaskRepository) GetByID(id int64) (*models.Task, error) {
	var task models.Task
	err := r.db.QueryRow(`
		SELECT id, project_id, name, is_open_to_all, created_at
		FROM tasks WHERE id = ?
	`, id).Scan(&task.ID, &task.ProjectID, &task.Name, &task.IsOpenToAll, &task.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	rows, err := r.db.Query(`
		SELECT user_id FROM task_assignees WHERE task_id = ? ORDER BY user_id ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignees: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan assignee: %w", err)
		}
		task.AssigneeIDs = append(task.AssigneeIDs, userID)
	}
	return &task, rows.Err()
}
