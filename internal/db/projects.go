package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Joseda-hg/teamboard/internal/model"
)

func (s *Store) CreateProject(ctx context.Context, name string, memberIDs []int64) (model.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Project{}, invalid("project name is required")
	}
	res, err := s.DB.ExecContext(ctx, "INSERT INTO projects (name, created_at) VALUES (?, ?)", name, s.now())
	if err != nil {
		return model.Project{}, fmt.Errorf("insert project: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Project{}, err
	}
	for _, userID := range memberIDs {
		if err := s.AddProjectMember(ctx, id, userID); err != nil {
			return model.Project{}, err
		}
	}
	return s.GetProject(ctx, id, "")
}

// GetProject loads the project with its members and, when date is set, the
// project tasks starting that day.
func (s *Store) GetProject(ctx context.Context, id int64, date string) (model.Project, error) {
	var p model.Project
	err := s.DB.QueryRowContext(ctx, "SELECT id, name FROM projects WHERE id = ?", id).Scan(&p.ID, &p.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Project{}, fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Project{}, err
	}

	members, err := s.ProjectMembers(ctx, id)
	if err != nil {
		return model.Project{}, err
	}
	p.Members = members

	tasks, err := s.ListTasks(ctx, TaskQuery{ProjectID: id, Date: date})
	if err != nil {
		return model.Project{}, err
	}
	p.Tasks = tasks
	return p, nil
}

func (s *Store) ProjectMembers(ctx context.Context, projectID int64) ([]model.User, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT u.id, u.name, u.email, u.role
		FROM project_members m JOIN users u ON u.id = m.user_id
		WHERE m.project_id = ? ORDER BY u.id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []model.User{}
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role); err != nil {
			return nil, err
		}
		members = append(members, u)
	}
	return members, rows.Err()
}

func (s *Store) AddProjectMember(ctx context.Context, projectID int64, userID int64) error {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return err
	}
	if _, err := s.DB.ExecContext(ctx,
		"INSERT OR IGNORE INTO project_members (project_id, user_id) VALUES (?, ?)", projectID, userID); err != nil {
		return fmt.Errorf("add member %d to project %d: %w", userID, projectID, err)
	}
	return nil
}

func (s *Store) RemoveProjectMember(ctx context.Context, projectID int64, userID int64) error {
	res, err := s.DB.ExecContext(ctx, "DELETE FROM project_members WHERE project_id = ? AND user_id = ?", projectID, userID)
	if err != nil {
		return fmt.Errorf("remove member %d from project %d: %w", userID, projectID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("member %d of project %d: %w", userID, projectID, ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	res, err := s.DB.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete project %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	return nil
}
