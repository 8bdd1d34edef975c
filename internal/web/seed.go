package web

import (
	"context"
	"fmt"
	"os"

	"github.com/golang/glog"
	"gopkg.in/yaml.v3"

	"github.com/Joseda-hg/teamboard/internal/db"
	"github.com/Joseda-hg/teamboard/internal/model"
)

// Seed is a fixture file. Users, projects and recipients are referenced by
// name so fixtures stay readable.
type Seed struct {
	Users    []SeedUser    `yaml:"users"`
	Projects []SeedProject `yaml:"projects"`
	Tasks    []SeedTask    `yaml:"tasks"`
	Notes    []SeedNote    `yaml:"notes"`
}

type SeedUser struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
	Role  string `yaml:"role"`
}

type SeedProject struct {
	Name    string   `yaml:"name"`
	Members []string `yaml:"members"`
}

type SeedTask struct {
	Title       string          `yaml:"title"`
	Description string          `yaml:"description"`
	User        string          `yaml:"user"`
	Project     string          `yaml:"project"`
	StartTime   string          `yaml:"start_time"`
	EndTime     string          `yaml:"end_time"`
	Status      string          `yaml:"status"`
	Locked      bool            `yaml:"locked"`
	Subtasks    []model.Subtask `yaml:"subtasks"`
}

type SeedNote struct {
	Title      string   `yaml:"title"`
	Content    string   `yaml:"content"`
	Date       string   `yaml:"date"`
	Recipients []string `yaml:"recipients"`
}

func LoadSeed(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, err
	}
	return ParseSeed(data)
}

func ParseSeed(data []byte) (Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return Seed{}, fmt.Errorf("parse seed: %w", err)
	}
	return seed, nil
}

// Apply writes the fixture into an empty store. A store that already has
// users is left alone.
func (seed Seed) Apply(ctx context.Context, store *db.Store) error {
	existing, err := store.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		glog.V(1).Infof("[srv]seed skipped, %d users present", len(existing))
		return nil
	}

	users := map[string]int64{}
	for _, u := range seed.Users {
		created, err := store.CreateUser(ctx, db.UserInput{Name: u.Name, Email: u.Email, Role: u.Role})
		if err != nil {
			return fmt.Errorf("seed user %q: %w", u.Name, err)
		}
		users[u.Name] = created.ID
	}
	lookup := func(name string) (int64, error) {
		id, ok := users[name]
		if !ok {
			return 0, fmt.Errorf("unknown user %q", name)
		}
		return id, nil
	}

	projects := map[string]int64{}
	for _, p := range seed.Projects {
		members := make([]int64, 0, len(p.Members))
		for _, name := range p.Members {
			id, err := lookup(name)
			if err != nil {
				return fmt.Errorf("seed project %q: %w", p.Name, err)
			}
			members = append(members, id)
		}
		created, err := store.CreateProject(ctx, p.Name, members)
		if err != nil {
			return fmt.Errorf("seed project %q: %w", p.Name, err)
		}
		projects[p.Name] = created.ID
	}

	for _, t := range seed.Tasks {
		userID, err := lookup(t.User)
		if err != nil {
			return fmt.Errorf("seed task %q: %w", t.Title, err)
		}
		input := db.TaskInput{
			Title:       t.Title,
			Description: t.Description,
			UserID:      userID,
			StartTime:   t.StartTime,
			EndTime:     t.EndTime,
			Status:      t.Status,
			Subtasks:    t.Subtasks,
			Locked:      t.Locked,
		}
		if t.Project != "" {
			id, ok := projects[t.Project]
			if !ok {
				return fmt.Errorf("seed task %q: unknown project %q", t.Title, t.Project)
			}
			input.ProjectID = &id
		}
		if _, err := store.CreateTask(ctx, input); err != nil {
			return fmt.Errorf("seed task %q: %w", t.Title, err)
		}
	}

	for _, n := range seed.Notes {
		recipients := make([]int64, 0, len(n.Recipients))
		for _, name := range n.Recipients {
			id, err := lookup(name)
			if err != nil {
				return fmt.Errorf("seed note %q: %w", n.Title, err)
			}
			recipients = append(recipients, id)
		}
		if _, err := store.CreateNote(ctx, db.NoteInput{Title: n.Title, Content: n.Content, Date: n.Date, RecipientIDs: recipients}); err != nil {
			return fmt.Errorf("seed note %q: %w", n.Title, err)
		}
	}

	glog.V(1).Infof("[srv]seeded %d users, %d projects, %d tasks, %d notes",
		len(seed.Users), len(seed.Projects), len(seed.Tasks), len(seed.Notes))
	return nil
}
