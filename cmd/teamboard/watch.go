package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Joseda-hg/teamboard/internal/model"
	"github.com/Joseda-hg/teamboard/internal/screen"
	"github.com/Joseda-hg/teamboard/internal/view"
)

func watchCmd(opts *options) *cobra.Command {
	var (
		name         string
		projectID    int64
		status       string
		userID       int64
		showPrevious bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print a screen as JSON lines, one per change",
		Long: `Mount one screen and print its snapshot after every change.

Screens: queue, board, notes, reassignments, members, project.

Examples:
  teamboard watch --screen queue --date 2024-05-02
  teamboard watch --screen board --status late --previous
  teamboard watch --screen project --project 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			env, shutdown, err := newEnv(cfg)
			if err != nil {
				return err
			}
			defer shutdown()

			date := opts.day()
			var s screen.Screen
			var exited <-chan struct{}
			switch name {
			case "queue":
				s = screen.NewQueue(env, date)
			case "board":
				s = screen.NewBoard(env, model.TaskFilter{Date: date, UserID: userID, Status: status, ShowPrevious: showPrevious})
			case "notes":
				s = screen.NewNotes(env, date)
			case "reassignments":
				s = screen.NewReassignments(env)
			case "members":
				s = screen.NewMembers(env)
			case "project":
				if projectID == 0 {
					return fmt.Errorf("--project is required")
				}
				p := screen.NewProject(env, projectID, date)
				exited = p.Exited()
				s = p
			default:
				return fmt.Errorf("unknown screen %q", name)
			}
			defer s.Close()

			return watch(cmd, s, exited)
		},
	}

	cmd.Flags().StringVar(&name, "screen", "queue", "screen to watch")
	cmd.Flags().Int64Var(&projectID, "project", 0, "project id for the project screen")
	cmd.Flags().StringVar(&status, "status", "", "board status filter")
	cmd.Flags().Int64Var(&userID, "user", 0, "board owner filter")
	cmd.Flags().BoolVar(&showPrevious, "previous", false, "include open tasks from earlier days on the board")
	return cmd
}

// watch prints the first snapshot, then one per change, until the command's
// context ends or the screen exits.
func watch(cmd *cobra.Command, s screen.Screen, exited <-chan struct{}) error {
	ctx := cmd.Context()
	changes, stop := s.Changes()
	defer stop()

	if err := s.Refresh(ctx); err != nil && !errors.Is(err, view.ErrStale) {
		return err
	}
	out := json.NewEncoder(cmd.OutOrStdout())
	if err := printSnapshot(out, s); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-exited:
			return printSnapshot(out, s)
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			if err := printSnapshot(out, s); err != nil {
				return err
			}
		}
	}
}

func printSnapshot(out *json.Encoder, s screen.Screen) error {
	if err := out.Encode(s.Snapshot()); err != nil && !errors.Is(err, io.ErrClosedPipe) {
		return err
	}
	return nil
}
