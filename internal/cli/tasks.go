package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/and161185/tasktime/internal/model"
)

const dateTime = "2006-01-02 15:04"

func newTasksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task"},
		Short:   "List or create tasks",
	}
	cmd.AddCommand(newTasksListCmd(a), newTasksCreateCmd(a))
	return cmd
}

// matchTitle reports whether title contains search, ignoring case.
func matchTitle(title, search string) bool {
	return strings.Contains(strings.ToLower(title), strings.ToLower(search))
}

func newTasksListCmd(a *app) *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := a.newAPI(a)
			if err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			tasks, err := api.ListTasks(ctx)
			if err != nil {
				return err
			}
			if search != "" {
				matched := make([]model.Task, 0, len(tasks))
				for _, t := range tasks {
					if matchTitle(t.Title, search) {
						matched = append(matched, t)
					}
				}
				tasks = matched
			}
			if a.jsonOut {
				return writeJSON(a.out, tasks)
			}
			rows := make([][]string, 0, len(tasks))
			for _, t := range tasks {
				rows = append(rows, []string{
					strconv.FormatInt(t.ID, 10),
					truncate(t.Title, 48),
					strconv.FormatFloat(t.EstimatedHours, 'f', -1, 64),
					strconv.FormatInt(t.AssignedBy, 10),
					t.CreatedAt.In(time.Local).Format(dateTime),
				})
			}
			return writeTable(a.out, []string{"ID", "TITLE", "EST.H", "BY", "CREATED"}, rows)
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "only tasks whose title contains this text (case-insensitive)")
	return cmd
}

func newTasksCreateCmd(a *app) *cobra.Command {
	var in model.NewTask
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if in.Title == "" {
				return usageError{errors.New("--title is required")}
			}
			api, err := a.newAPI(a)
			if err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			t, err := api.CreateTask(ctx, in)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(a.out, t)
			}
			fmt.Fprintf(a.out, "Created task #%d %q\n", t.ID, t.Title)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Title, "title", "", "task title")
	f.StringVar(&in.Description, "description", "", "task description")
	f.Float64Var(&in.EstimatedHours, "hours", 0, "estimated hours")
	f.Int64Var(&in.AssignedBy, "assigned-by", 0, "assigning user id (default: you)")
	return cmd
}
