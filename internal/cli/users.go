package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newEmployeesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "employees",
		Short: "List employees (superiors only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := a.newAPI(a)
			if err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			users, err := api.ListEmployees(ctx)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(a.out, users)
			}
			rows := make([][]string, 0, len(users))
			for _, u := range users {
				rows = append(rows, []string{strconv.FormatInt(u.ID, 10), u.Name, u.Email})
			}
			return writeTable(a.out, []string{"ID", "NAME", "EMAIL"}, rows)
		},
	}
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the team overview (superiors only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := a.newAPI(a)
			if err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			s, err := api.Stats(ctx)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(a.out, s)
			}
			return writeTable(a.out, []string{"METRIC", "VALUE"}, [][]string{
				{"Tasks", strconv.Itoa(s.TotalTasks)},
				{"Queries", fmt.Sprintf("%d (%d open, %d resolved)", s.TotalQueries, s.OpenQueries, s.ResolvedQueries)},
				{"Employees", strconv.Itoa(s.TotalEmployees)},
				{"Tasks started today", strconv.Itoa(s.AssignmentsToday)},
			})
		},
	}
}
