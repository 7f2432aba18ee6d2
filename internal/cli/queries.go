package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/and161185/tasktime/internal/model"
)

func newQueriesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "queries",
		Aliases: []string{"query", "q"},
		Short:   "Raise and answer task queries",
	}
	cmd.AddCommand(
		newQueriesListCmd(a),
		newQueriesRaiseCmd(a),
		newQueriesRepliesCmd(a),
		newQueriesReplyCmd(a),
	)
	return cmd
}

func newQueriesListCmd(a *app) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List queries",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch status {
			case "", model.QueryOpen, model.QueryResolved:
			default:
				return usageError{fmt.Errorf("--status must be %s or %s", model.QueryOpen, model.QueryResolved)}
			}
			api, err := a.newAPI(a)
			if err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			qs, err := api.ListQueries(ctx, status)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(a.out, qs)
			}
			rows := make([][]string, 0, len(qs))
			for _, q := range qs {
				rows = append(rows, []string{
					strconv.FormatInt(q.ID, 10),
					"#" + strconv.FormatInt(q.TaskID, 10),
					strconv.FormatInt(q.RaisedBy, 10),
					q.Status,
					truncate(q.Subject, 40),
					q.CreatedAt.In(time.Local).Format(dateTime),
				})
			}
			return writeTable(a.out, []string{"ID", "TASK", "BY", "STATUS", "SUBJECT", "CREATED"}, rows)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (Open|Resolved)")
	return cmd
}

func newQueriesRaiseCmd(a *app) *cobra.Command {
	var in model.NewQuery
	cmd := &cobra.Command{
		Use:   "raise",
		Short: "Raise a query about a task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if in.TaskID <= 0 || in.Subject == "" {
				return usageError{errors.New("--task and --subject are required")}
			}
			api, err := a.newAPI(a)
			if err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			q, err := api.RaiseQuery(ctx, in)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(a.out, q)
			}
			fmt.Fprintf(a.out, "Raised query #%d on task #%d\n", q.ID, q.TaskID)
			return nil
		},
	}
	f := cmd.Flags()
	f.Int64Var(&in.TaskID, "task", 0, "task id")
	f.StringVar(&in.Subject, "subject", "", "short subject")
	f.StringVar(&in.Description, "description", "", "details")
	return cmd
}

func newQueriesRepliesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "replies [query-id]",
		Short: "List replies, optionally for one query",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var qid int64
			if len(args) == 1 {
				v, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil || v <= 0 {
					return usageError{fmt.Errorf("invalid query id %q", args[0])}
				}
				qid = v
			}
			api, err := a.newAPI(a)
			if err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			rs, err := api.ListReplies(ctx, qid)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(a.out, rs)
			}
			rows := make([][]string, 0, len(rs))
			for _, r := range rs {
				rows = append(rows, []string{
					strconv.FormatInt(r.ID, 10),
					strconv.FormatInt(r.QueryID, 10),
					strconv.FormatInt(r.RepliedBy, 10),
					truncate(r.Message, 60),
					r.CreatedAt.In(time.Local).Format(dateTime),
				})
			}
			return writeTable(a.out, []string{"ID", "QUERY", "BY", "MESSAGE", "CREATED"}, rows)
		},
	}
}

func newQueriesReplyCmd(a *app) *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "reply <query-id>",
		Short: "Answer a query and resolve it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			qid, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || qid <= 0 {
				return usageError{fmt.Errorf("invalid query id %q", args[0])}
			}
			if message == "" {
				return usageError{errors.New("--message is required")}
			}
			api, err := a.newAPI(a)
			if err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()
			r, err := api.Reply(ctx, model.NewReply{QueryID: qid, Message: message})
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(a.out, r)
			}
			fmt.Fprintf(a.out, "Replied to query #%d\n", r.QueryID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "reply text")
	return cmd
}
