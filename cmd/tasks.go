package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nibzard/tasktrack/internal/parallel"
	"github.com/nibzard/tasktrack/internal/store"
	"github.com/nibzard/tasktrack/internal/task"
	"github.com/nibzard/tasktrack/internal/utils"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

func (a *app) newListCmd() *cobra.Command {
	var output string
	var pending bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch output {
			case outputTable, outputJSON, outputYAML:
			default:
				return fmt.Errorf("unknown output format %q (want table, json or yaml)", output)
			}

			s := a.newStore(cmd.Context())
			if err := s.Load(cmd.Context()); err != nil {
				return err
			}
			st := s.State()

			tasks := st.Tasks
			if pending {
				tasks = make([]task.Task, 0, len(st.Tasks))
				for _, t := range st.Tasks {
					if !t.Completed {
						tasks = append(tasks, t)
					}
				}
			}

			switch output {
			case outputJSON:
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(tasks)
			case outputYAML:
				enc := yaml.NewEncoder(a.out)
				enc.SetIndent(2)
				if err := enc.Encode(tasks); err != nil {
					return err
				}
				return enc.Close()
			default:
				return writeTaskTable(a.out, tasks, st)
			}
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format (table|json|yaml)")
	cmd.Flags().BoolVar(&pending, "pending", false, "Only show tasks that are not completed")
	return cmd
}

func writeTaskTable(w io.Writer, tasks []task.Task, st store.State) error {
	if len(tasks) == 0 {
		_, err := fmt.Fprintln(w, "No tasks yet. Create one.")
		return err
	}

	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		done := " "
		if t.Completed {
			done = "x"
		}
		created := ""
		if !t.CreatedAt.IsZero() {
			created = t.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{
			strconv.FormatInt(t.ID, 10),
			done,
			t.Title,
			utils.Truncate(t.Description, 40),
			created,
		})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "DONE", "TITLE", "DESCRIPTION", "CREATED").
		Rows(rows...)
	if _, err := fmt.Fprintln(w, tbl.String()); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d total • %d remaining\n", st.Total(), st.Remaining())
	return err
}

func (a *app) newAddCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "add TITLE...",
		Short: "Create a task",
		Long:  "Create a task. Words after the command are joined into the title.",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.newStore(cmd.Context())
			created, err := s.Create(cmd.Context(), strings.Join(args, " "), description)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.out, "Created #%d %s\n", created.ID, created.Title)
			return err
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "Task description")
	return cmd
}

func (a *app) newToggleCmd() *cobra.Command {
	var jobs int

	cmd := &cobra.Command{
		Use:   "toggle ID...",
		Short: "Flip tasks between completed and pending",
		Long:  "Flip tasks between completed and pending. Several ids are sent concurrently.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBulk(cmd, args, jobs, (*store.Store).StartToggle,
				func(s *store.Store, t task.Task) string {
					state := "pending"
					if updated, ok := task.Find(s.State().Tasks, t.ID); ok && updated.Completed {
						state = "completed"
					}
					return fmt.Sprintf("Task #%d marked %s", t.ID, state)
				})
		},
	}
	cmd.Flags().IntVarP(&jobs, "jobs", "j", defaultJobs, "Maximum concurrent requests")
	return cmd
}

func (a *app) newRemoveCmd() *cobra.Command {
	var jobs int

	cmd := &cobra.Command{
		Use:     "rm ID...",
		Aliases: []string{"delete"},
		Short:   "Delete tasks",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBulk(cmd, args, jobs, (*store.Store).StartRemove,
				func(_ *store.Store, t task.Task) string {
					return fmt.Sprintf("Deleted #%d %s", t.ID, t.Title)
				})
		},
	}
	cmd.Flags().IntVarP(&jobs, "jobs", "j", defaultJobs, "Maximum concurrent requests")
	return cmd
}

const defaultJobs = 4

// runBulk resolves every id against one load of the collection, then applies
// start to each task and sends the changes through a bounded pool. Nothing is
// sent when any id is invalid or unknown.
func (a *app) runBulk(
	cmd *cobra.Command,
	rawIDs []string,
	jobs int,
	start func(*store.Store, task.Task) *store.Pending,
	report func(*store.Store, task.Task) string,
) error {
	ctx := cmd.Context()

	ids := make([]int64, 0, len(rawIDs))
	seen := make(map[int64]bool, len(rawIDs))
	for _, raw := range rawIDs {
		id, err := parseTaskID(raw)
		if err != nil {
			return err
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	s := a.newStore(ctx)
	if err := s.Load(ctx); err != nil {
		return err
	}
	tasks := make(map[int64]task.Task, len(ids))
	for _, id := range ids {
		t, ok := task.Find(s.State().Tasks, id)
		if !ok {
			return fmt.Errorf("task #%d not found", id)
		}
		tasks[id] = t
	}

	pool := parallel.NewWorkerPool(ctx, jobs, false)
	for _, id := range ids {
		p := start(s, tasks[id])
		pool.Submit(id, p.Resolve)
	}
	results, errs := pool.Wait()

	for _, r := range results {
		if r.Err != nil {
			continue
		}
		a.logger.Debug("request finished", "id", r.TaskID, "duration", r.Duration)
		if _, err := fmt.Fprintln(a.out, report(s, tasks[r.TaskID])); err != nil {
			return err
		}
	}
	return errors.Join(errs...)
}

func parseTaskID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(raw, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", raw)
	}
	return id, nil
}
