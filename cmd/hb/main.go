package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"hingeboard/internal/config"
	"hingeboard/internal/db"
	"hingeboard/internal/domain"
	"hingeboard/internal/engine"
	"hingeboard/internal/migrate"
	"hingeboard/internal/repo"
	"hingeboard/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "hb",
	Short: "Hingeboard CLI",
	Long: `Hingeboard schedules tasks around decisions you don't control yet.
- Conditional: an external event with several possible outcomes (a visa decision, a grant reply).
- Outcome: one way the event can go, carrying an action: activate the blocked tasks, postpone them, or switch them to a fallback conditional.
- Task: scheduled into a day, week, month or year slot; while blocked by a conditional it cannot move forward.
- Resolving a conditional applies its outcome to every blocked task in one atomic step, exactly once.
- Event log: diary of changes, view with 'hb log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("HINGEBOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("owner", "local-user", "owner identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("owner", rootCmd.PersistentFlags().Lookup("owner"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(conditionalCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func ownerID() string {
	return viper.GetString("owner")
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfgPath := config.Path(workspace)
			if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
				if err := os.WriteFile(cfgPath, []byte(config.GenerateDefault()), 0o644); err != nil {
					return err
				}
				fmt.Println("wrote", cfgPath)
			} else {
				fmt.Println("config already present at", cfgPath)
			}
			fmt.Println("workspace ready:", db.Path(workspace))
			return nil
		},
	}
}

// parseOutcome decodes a --outcome flag value: "label:type:action" with an
// optional ":days" suffix for postpone actions.
func parseOutcome(raw string) (engine.OutcomeInput, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 3 || len(parts) > 4 {
		return engine.OutcomeInput{}, fmt.Errorf("outcome %q: expected label:type:action[:days]", raw)
	}
	in := engine.OutcomeInput{
		Label:  strings.TrimSpace(parts[0]),
		Type:   domain.OutcomeType(strings.TrimSpace(parts[1])),
		Action: domain.OutcomeAction(strings.TrimSpace(parts[2])),
	}
	if len(parts) == 4 {
		days, err := strconv.Atoi(strings.TrimSpace(parts[3]))
		if err != nil {
			return engine.OutcomeInput{}, fmt.Errorf("outcome %q: days %q is not a number", raw, parts[3])
		}
		in.PostponeDays = &days
	}
	return in, nil
}

func parseOutcomes(raws []string) ([]engine.OutcomeInput, error) {
	var outcomes []engine.OutcomeInput
	for _, raw := range raws {
		in, err := parseOutcome(raw)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, in)
	}
	return outcomes, nil
}

func conditionalCmd() *cobra.Command {
	cond := &cobra.Command{
		Use:     "conditional",
		Aliases: []string{"cond"},
		Short:   "Manage conditionals",
	}
	cond.AddCommand(conditionalAddCmd())
	cond.AddCommand(conditionalListCmd())
	cond.AddCommand(conditionalShowCmd())
	cond.AddCommand(conditionalUpdateCmd())
	cond.AddCommand(conditionalResolveCmd())
	cond.AddCommand(conditionalDeleteCmd())
	return cond
}

func conditionalAddCmd() *cobra.Command {
	var title, desc, expected, urgency, fallbackID string
	var fallbackDays int
	var outcomes []string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a conditional",
		Example: `  hb conditional add --title "Grant decision" --expected 2025-06-01 \
    --outcome "Approved:success:activate" \
    --outcome "Deferred:delayed:postpone:14" \
    --outcome "Rejected:failed:switch_fallback" --fallback-days 30`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ins, err := parseOutcomes(outcomes)
				if err != nil {
					return err
				}
				opts := engine.ConditionalCreateOptions{
					OwnerID:      ownerID(),
					Title:        title,
					Description:  desc,
					ExpectedDate: expected,
					Urgency:      domain.Urgency(urgency),
					Outcomes:     ins,
				}
				if fallbackID != "" {
					opts.FallbackConditionalID = &fallbackID
				}
				if cmd.Flags().Changed("fallback-days") {
					opts.FallbackPostponeDays = &fallbackDays
				}
				c, err := e.CreateConditional(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "conditional title")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&expected, "expected", "", "expected resolution date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&urgency, "urgency", "", "low, medium, high or critical")
	cmd.Flags().StringArrayVar(&outcomes, "outcome", nil, "outcome as label:type:action[:days]; repeatable")
	cmd.Flags().StringVar(&fallbackID, "fallback", "", "fallback conditional id")
	cmd.Flags().IntVar(&fallbackDays, "fallback-days", 0, "fallback postpone days when no fallback conditional is set")
	return cmd
}

func conditionalListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List conditionals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListConditionals(ctx, ownerID(), repo.ConditionalFilters{Status: status})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Expected", "Urgency", "Status", "Outcomes"})
				for _, c := range items {
					tw.AppendRow(table.Row{c.ID, c.Title, c.ExpectedDate, c.Urgency, c.Status, len(c.Outcomes)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "pending, resolved or failed")
	return cmd
}

func conditionalShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a conditional and the tasks it blocks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.Repo.GetConditional(ctx, ownerID(), args[0])
				if err != nil {
					return err
				}
				blocked, err := e.Repo.TasksBlockedBy(ctx, ownerID(), c.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{
					"conditional":  c,
					"blockedTasks": blocked,
				})
			})
		},
	}
	return cmd
}

func conditionalUpdateCmd() *cobra.Command {
	var title, desc, expected, urgency, fallbackID string
	var fallbackDays int
	var clearFallbackDays bool
	var outcomes []string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a pending conditional",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts := engine.ConditionalUpdateOptions{
					OwnerID:           ownerID(),
					ID:                args[0],
					ClearFallbackDays: clearFallbackDays,
				}
				if cmd.Flags().Changed("title") {
					opts.Title = &title
				}
				if cmd.Flags().Changed("description") {
					opts.Description = &desc
				}
				if cmd.Flags().Changed("expected") {
					opts.ExpectedDate = &expected
				}
				if cmd.Flags().Changed("urgency") {
					u := domain.Urgency(urgency)
					opts.Urgency = &u
				}
				if cmd.Flags().Changed("fallback") {
					opts.FallbackConditionalID = &fallbackID
				}
				if cmd.Flags().Changed("fallback-days") {
					opts.FallbackPostponeDays = &fallbackDays
				}
				if len(outcomes) > 0 {
					ins, err := parseOutcomes(outcomes)
					if err != nil {
						return err
					}
					opts.Outcomes = ins
				}
				c, err := e.UpdateConditional(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "conditional title")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&expected, "expected", "", "expected resolution date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&urgency, "urgency", "", "low, medium, high or critical")
	cmd.Flags().StringArrayVar(&outcomes, "outcome", nil, "replacement outcome list as label:type:action[:days]; repeatable")
	cmd.Flags().StringVar(&fallbackID, "fallback", "", "fallback conditional id; empty clears it")
	cmd.Flags().IntVar(&fallbackDays, "fallback-days", 0, "fallback postpone days")
	cmd.Flags().BoolVar(&clearFallbackDays, "clear-fallback-days", false, "remove the fallback postpone days")
	return cmd
}

func conditionalResolveCmd() *cobra.Command {
	var outcomeID string
	cmd := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Resolve a conditional",
		Long:  "Applies the selected outcome to every blocked task in one atomic step. A conditional resolves exactly once.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outcomeID == "" {
				return fmt.Errorf("--outcome-id required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.Resolve(ctx, ownerID(), args[0], outcomeID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("conditional %s is now %s; %d task(s) updated\n", res.ConditionalID, res.Status, res.UpdatedTaskCount)
				if res.SwitchedToFallbackID != nil {
					fmt.Printf("blocked tasks switched to fallback %s\n", *res.SwitchedToFallbackID)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&outcomeID, "outcome-id", "", "id of the outcome that occurred")
	return cmd
}

func conditionalDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a conditional and release its blocked tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				released, err := e.DeleteConditional(ctx, ownerID(), args[0])
				if err != nil {
					return err
				}
				fmt.Printf("deleted; %d task(s) released\n", released)
				return nil
			})
		},
	}
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Manage tasks"}
	task.AddCommand(taskAddCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskShowCmd())
	task.AddCommand(taskUpdateCmd())
	task.AddCommand(taskDeleteCmd())
	task.AddCommand(taskRollupCmd())
	return task
}

func taskAddCmd() *cobra.Command {
	var title, desc, scope, scopeKey, status, blockedBy, parent string
	var progress, contribution int
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a task",
		Example: `  hb task add --title "Buy equipment" --scope day --scope-key 2025-03-10 \
    --blocked-by <conditional-id>`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts := engine.TaskCreateOptions{
					OwnerID:                ownerID(),
					Title:                  title,
					Description:            desc,
					Scope:                  domain.Scope(scope),
					ScopeKey:               scopeKey,
					Status:                 domain.TaskStatus(status),
					Progress:               progress,
					BlockedByConditionalID: blockedBy,
					ParentTaskID:           parent,
				}
				if cmd.Flags().Changed("contribution") {
					opts.ContributionPercent = &contribution
				}
				t, err := e.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "task title")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&scope, "scope", "day", "day, week, month or year")
	cmd.Flags().StringVar(&scopeKey, "scope-key", "", "slot key: YYYY-MM-DD, YYYY-Www, YYYY-MM or YYYY")
	cmd.Flags().StringVar(&status, "status", "", "pending, in-progress or done")
	cmd.Flags().IntVar(&progress, "progress", 0, "progress 0-100")
	cmd.Flags().StringVar(&blockedBy, "blocked-by", "", "conditional id blocking this task")
	cmd.Flags().StringVar(&parent, "parent", "", "parent task id")
	cmd.Flags().IntVar(&contribution, "contribution", 0, "contribution percent toward the parent")
	return cmd
}

func taskListCmd() *cobra.Command {
	var f repo.TaskFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tasks, err := e.Repo.ListTasks(ctx, ownerID(), f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Scope", "Key", "Status", "Progress", "Blocked by"})
				for _, t := range tasks {
					blocker := ""
					if t.BlockedByConditionalID != nil {
						blocker = *t.BlockedByConditionalID
					}
					tw.AppendRow(table.Row{t.ID, t.Title, t.Scope, t.ScopeKey, t.Status, t.Progress, blocker})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.Scope, "scope", "", "scope filter")
	cmd.Flags().StringVar(&f.ScopeKey, "scope-key", "", "scope key filter")
	cmd.Flags().StringVar(&f.ParentID, "parent", "", "parent task id")
	return cmd
}

func taskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.Repo.GetTask(ctx, ownerID(), args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
}

func taskUpdateCmd() *cobra.Command {
	var title, desc, scope, scopeKey, status string
	var progress, contribution int
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts := engine.TaskUpdateOptions{}
				if cmd.Flags().Changed("title") {
					opts.Title = &title
				}
				if cmd.Flags().Changed("description") {
					opts.Description = &desc
				}
				if cmd.Flags().Changed("scope") {
					s := domain.Scope(scope)
					opts.Scope = &s
				}
				if cmd.Flags().Changed("scope-key") {
					opts.ScopeKey = &scopeKey
				}
				if cmd.Flags().Changed("status") {
					s := domain.TaskStatus(status)
					opts.Status = &s
				}
				if cmd.Flags().Changed("progress") {
					opts.Progress = &progress
				}
				if cmd.Flags().Changed("contribution") {
					opts.ContributionPercent = &contribution
				}
				t, err := e.UpdateTask(ctx, ownerID(), args[0], opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "task title")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&scope, "scope", "", "day, week, month or year")
	cmd.Flags().StringVar(&scopeKey, "scope-key", "", "slot key")
	cmd.Flags().StringVar(&status, "status", "", "pending, in-progress or done")
	cmd.Flags().IntVar(&progress, "progress", 0, "progress 0-100")
	cmd.Flags().IntVar(&contribution, "contribution", 0, "contribution percent toward the parent")
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.DeleteTask(ctx, ownerID(), args[0]); err != nil {
					return err
				}
				fmt.Println("deleted")
				return nil
			})
		},
	}
}

func taskRollupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollup <id>",
		Short: "Recompute a task's progress from its children",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.RecomputeParentProgress(ctx, ownerID(), args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened: conditionals created and resolved, tasks moved and rolled up.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, ownerID(), repo.EventFilters{
					Type:       evtType,
					EntityKind: entityKind,
					EntityID:   entityID,
					Limit:      n,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer logger.Sync()

			if !cmd.Flags().Changed("addr") && cfg.Server.Addr != "" {
				addr = cfg.Server.Addr
			}
			if !cmd.Flags().Changed("base-path") && cfg.Server.BasePath != "" {
				basePath = cfg.Server.BasePath
			}
			jwtSecret := os.Getenv("HINGEBOARD_JWT_SECRET")
			if jwtSecret == "" {
				jwtSecret = cfg.Server.JWTSecret
			}
			if jwtSecret == "" && !cfg.Server.AllowOwnerHeader {
				return fmt.Errorf("set HINGEBOARD_JWT_SECRET or enable server.allow_owner_header")
			}

			e := engine.New(conn, cfg)
			handler, err := server.New(server.Config{
				Engine:   e,
				BasePath: basePath,
				Logger:   logger,
				Auth: server.AuthConfig{
					JWTSecret:        jwtSecret,
					AllowOwnerHeader: cfg.Server.AllowOwnerHeader,
					Logger:           logger,
				},
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			logger.Info("serving", zap.String("addr", addr), zap.String("base_path", basePath))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}
