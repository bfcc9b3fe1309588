package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"leadtriage/internal/app"
	"leadtriage/internal/config"
	"leadtriage/internal/db"
	"leadtriage/internal/domain"
	"leadtriage/internal/engine"
	"leadtriage/internal/logging"
	"leadtriage/internal/repo"
)

var rootCmd = &cobra.Command{
	Use:   "triage",
	Short: "Lead triage CLI",
	Long: `triage keeps a human in the loop on scored sales leads.
- Leads: prospects with a score and a recommended action written by the scorer.
- Overrides: an append-only ledger of human decisions; the latest one wins.
- Decisions: the recommendation, the latest override and the deal outcome merged into one view.
- Drafts: staging records edited field by field and committed to leads in one step.
- Event log: every change, view with 'triage log tail'.`,
	SilenceUsage: true,
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
	viper.SetEnvPrefix("TRIAGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(leadCmd())
	rootCmd.AddCommand(decisionCmd())
	rootCmd.AddCommand(overrideCmd())
	rootCmd.AddCommand(draftCmd())
	rootCmd.AddCommand(scoresCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

// --- leads ---

func leadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lead",
		Short: "Manage leads",
	}
	cmd.AddCommand(leadCreateCmd())
	cmd.AddCommand(leadListCmd())
	cmd.AddCommand(leadShowCmd())
	return cmd
}

func leadCreateCmd() *cobra.Command {
	var fields map[string]string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a lead directly",
		Example: `  triage lead create --field company_name=Acme --field email=ops@acme.test`,
		RunE: func(cmd *cobra.Command, args []string) error {
			form, err := parseFields(fields)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				l, err := e.CreateLead(ctx, form, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(l)
			})
		},
	}
	cmd.Flags().StringToStringVar(&fields, "field", nil, "field=value (repeatable)")
	return cmd
}

func leadListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List leads",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				leads, err := e.ListLeads(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(leads)
				}
				tw := newTable(table.Row{"ID", "Company", "Contact", "Created"})
				for _, l := range leads {
					tw.AppendRow(table.Row{l.ID, l.CompanyName, deref(l.ContactName), l.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func leadShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <lead-id>",
		Short: "Show a lead",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				l, err := e.GetLead(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(l)
			})
		},
	}
}

// --- decisions ---

func decisionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decision",
		Short: "Resolve effective decisions",
		Long:  "The effective action is the latest override if any, otherwise the scorer's recommendation.",
	}
	cmd.AddCommand(decisionShowCmd())
	cmd.AddCommand(decisionListCmd())
	return cmd
}

func decisionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <lead-id>",
		Short: "Show the effective decision for a lead",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.ResolveDecision(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
}

func decisionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List effective decisions for every lead",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entries, err := e.ListDecisions(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := newTable(table.Row{"Lead", "Company", "Score", "Recommended", "Effective", "Outcome"})
				for _, entry := range entries {
					if entry.Decision == nil {
						tw.AppendRow(table.Row{entry.LeadID, entry.CompanyName, "-", "-", "-", entry.Error})
						continue
					}
					d := entry.Decision
					effective := d.EffectiveAction.Present().Label
					if d.IsOverridden {
						effective += " (override)"
					}
					tw.AppendRow(table.Row{entry.LeadID, entry.CompanyName, d.Score, d.RecommendedAction.Present().Label, effective, d.OutcomeStatus})
				}
				tw.Render()
				return nil
			})
		},
	}
}

// --- overrides ---

func overrideCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "override",
		Short: "Record and inspect human overrides",
	}
	cmd.AddCommand(overrideAddCmd())
	cmd.AddCommand(overrideListCmd())
	cmd.AddCommand(overrideLatestCmd())
	return cmd
}

func overrideAddCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:     "add <lead-id> <action>",
		Short:   "Append an override (pursue, review, deprioritise, kill)",
		Args:    cobra.ExactArgs(2),
		Example: `  triage override add 3f1c... kill --reason "chose a competitor"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ev, err := e.AppendOverride(ctx, engine.OverrideInput{
					LeadID:  args[0],
					Action:  args[1],
					Reason:  reason,
					ActorID: viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(ev)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "optional note (max 280 characters)")
	return cmd
}

func overrideListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <lead-id>",
		Short: "Override history, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.OverrideHistory(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable(table.Row{"Created", "Action", "Actor", "Reason"})
				for _, ev := range items {
					tw.AppendRow(table.Row{ev.CreatedAt, ev.Action.Present().Label, ev.ActorID, deref(ev.Reason)})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func overrideLatestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "latest <lead-id>",
		Short: "Show the override currently in force",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ev, err := e.LatestOverride(ctx, args[0])
				if err != nil {
					return err
				}
				if ev == nil {
					if viper.GetBool("json") {
						return printJSON(nil)
					}
					fmt.Println("no override")
					return nil
				}
				return printJSONOrTable(ev)
			})
		},
	}
}

// --- drafts ---

func draftCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Stage leads as drafts before committing them",
	}
	cmd.AddCommand(draftCreateCmd())
	cmd.AddCommand(draftListCmd())
	cmd.AddCommand(draftShowCmd())
	cmd.AddCommand(draftSetCmd())
	cmd.AddCommand(draftCommitCmd())
	cmd.AddCommand(draftDeleteCmd())
	return cmd
}

func draftCreateCmd() *cobra.Command {
	var fields map[string]string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a draft",
		RunE: func(cmd *cobra.Command, args []string) error {
			form, err := parseFields(fields)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.CreateDraft(ctx, form, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringToStringVar(&fields, "field", nil, "field=value (repeatable)")
	return cmd
}

func draftListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List drafts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				drafts, err := e.ListDrafts(ctx, repo.DraftFilters{Status: domain.DraftStatus(status)})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(drafts)
				}
				tw := newTable(table.Row{"ID", "Status", "Company", "Score", "Recommended", "Updated"})
				for _, d := range drafts {
					score, action := "-", "-"
					if d.Score != nil {
						score = fmt.Sprint(*d.Score)
					}
					if d.RecommendedAction != nil {
						action = d.RecommendedAction.Present().Label
					}
					tw.AppendRow(table.Row{d.ID, d.Status, deref(d.CompanyName), score, action, d.UpdatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "draft, committed or archived")
	return cmd
}

func draftShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <draft-id>",
		Short: "Show a draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.GetDraft(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
}

func draftSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <draft-id> <field> <value>",
		Short: "Edit one draft field",
		Long:  "The edit goes through the draft session and is saved before the command exits.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if _, err := a.Sessions.SetField(ctx, args[0], args[1], args[2]); err != nil {
					return err
				}
				if err := a.Sessions.Flush(ctx, args[0]); err != nil {
					return err
				}
				d, err := a.Engine.GetDraft(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
}

func draftCommitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commit <draft-id>...",
		Short: "Commit drafts to leads; all or nothing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				leads, err := e.CommitDrafts(ctx, args, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(leads)
				}
				fmt.Printf("committed %d draft(s)\n", len(leads))
				return nil
			})
		},
	}
}

func draftDeleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <draft-id>...",
		Short: "Delete drafts; all or nothing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes && !confirm(cmd, fmt.Sprintf("Delete %d draft(s)? [y/N] ", len(args))) {
				fmt.Println("aborted")
				return nil
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.DeleteDrafts(ctx, args, true, viper.GetString("actor-id")); err != nil {
					return err
				}
				fmt.Printf("deleted %d draft(s)\n", len(args))
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// --- log & config ---

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "Every lead, draft and override change, newest first.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var f repo.EventFilters
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := newTable(table.Row{"ID", "TS", "Type", "Entity", "Actor"})
				for _, evt := range events {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, evt.EntityKind + ":" + evt.EntityID, evt.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&f.Limit, "n", 20, "number of events")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage triage.yml",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter triage.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate triage.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := config.Load(viper.GetString("workspace"))
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

// --- helpers ---

func newLogger() *slog.Logger {
	return logging.New(viper.GetString("log-level"), "text")
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	a, err := app.Open(ctx, viper.GetString("workspace"), newLogger())
	if err != nil {
		return err
	}
	runErr := fn(ctx, a)
	return errors.Join(runErr, a.Close(ctx))
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		return fn(ctx, a.Engine)
	})
}

func parseFields(raw map[string]string) (map[domain.DraftField]string, error) {
	form := make(map[domain.DraftField]string, len(raw))
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		f, err := domain.ParseDraftField(name)
		if err != nil {
			return nil, err
		}
		form[f] = raw[name]
	}
	return form, nil
}

func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func newTable(header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(header)
	return tw
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
