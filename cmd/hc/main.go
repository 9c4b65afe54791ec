package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"homecrew/internal/app"
	"homecrew/internal/config"
	"homecrew/internal/db"
	"homecrew/internal/domain"
	"homecrew/internal/engine"
	"homecrew/internal/repo"
	"homecrew/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "hc",
	Short: "Homecrew CLI",
	Long: `Homecrew connects conciergeries with independent home-service workers.
- Conciergerie: an agency that manages homes and posts missions on them.
- Home: a property with per-task durations (cleaning, gardening) and objectives.
- Mission: a time-boxed job made of tasks; workers accept, start, and complete it.
- Worker: a registered employee; must be approved before accepting missions.
- Quota: each mission carries points spread over its days; a worker holds at most
  the configured daily cap.
- Queue: failed notifications are retried on a schedule, view with 'hc queue jobs'.`,
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
	viper.SetEnvPrefix("HOMECREW")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier (conciergerie name or employee id)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(conciergerieCmd())
	rootCmd.AddCommand(homeCmd())
	rootCmd.AddCommand(missionCmd())
	rootCmd.AddCommand(employeeCmd())
	rootCmd.AddCommand(queueCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func conciergerieCmd() *cobra.Command {
	c := &cobra.Command{Use: "conciergerie", Short: "Manage conciergeries"}
	c.AddCommand(conciergerieRegisterCmd())
	c.AddCommand(conciergerieListCmd())
	return c
}

func conciergerieRegisterCmd() *cobra.Command {
	var name, email string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a conciergerie",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				c, err := a.Engine.RegisterConciergerie(ctx, name, email)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "conciergerie name")
	cmd.Flags().StringVar(&email, "email", "", "contact email")
	return cmd
}

func conciergerieListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List conciergeries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListConciergeries(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func homeCmd() *cobra.Command {
	h := &cobra.Command{Use: "home", Short: "Manage homes"}
	h.AddCommand(homeCreateCmd())
	h.AddCommand(homeListCmd())
	h.AddCommand(homeShowCmd())
	h.AddCommand(homeUpdateCmd())
	h.AddCommand(homeDeleteCmd())
	return h
}

func homeFlags(cmd *cobra.Command, opts *engine.HomeOptions) {
	cmd.Flags().StringVar(&opts.Title, "title", "", "home title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringSliceVar(&opts.Objectives, "objective", nil, "objective (repeatable)")
	cmd.Flags().StringVar(&opts.Zone, "zone", "", "geographic zone")
	cmd.Flags().Float64Var(&opts.CleaningHours, "cleaning-hours", 0, "hours per cleaning task")
	cmd.Flags().Float64Var(&opts.GardeningHours, "gardening-hours", 0, "hours per gardening task")
	cmd.Flags().StringSliceVar(&opts.Images, "image", nil, "image URL (repeatable)")
}

func homeCreateCmd() *cobra.Command {
	var opts engine.HomeOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a home",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				h, err := a.Engine.CreateHome(ctx, viper.GetString("actor-id"), opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(h)
			})
		},
	}
	homeFlags(cmd, &opts)
	return cmd
}

func homeListCmd() *cobra.Command {
	var conciergerie string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List homes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				owner := conciergerie
				if owner == "" {
					owner = viper.GetString("actor-id")
				}
				homes, err := r.ListHomes(ctx, owner)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(homes)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Zone", "Cleaning h", "Gardening h"})
				for _, h := range homes {
					tw.AppendRow(table.Row{h.ID, h.Title, h.Zone, h.CleaningHours, h.GardeningHours})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&conciergerie, "conciergerie", "", "owner (defaults to --actor-id)")
	return cmd
}

func homeShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <home-id>",
		Short: "Show a home",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				h, err := r.GetHome(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(h)
			})
		},
	}
	return cmd
}

func homeUpdateCmd() *cobra.Command {
	var opts engine.HomeOptions
	cmd := &cobra.Command{
		Use:   "update <home-id>",
		Short: "Update a home",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				h, err := a.Engine.UpdateHome(ctx, viper.GetString("actor-id"), args[0], opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(h)
			})
		},
	}
	homeFlags(cmd, &opts)
	return cmd
}

func homeDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <home-id>",
		Short: "Delete a home",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				if err := a.Engine.DeleteHome(ctx, viper.GetString("actor-id"), args[0]); err != nil {
					return err
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}
	return cmd
}

func missionCmd() *cobra.Command {
	m := &cobra.Command{Use: "mission", Short: "Manage missions"}
	m.AddCommand(missionCreateCmd())
	m.AddCommand(missionListCmd())
	m.AddCommand(missionShowCmd())
	m.AddCommand(missionEditCmd())
	m.AddCommand(missionDeleteCmd())
	m.AddCommand(missionAcceptCmd())
	m.AddCommand(missionStartCmd())
	m.AddCommand(missionCompleteCmd())
	m.AddCommand(missionCancelCmd())
	return m
}

func missionCreateCmd() *cobra.Command {
	var homeID, start, end string
	var tasks, allowed []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Post a mission",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				m, err := a.Engine.CreateMission(ctx, engine.MissionCreateOptions{
					HomeID:           homeID,
					Tasks:            tasks,
					Start:            start,
					End:              end,
					AllowedEmployees: allowed,
					Actor:            viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&homeID, "home", "", "home id")
	cmd.Flags().StringSliceVar(&tasks, "task", nil, "task kind (repeatable: cleaning, gardening, arrival, departure)")
	cmd.Flags().StringVar(&start, "start", "", "start time (RFC3339)")
	cmd.Flags().StringVar(&end, "end", "", "end time (RFC3339)")
	cmd.Flags().StringSliceVar(&allowed, "allow", nil, "restrict to employee id (repeatable)")
	return cmd
}

func missionListCmd() *cobra.Command {
	var f repo.MissionFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List missions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				missions, err := r.ListMissions(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(missions)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Home", "Tasks", "Start", "Status", "Worker"})
				for _, m := range missions {
					status := m.StatusOf()
					if status == "" {
						status = "unassigned"
					}
					worker := ""
					if m.EmployeeID != nil {
						worker = *m.EmployeeID
					}
					tw.AppendRow(table.Row{m.ID, m.HomeID, strings.Join(m.Tasks, ","), m.Start, status, worker})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Conciergerie, "conciergerie", "", "owner filter")
	cmd.Flags().StringVar(&f.EmployeeID, "employee", "", "assigned worker filter")
	cmd.Flags().StringVar(&f.HomeID, "home", "", "home filter")
	cmd.Flags().BoolVar(&f.Unassigned, "available", false, "only the unassigned pool")
	return cmd
}

func missionShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <mission-id>",
		Short: "Show a mission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				m, err := r.GetMission(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	return cmd
}

func missionEditCmd() *cobra.Command {
	var homeID, start, end string
	var tasks, allowed []string
	cmd := &cobra.Command{
		Use:   "edit <mission-id>",
		Short: "Edit a mission (unassigns any holder)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				opts := engine.MissionEditOptions{ID: args[0], Actor: viper.GetString("actor-id")}
				if cmd.Flags().Changed("home") {
					opts.HomeID = &homeID
				}
				if cmd.Flags().Changed("task") {
					opts.Tasks = tasks
				}
				if cmd.Flags().Changed("start") {
					opts.Start = &start
				}
				if cmd.Flags().Changed("end") {
					opts.End = &end
				}
				if cmd.Flags().Changed("allow") {
					opts.AllowedEmployees = &allowed
				}
				m, err := a.Engine.EditMission(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&homeID, "home", "", "home id")
	cmd.Flags().StringSliceVar(&tasks, "task", nil, "task kind (repeatable)")
	cmd.Flags().StringVar(&start, "start", "", "start time (RFC3339)")
	cmd.Flags().StringVar(&end, "end", "", "end time (RFC3339)")
	cmd.Flags().StringSliceVar(&allowed, "allow", nil, "restrict to employee id (repeatable)")
	return cmd
}

func missionDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <mission-id>",
		Short: "Delete a mission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				if err := a.Engine.DeleteMission(ctx, args[0], viper.GetString("actor-id")); err != nil {
					return err
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}
	return cmd
}

func missionTransitionCmd(use, short string,
	fn func(e engine.Engine, ctx context.Context, missionID, actorID string) (domain.Mission, error)) *cobra.Command {
	var employee string
	cmd := &cobra.Command{
		Use:   use + " <mission-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				actor := employee
				if actor == "" {
					actor = viper.GetString("actor-id")
				}
				m, err := fn(a.Engine, ctx, args[0], actor)
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&employee, "employee", "", "employee id (defaults to --actor-id)")
	return cmd
}

func missionAcceptCmd() *cobra.Command {
	return missionTransitionCmd("accept", "Accept a mission",
		func(e engine.Engine, ctx context.Context, id, actor string) (domain.Mission, error) {
			return e.AcceptMission(ctx, id, actor)
		})
}

func missionStartCmd() *cobra.Command {
	return missionTransitionCmd("start", "Start a mission",
		func(e engine.Engine, ctx context.Context, id, actor string) (domain.Mission, error) {
			return e.StartMission(ctx, id, actor)
		})
}

func missionCompleteCmd() *cobra.Command {
	return missionTransitionCmd("complete", "Complete a mission",
		func(e engine.Engine, ctx context.Context, id, actor string) (domain.Mission, error) {
			return e.CompleteMission(ctx, id, actor)
		})
}

func missionCancelCmd() *cobra.Command {
	return missionTransitionCmd("cancel", "Cancel a mission",
		func(e engine.Engine, ctx context.Context, id, actor string) (domain.Mission, error) {
			return e.CancelMission(ctx, id, actor)
		})
}

func employeeCmd() *cobra.Command {
	e := &cobra.Command{Use: "employee", Short: "Manage workers"}
	e.AddCommand(employeeRegisterCmd())
	e.AddCommand(employeeListCmd())
	e.AddCommand(employeeShowCmd())
	e.AddCommand(employeeVerifyCmd())
	e.AddCommand(employeeApproveCmd())
	e.AddCommand(employeeDeviceCmd())
	e.AddCommand(employeeLoadCmd())
	return e
}

func employeeRegisterCmd() *cobra.Command {
	var reg engine.EmployeeRegistration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				emp, key, err := a.Engine.RegisterEmployee(ctx, reg)
				if err != nil {
					return err
				}
				fmt.Println("device key (shown once):", key)
				return printJSONOrTable(emp)
			})
		},
	}
	cmd.Flags().StringVar(&reg.Name, "name", "", "worker name")
	cmd.Flags().StringVar(&reg.Email, "email", "", "worker email")
	cmd.Flags().StringVar(&reg.Phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&reg.PreferredConciergerie, "conciergerie", "", "preferred conciergerie")
	cmd.Flags().StringVar(&reg.DeviceName, "device", "", "first device name")
	return cmd
}

func employeeListCmd() *cobra.Command {
	var approval string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListEmployees(ctx, approval)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Email", "Approval", "Verified"})
				for _, emp := range items {
					tw.AppendRow(table.Row{emp.ID, emp.Name, emp.Email, emp.Approval, emp.EmailVerified})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&approval, "approval", "", "filter by approval (pending, accepted, rejected)")
	return cmd
}

func employeeShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <employee-id>",
		Short: "Show a worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				emp, err := r.GetEmployee(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(emp)
			})
		},
	}
	return cmd
}

func employeeVerifyCmd() *cobra.Command {
	var code string
	cmd := &cobra.Command{
		Use:   "verify <employee-id>",
		Short: "Confirm a worker's email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				emp, err := a.Engine.VerifyEmployee(ctx, args[0], code)
				if err != nil {
					return err
				}
				return printJSONOrTable(emp)
			})
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "verification code")
	return cmd
}

func employeeApproveCmd() *cobra.Command {
	var approval string
	cmd := &cobra.Command{
		Use:   "approve <employee-id>",
		Short: "Set a worker's approval status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				emp, err := a.Engine.SetEmployeeApproval(ctx, viper.GetString("actor-id"), args[0], approval)
				if err != nil {
					return err
				}
				return printJSONOrTable(emp)
			})
		},
	}
	cmd.Flags().StringVar(&approval, "status", "accepted", "approval status (pending, accepted, rejected)")
	return cmd
}

func employeeDeviceCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "device <employee-id>",
		Short: "Issue an extra device key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				key, raw, err := a.Engine.AddEmployeeDevice(ctx, args[0], name)
				if err != nil {
					return err
				}
				fmt.Println("device key (shown once):", raw)
				return printJSONOrTable(key)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "device name")
	return cmd
}

func employeeLoadCmd() *cobra.Command {
	var day string
	cmd := &cobra.Command{
		Use:   "load <employee-id>",
		Short: "Held points for one day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				target := time.Now().UTC()
				if day != "" {
					parsed, err := time.Parse("2006-01-02", day)
					if err != nil {
						return fmt.Errorf("invalid --day: %w", err)
					}
					target = parsed
				}
				points, err := a.Engine.EmployeeLoad(ctx, args[0], target)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{
					"employee_id": args[0],
					"day":         target.Format("2006-01-02"),
					"points":      points,
					"cap":         a.Config.Quota.DailyCap,
				})
			})
		},
	}
	cmd.Flags().StringVar(&day, "day", "", "day as YYYY-MM-DD (defaults to today)")
	return cmd
}

func queueCmd() *cobra.Command {
	q := &cobra.Command{Use: "queue", Short: "Notification retry queue"}
	q.AddCommand(queueJobsCmd())
	q.AddCommand(queueRunCmd())
	return q
}

func queueJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List pending notification jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				jobs, err := r.ListNotificationJobs(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(jobs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Kind", "Attempts", "Last attempt"})
				for _, j := range jobs {
					tw.AppendRow(table.Row{j.ID, j.Kind, j.Attempts, j.LastAttempt})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func queueRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Force one retry scan",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				delivered, dropped, err := a.Queue.RunOnce(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("delivered=%d dropped=%d\n", delivered, dropped)
				return nil
			})
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	c := &cobra.Command{Use: "config", Short: "Workspace configuration"}
	c.AddCommand(configInitCmd())
	c.AddCommand(configShowCmd())
	return c
}

func configInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default homecrew.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	l := &cobra.Command{Use: "log", Short: "Event log"}
	l.AddCommand(logTailCmd())
	return l
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, n, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind (home, mission, employee)")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var devLogin bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			defer a.Close()
			authCfg := server.AuthConfig{
				JWTSecret: os.Getenv("HOMECREW_JWT_SECRET"),
				DevLogin:  devLogin,
			}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("HOMECREW_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{
				Engine:   a.Engine,
				Queue:    a.Queue,
				BasePath: basePath,
				Auth:     authCfg,
			})
			if err != nil {
				return err
			}
			go a.Queue.Run(cmd.Context())
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Homecrew API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	cmd.Flags().BoolVar(&devLogin, "dev-login", false, "enable the dev token endpoint")
	return cmd
}

func withApp(ctx context.Context, fn func(context.Context, *app.Context) error) error {
	a, err := app.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	return withApp(ctx, func(ctx context.Context, a *app.Context) error {
		return fn(ctx, a.Repo)
	})
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
