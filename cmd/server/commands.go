package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"grievance/internal/platform/database"
	"grievance/internal/ratelimit/models"
	"grievance/internal/seed"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500")).Bold(true)
)

func renderTable(w io.Writer, headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...)
	fmt.Fprintln(w, t)
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	run := func(cmd *cobra.Command, fn func(db *sqlx.DB) error) error {
		cfg, _, err := opts.load(cmd)
		if err != nil {
			return err
		}
		if cfg.MemoryMode {
			return fmt.Errorf("migrations need a database; memory mode has no schema")
		}
		db, err := database.Open(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		return fn(db)
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply every pending migration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd, func(db *sqlx.DB) error {
					if err := database.Migrate(db); err != nil {
						return err
					}
					return printVersion(cmd.OutOrStdout(), db)
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Revert the most recent migration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd, func(db *sqlx.DB) error {
					if err := database.Rollback(db); err != nil {
						return err
					}
					return printVersion(cmd.OutOrStdout(), db)
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the current schema version",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd, func(db *sqlx.DB) error {
					return printVersion(cmd.OutOrStdout(), db)
				})
			},
		},
	)
	return cmd
}

func printVersion(w io.Writer, db *sqlx.DB) error {
	version, err := database.Version(db)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "schema version %d\n", version)
	return nil
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	var (
		adminEmail    string
		adminPassword string
		skipEntities  bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the first admin account and the starter entities",
		Long: `Create the first admin account and the starter government entities.

Existing records are left untouched, so the command is safe to rerun. The
admin password may also be given through GRIEVANCE_ADMIN_PASSWORD.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if adminPassword == "" {
				adminPassword = os.Getenv("GRIEVANCE_ADMIN_PASSWORD")
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				if a.db == nil {
					a.logger.WarnContext(ctx, "seeding in memory mode; the data is lost when the command exits")
				}
				var admin *seed.Admin
				if adminEmail != "" {
					admin = &seed.Admin{Email: adminEmail, Password: adminPassword}
				}
				var entities []seed.Entity
				if !skipEntities {
					entities = seed.DefaultEntities
				}

				res, err := a.seeder().Run(ctx, admin, entities)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch {
				case admin == nil:
				case res.AdminCreated:
					fmt.Fprintln(out, okStyle.Render("admin created: "+adminEmail))
				default:
					fmt.Fprintln(out, warnStyle.Render("admin already exists: "+adminEmail))
				}
				fmt.Fprintf(out, "entities created: %d, already present: %d\n", res.EntitiesCreated, res.EntitiesSkipped)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&adminEmail, "admin-email", "", "email of the admin account to create")
	cmd.Flags().StringVar(&adminPassword, "admin-password", "", "password of the admin account (min 8 characters)")
	cmd.Flags().BoolVar(&skipEntities, "skip-entities", false, "do not create the starter entities")
	return cmd
}

func newComplaintsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complaints",
		Short: "Complaint maintenance tasks",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "unlock-expired",
		Short: "Release complaints whose employee lock has expired",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.requireDatabase(); err != nil {
					return err
				}
				n, err := a.complaints.UnlockExpired(ctx, time.Now())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "released %d expired locks\n", n)
				return nil
			})
		},
	})
	return cmd
}

func newRegistrationsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registrations",
		Short: "Pending registration maintenance tasks",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "cleanup",
		Short: "Delete pending registrations whose verification code expired",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.requireDatabase(); err != nil {
					return err
				}
				n, err := a.auth.CleanupExpiredRegistrations(ctx, time.Now())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d expired registrations\n", n)
				return nil
			})
		},
	})
	return cmd
}

func newRateLimitCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Inspect rate limit policies and blocked addresses",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the active policies and the blocked IP addresses",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				out := cmd.OutOrStdout()
				renderTable(out, []string{"POLICY", "MAX", "WINDOW", "SCOPE"}, policyRows(a.rateLimits.Policies()))

				blocked, err := a.rateLimits.BlockedIPs(ctx)
				if err != nil {
					return err
				}
				if len(blocked) == 0 {
					fmt.Fprintln(out, okStyle.Render("no blocked ip addresses"))
					return nil
				}
				renderTable(out, []string{"IP", "BLOCKED UNTIL"}, blockedRows(blocked))
				return nil
			})
		},
	})
	cmd.AddCommand(newRateLimitKeyCmd(opts, "check", "Show attempts and remaining hits of a policy for a subject", false))
	cmd.AddCommand(newRateLimitKeyCmd(opts, "clear", "Reset the buckets of a policy for a subject", true))
	return cmd
}

// newRateLimitKeyCmd builds the per-subject commands. Each limit of the
// policy is keyed by IP, user or email; limits whose key is not given are
// skipped.
func newRateLimitKeyCmd(opts *rootOptions, use, short string, reset bool) *cobra.Command {
	var (
		policy string
		subj   models.Subject
	)
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if subj == (models.Subject{}) {
				return fmt.Errorf("give at least one of --ip, --user or --email")
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				out := cmd.OutOrStdout()
				if reset {
					if err := a.rateLimits.Clear(ctx, policy, subj); err != nil {
						return err
					}
					fmt.Fprintln(out, okStyle.Render("cleared "+policy))
					return nil
				}
				statuses, err := a.rateLimits.Status(ctx, policy, subj)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(statuses))
				for _, st := range statuses {
					rows = append(rows, []string{
						st.Key,
						strconv.Itoa(st.Attempts) + "/" + strconv.Itoa(st.Max),
						strconv.Itoa(st.Remaining),
						st.Window.String(),
					})
				}
				renderTable(out, []string{"KEY", "ATTEMPTS", "REMAINING", "WINDOW"}, rows)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&policy, "policy", "", "policy name, see ratelimit status")
	cmd.Flags().StringVar(&subj.IP, "ip", "", "client ip address")
	cmd.Flags().StringVar(&subj.UserID, "user", "", "user id")
	cmd.Flags().StringVar(&subj.Email, "email", "", "email address")
	_ = cmd.MarkFlagRequired("policy")
	return cmd
}

func policyRows(policies []models.Policy) [][]string {
	var rows [][]string
	for _, p := range policies {
		for _, l := range p.Limits {
			rows = append(rows, []string{p.Name, strconv.Itoa(l.Max), l.Window.String(), string(l.By)})
		}
	}
	return rows
}

func blockedRows(blocked []models.BlockedIP) [][]string {
	rows := make([][]string, 0, len(blocked))
	for _, b := range blocked {
		rows = append(rows, []string{b.IP, b.BlockedUntil.UTC().Format(time.RFC3339)})
	}
	return rows
}
