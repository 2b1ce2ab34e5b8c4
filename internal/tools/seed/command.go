package seed

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/reconhub/auth-service/internal/config"
	"github.com/reconhub/auth-service/internal/database"
	"github.com/reconhub/auth-service/internal/service"
	"github.com/reconhub/auth-service/internal/tools/common"
	"github.com/reconhub/auth-service/internal/tools/ui"
)

type options struct {
	envFile string
	email   string
	name    string
	ci      bool
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{Use: "seed", Short: "Database seed tooling"}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")
	cmd.PersistentFlags().StringVar(&opts.email, "email", "", "bootstrap account email")
	cmd.PersistentFlags().StringVar(&opts.name, "name", "", "bootstrap account display name")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.AddCommand(newApplyCommand(opts), newDryRunCommand(opts))
	return cmd
}

func newApplyCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Provision the bootstrap account",
		RunE: func(cmd *cobra.Command, args []string) error {
			details, err := run(opts, "seed apply", func(ctx context.Context) ([]string, error) {
				if strings.TrimSpace(opts.email) == "" {
					return nil, fmt.Errorf("--email is required")
				}
				cfg, db, err := loadConfigDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				if err := database.Migrate(db); err != nil {
					return nil, err
				}
				initial, err := database.SeedBootstrapUser(db, service.PolicyFromConfig(cfg), opts.email, opts.name)
				if err != nil {
					return nil, err
				}
				if initial == "" {
					return []string{"account already exists, nothing to do"}, nil
				}
				// Shown once; the hash is all that survives.
				return []string{
					"bootstrap account created: " + strings.ToLower(strings.TrimSpace(opts.email)),
					"initial password: " + initial,
					"the password expires per policy, rotate it on first login",
				}, nil
			})
			if opts.ci {
				common.PrintCIResult(err == nil, "seed apply", details, err)
			}
			if err != nil {
				os.Exit(3)
			}
			return nil
		},
	}
}

func newDryRunCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dry-run",
		Short: "Show what seeding would do",
		RunE: func(cmd *cobra.Command, args []string) error {
			details, err := run(opts, "seed dry-run", func(ctx context.Context) ([]string, error) {
				cfg, _, err := loadConfigDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				policy := service.PolicyFromConfig(cfg)
				details := []string{
					"would run schema migration for user, credential, password history, session, oauth and token tables",
					fmt.Sprintf("would generate an initial password meeting policy (min length %d)", policy.MinLength),
				}
				if opts.email != "" {
					details = append(details, "would provision bootstrap account: "+strings.ToLower(strings.TrimSpace(opts.email)))
				}
				if policy.ExpirationDays > 0 {
					details = append(details, fmt.Sprintf("password would expire after %d days", policy.ExpirationDays))
				}
				return details, nil
			})
			if opts.ci {
				common.PrintCIResult(err == nil, "seed dry-run", details, err)
			}
			if err != nil {
				os.Exit(3)
			}
			return nil
		},
	}
}

func run(opts *options, title string, fn func(context.Context) ([]string, error)) ([]string, error) {
	if opts.ci {
		return fn(context.Background())
	}
	return ui.Run(title, fn)
}

func loadConfigDB(envFile string) (*config.Config, *gorm.DB, error) {
	if err := common.LoadEnvFile(envFile); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}
