package cli

import (
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"

	"trivia-round-service/internal/catalog"
	"trivia-round-service/internal/config"
	"trivia-round-service/internal/infra/file"
	"trivia-round-service/internal/infra/postgres"
)

// NewImportCmd loads a question file into Postgres so the server can use the
// postgres catalog source.
func NewImportCmd(configPath *string) *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import questions from a YAML file into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log := newLogger(cfg)
			if source == "" {
				source = cfg.Catalog.Path
			}
			if source == "" {
				return fmt.Errorf("no question file given")
			}
			if err := runMigrations(ctx, cfg, log); err != nil {
				return err
			}

			entries, err := file.NewQuestionLoader(source).LoadQuestions(ctx)
			if err != nil {
				return err
			}
			// validate before writing so rejected entries never reach the table
			valid := catalog.Build(categoriesOf(cfg), entries, log).Entries()

			pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pool.Close()

			inserted, err := postgres.NewQuestionWriter(pool).Import(ctx, valid)
			if err != nil {
				return err
			}
			log.Info("imported %d new questions from %s (%d valid, %d read)", inserted, source, len(valid), len(entries))
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "file", "", "question file (defaults to catalog.path)")
	return cmd
}
