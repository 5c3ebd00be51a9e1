package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vsals/searchcoachdeploy/internal/domain"
	"github.com/vsals/searchcoachdeploy/internal/infra/postgres"
)

// NewImportQuestionsCmd loads a YAML question catalog into Postgres.
func NewImportQuestionsCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import-questions",
		Short: "Import the question catalog from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}

			questions, err := readQuestions(file)
			if err != nil {
				return err
			}
			if err := runMigrationsWithConfig(cmd.Context(), cfg, logger); err != nil {
				return err
			}

			db := openBunDB(cfg.Postgres.URL)
			defer db.Close()

			n, err := postgres.ImportQuestions(cmd.Context(), db, questions)
			if err != nil {
				return err
			}
			logger.WithField("questions", n).Info("question catalog imported")
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "config/questions.yaml", "YAML file with the question catalog")
	return cmd
}

type questionFile struct {
	Questions []domain.QuestionDefinition `yaml:"questions"`
}

func readQuestions(path string) ([]domain.QuestionDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f questionFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(f.Questions) == 0 {
		return nil, fmt.Errorf("%s contains no questions", path)
	}
	return f.Questions, nil
}
