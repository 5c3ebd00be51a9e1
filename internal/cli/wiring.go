package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/vsals/searchcoachdeploy/internal/app"
	"github.com/vsals/searchcoachdeploy/internal/config"
	"github.com/vsals/searchcoachdeploy/internal/domain"
	"github.com/vsals/searchcoachdeploy/internal/infra/dynamo"
	"github.com/vsals/searchcoachdeploy/internal/infra/memory"
	"github.com/vsals/searchcoachdeploy/internal/infra/postgres"
	rediscache "github.com/vsals/searchcoachdeploy/internal/infra/redis"
	"github.com/vsals/searchcoachdeploy/internal/integrations/paramstore"
)

// stores groups the persistence adapters selected by config.
type stores struct {
	responses app.ResponseStore
	tabs      app.TabStore
	users     app.UserStore
	teams     app.TeamStore
	questions app.QuestionRepository
	closers   []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func loadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	return awsconfig.LoadDefaultConfig(ctx, opts...)
}

// applySecrets overrides credentials with values from Parameter Store.
func applySecrets(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) error {
	if cfg.Secrets.SSMPrefix == "" {
		return nil
	}
	awsCfg, err := loadAWSConfig(ctx, cfg.DynamoDB.Region)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}
	client, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return err
	}
	secrets, err := paramstore.LoadSecrets(ctx, client, cfg.Secrets.SSMPrefix)
	if err != nil {
		return err
	}

	if secrets.BotAppPassword != "" {
		cfg.Bot.AppPassword = secrets.BotAppPassword
	}
	if secrets.BingKey != "" {
		cfg.Bing.APIKey = secrets.BingKey
	}
	if secrets.JWTSigningKey != "" {
		cfg.Auth.SigningKey = secrets.JWTSigningKey
	}
	logger.WithField("prefix", cfg.Secrets.SSMPrefix).Info("secrets loaded from parameter store")
	return nil
}

func buildStores(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) (*stores, error) {
	s := &stores{}

	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return nil, err
		}
		db := openBunDB(cfg.Postgres.URL)
		s.closers = append(s.closers, func() { _ = db.Close() })
		s.responses = postgres.NewResponseStore(db)
		s.tabs = postgres.NewTabStore(db)
		s.users = postgres.NewUserStore(db)
	case config.DriverDynamoDB:
		awsCfg, err := loadAWSConfig(ctx, cfg.DynamoDB.Region)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client := awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
			if cfg.DynamoDB.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.DynamoDB.Endpoint)
			}
		})
		store, err := dynamo.New(client, cfg.DynamoDB.Table)
		if err != nil {
			return nil, err
		}
		s.responses = store.Responses()
		s.tabs = store.Tabs()
		s.users = store.Users()
	default:
		s.responses = memory.NewResponseStore()
		s.tabs = memory.NewTabStore()
		s.users = memory.NewUserStore()
	}

	loader, err := questionLoader(ctx, cfg, s)
	if err != nil {
		s.Close()
		return nil, err
	}
	questionTTL := config.TTLDuration(cfg.Questions.TTL, time.Hour)

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		s.closers = append(s.closers, func() { _ = client.Close() })
		s.questions = rediscache.NewQuestionRepository(client, loader, questionTTL)
		s.teams = rediscache.NewTeamStore(client, config.TTLDuration(cfg.Redis.TeamTTL, 0))
	} else {
		s.questions = memory.NewQuestionRepository(loader, questionTTL)
		s.teams = memory.NewTeamStore()
	}
	return s, nil
}

func questionLoader(ctx context.Context, cfg config.Config, s *stores) (memory.QuestionLoader, error) {
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s.closers = append(s.closers, pool.Close)
		return postgres.NewQuestionLoader(pool), nil
	}

	questions := sampleQuestions()
	if cfg.Questions.File != "" {
		var err error
		if questions, err = readQuestions(cfg.Questions.File); err != nil {
			return nil, err
		}
	}
	return memory.NewStaticQuestionLoader(questions), nil
}

func retryPolicy(cfg config.Config) app.RetryPolicy {
	def := app.DefaultRetryPolicy()
	return app.RetryPolicy{
		MaxRetries:   cfg.Bot.MaxRetries,
		InitialDelay: config.TTLDuration(cfg.Bot.RetryDelay, def.InitialDelay),
		MaxDelay:     config.TTLDuration(cfg.Bot.MaxRetryDelay, def.MaxDelay),
		MaxElapsed:   config.TTLDuration(cfg.Bot.MaxElapsed, def.MaxElapsed),
	}
}

// sampleQuestions is the catalog used when neither Postgres nor a question
// file is configured.
func sampleQuestions() []domain.QuestionDefinition {
	return []domain.QuestionDefinition{
		{
			ID:            "q1",
			Question:      "Which operator limits results to a single website?",
			Option1:       "site:",
			Option2:       "inurl:",
			Option3:       "related:",
			Option4:       "cache:",
			CorrectOption: "site:",
			Notes:         "site:nasa.gov apollo returns only pages from nasa.gov.",
		},
	}
}
