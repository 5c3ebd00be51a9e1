package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vsals/searchcoachdeploy/internal/app"
	"github.com/vsals/searchcoachdeploy/internal/config"
	"github.com/vsals/searchcoachdeploy/internal/integrations/botconnector"
	"github.com/vsals/searchcoachdeploy/internal/integrations/graph"
	"github.com/vsals/searchcoachdeploy/internal/search"
	transport "github.com/vsals/searchcoachdeploy/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the bot and API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	if err := applySecrets(ctx, &cfg, logger); err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	st, err := buildStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	tokens, err := botconnector.NewTokenSource(cfg.Bot.AppID, cfg.Bot.AppPassword, cfg.Bot.TokenURL, nil)
	if err != nil {
		return err
	}
	connector, err := botconnector.NewClient(cfg.Bot.AppID, tokens, botconnector.WithPageSize(cfg.Bot.MembersPerPage))
	if err != nil {
		return err
	}

	var graphOpts []graph.Option
	if cfg.Graph.BaseURL != "" {
		graphOpts = append(graphOpts, graph.WithBaseURL(cfg.Graph.BaseURL))
	}
	directory := graph.NewClient(graphOpts...)

	searcher, err := search.NewClient(search.Settings{
		APIURL:        cfg.Bing.APIURL,
		APIKey:        cfg.Bing.APIKey,
		SafeSearch:    cfg.Bing.SafeSearch,
		DefaultMarket: cfg.Bing.DefaultMarket,
	})
	if err != nil {
		return err
	}
	if cfg.Bing.APIKey == "" {
		logger.Warn("bing api key is not configured, search requests will fail")
	}

	auth, err := transport.NewAuthenticator(cfg.Auth.SigningKey, cfg.Auth.Issuer, logger)
	if err != nil {
		return err
	}

	queue := app.NewTaskQueue(cfg.Bot.TaskQueueSize, logger.WithField("component", "task_queue"))
	feed := app.NewFeed()

	notifications := app.NewNotificationService(
		botconnector.NewRoster(connector, st.teams),
		botconnector.NewDispatcher(connector, st.teams, cfg.Bot.TenantID),
		st.responses,
		retryPolicy(cfg),
		logger.WithField("component", "notifications"),
	)
	answers := app.NewAnswerService(st.responses, st.questions, feed, logger.WithField("component", "answers"))
	leaderboards := app.NewLeaderboardService(st.responses, directory, logger.WithField("component", "leaderboard"))
	tabs := app.NewTabService(st.tabs)

	limiter := transport.NewRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst)
	limiterCtx, stopLimiter := context.WithCancel(ctx)
	defer stopLimiter()
	go limiter.Run(limiterCtx, time.Hour, 2*time.Hour)

	handler := transport.NewRouter(transport.RouterConfig{
		Bot: transport.NewBotHandler(transport.BotDeps{
			Teams:       st.teams,
			Users:       st.users,
			Questions:   st.questions,
			Broadcaster: notifications,
			Executor:    queue,
			Answers:     answers,
			Cards:       connector,
			ManifestID:  cfg.Bot.ManifestID,
			Logger:      logger.WithField("component", "bot"),
		}),
		API:            transport.NewAPIHandler(leaderboards, tabs, searcher, logger.WithField("component", "api")),
		WS:             transport.NewWSHandler(feed, tabs, logger.WithField("component", "ws")),
		Auth:           auth,
		Members:        directory,
		RateLimit:      limiter,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler,
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 15*time.Second),
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"port":    finalPort,
			"storage": cfg.Storage.Driver,
		}).Info("starting search coach")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server...")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.TTLDuration(cfg.Server.ShutdownTimeout, 5*time.Second))
	defer cancel()
	err = server.Shutdown(shutdownCtx)
	// pending deliveries and their row writes finish before the stores close
	queue.Close()
	return err
}
