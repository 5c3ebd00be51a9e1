package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vsals/searchcoachdeploy/internal/batch"
	"github.com/vsals/searchcoachdeploy/internal/domain"
)

// DirectoryLookup resolves directory object ids to display names.
type DirectoryLookup interface {
	ResolveDisplayNames(ctx context.Context, callerID, authToken string, ids []string) (map[string]string, error)
}

// LeaderboardQuery selects the rows of one team and group.
type LeaderboardQuery struct {
	TeamID    string
	GroupID   string
	CallerID  string
	AuthToken string
}

// LeaderboardService folds response rows into per-member counts.
type LeaderboardService struct {
	responses   ResponseStore
	directory   DirectoryLookup
	batchSize   int
	concurrency int
	log         logrus.FieldLogger
}

func NewLeaderboardService(responses ResponseStore, directory DirectoryLookup, logger logrus.FieldLogger) *LeaderboardService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LeaderboardService{
		responses:   responses,
		directory:   directory,
		batchSize:   batch.DefaultSize,
		concurrency: 4,
		log:         logger,
	}
}

// GetLeaderboard returns one row per recipient, in the order recipients first
// appear in the store.
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, q LeaderboardQuery) ([]domain.LeaderboardRow, error) {
	if q.TeamID == "" {
		return nil, fmt.Errorf("leaderboard requires a team: %w", domain.ErrInvalidInput)
	}
	records, err := s.responses.Query(ctx, q.TeamID, q.GroupID)
	if err != nil {
		return nil, fmt.Errorf("query responses: %w", err)
	}

	rows := Aggregate(records)
	if len(rows) == 0 {
		return rows, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.UserID)
	}
	names, err := s.resolveNames(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if name, ok := names[rows[i].UserID]; ok && name != "" {
			rows[i].UserName = name
		} else {
			rows[i].UserName = rows[i].UserID
		}
	}
	return rows, nil
}

// Aggregate groups records by recipient and counts correct and attempted answers.
func Aggregate(records []domain.ResponseRecord) []domain.LeaderboardRow {
	rows := make([]domain.LeaderboardRow, 0)
	index := make(map[string]int)
	for _, rec := range records {
		i, ok := index[rec.RecipientID]
		if !ok {
			i = len(rows)
			index[rec.RecipientID] = i
			rows = append(rows, domain.LeaderboardRow{UserID: rec.RecipientID})
		}
		if rec.IsAttempted {
			rows[i].QuestionsAttempted++
		}
		if rec.IsCorrect {
			rows[i].RightAnswers++
		}
	}
	return rows
}

func (s *LeaderboardService) resolveNames(ctx context.Context, q LeaderboardQuery, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, chunk := range batch.Chunk(ids, s.batchSize) {
		chunk := chunk
		g.Go(func() error {
			resolved, err := s.directory.ResolveDisplayNames(gctx, q.CallerID, q.AuthToken, chunk)
			if err != nil {
				return err
			}
			mu.Lock()
			for id, name := range resolved {
				names[id] = name
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.log.WithField("team_id", q.TeamID).WithError(err).Error("resolve leaderboard display names")
		return nil, fmt.Errorf("resolve display names: %w", err)
	}
	return names, nil
}
