package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vsals/searchcoachdeploy/internal/domain"
)

// TeamStore keeps bot installations in Redis so every instance can resolve a
// team's service URL.
// Installations are stored as: HSET team:{teamID} serviceUrl {url} installedAt {rfc3339}
type TeamStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTeamStore returns a store; a zero ttl keeps installations until removed.
func NewTeamStore(client *redis.Client, ttl time.Duration) *TeamStore {
	return &TeamStore{client: client, ttl: ttl}
}

func (s *TeamStore) Upsert(ctx context.Context, team domain.TeamInstallation) error {
	key := s.key(team.TeamID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key,
		"serviceUrl", team.ServiceURL,
		"installedAt", team.InstalledAt.UTC().Format(time.RFC3339Nano),
	)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store team %s: %w", team.TeamID, err)
	}
	return nil
}

func (s *TeamStore) Get(ctx context.Context, teamID string) (domain.TeamInstallation, error) {
	fields, err := s.client.HGetAll(ctx, s.key(teamID)).Result()
	if err != nil {
		return domain.TeamInstallation{}, fmt.Errorf("load team %s: %w", teamID, err)
	}
	if len(fields) == 0 {
		return domain.TeamInstallation{}, domain.ErrTeamNotFound
	}
	team := domain.TeamInstallation{TeamID: teamID, ServiceURL: fields["serviceUrl"]}
	if ts, err := time.Parse(time.RFC3339Nano, fields["installedAt"]); err == nil {
		team.InstalledAt = ts
	}
	return team, nil
}

func (s *TeamStore) Delete(ctx context.Context, teamID string) error {
	if err := s.client.Del(ctx, s.key(teamID)).Err(); err != nil {
		return fmt.Errorf("delete team %s: %w", teamID, err)
	}
	return nil
}

func (s *TeamStore) key(teamID string) string {
	return "team:" + teamID
}
