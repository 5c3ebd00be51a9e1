package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/vsals/searchcoachdeploy/internal/domain"
)

const catalogKey = "questions:catalog"

// QuestionLoader fetches the question catalog from a backing store.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.QuestionDefinition, error)
}

// QuestionRepository caches the catalog in Redis and falls back to a loader on a miss.
// Questions are stored as: HSET questions:catalog {questionID} {json}
type QuestionRepository struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuestionRepository(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionRepository) GetQuestion(ctx context.Context, questionID string) (domain.QuestionDefinition, error) {
	raw, err := r.client.HGet(ctx, catalogKey, questionID).Result()
	if err == nil {
		var q domain.QuestionDefinition
		if err := json.Unmarshal([]byte(raw), &q); err == nil {
			return q, nil
		}
	}

	// A field miss on a populated hash means the id is unknown.
	if errors.Is(err, redis.Nil) {
		if n, _ := r.client.Exists(ctx, catalogKey).Result(); n > 0 {
			return domain.QuestionDefinition{}, domain.ErrQuestionNotFound
		}
	}

	questions, err := r.fill(ctx)
	if err != nil {
		return domain.QuestionDefinition{}, err
	}
	for _, q := range questions {
		if q.ID == questionID {
			return q, nil
		}
	}
	return domain.QuestionDefinition{}, domain.ErrQuestionNotFound
}

func (r *QuestionRepository) ListQuestions(ctx context.Context) ([]domain.QuestionDefinition, error) {
	cached, err := r.client.HGetAll(ctx, catalogKey).Result()
	if err == nil && len(cached) > 0 {
		if questions, ok := decodeCatalog(cached); ok {
			return questions, nil
		}
	}
	return r.fill(ctx)
}

func (r *QuestionRepository) fill(ctx context.Context) ([]domain.QuestionDefinition, error) {
	result, err, _ := r.sf.Do(catalogKey, func() (interface{}, error) {
		// Re-check cache in case another caller filled it.
		cached, err := r.client.HGetAll(ctx, catalogKey).Result()
		if err == nil && len(cached) > 0 {
			if questions, ok := decodeCatalog(cached); ok {
				return questions, nil
			}
		}

		questions, err := r.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}

		pipe := r.client.TxPipeline()
		pipe.Del(ctx, catalogKey)
		for _, q := range questions {
			data, err := json.Marshal(q)
			if err != nil {
				return nil, fmt.Errorf("encode question %s: %w", q.ID, err)
			}
			pipe.HSet(ctx, catalogKey, q.ID, data)
		}
		if ttl := r.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, catalogKey, ttl)
		}
		// cache write is best effort; the loaded catalog is still served
		_, _ = pipe.Exec(ctx)

		return sortQuestions(questions), nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.QuestionDefinition), nil
}

func decodeCatalog(cached map[string]string) ([]domain.QuestionDefinition, bool) {
	questions := make([]domain.QuestionDefinition, 0, len(cached))
	for _, raw := range cached {
		var q domain.QuestionDefinition
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			return nil, false
		}
		questions = append(questions, q)
	}
	return sortQuestions(questions), true
}

// sortQuestions orders by id since hash iteration order is random.
func sortQuestions(questions []domain.QuestionDefinition) []domain.QuestionDefinition {
	out := make([]domain.QuestionDefinition, len(questions))
	copy(out, questions)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
