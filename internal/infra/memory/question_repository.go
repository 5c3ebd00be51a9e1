package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vsals/searchcoachdeploy/internal/domain"
)

// QuestionLoader fetches the question catalog from a backing store.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.QuestionDefinition, error)
}

// QuestionRepository caches the whole catalog with a TTL to avoid repeated loads.
type QuestionRepository struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu      sync.RWMutex
	catalog *cachedCatalog
}

type cachedCatalog struct {
	questions []domain.QuestionDefinition
	byID      map[string]domain.QuestionDefinition
	expiresAt time.Time
}

func NewQuestionRepository(loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionRepository) GetQuestion(ctx context.Context, questionID string) (domain.QuestionDefinition, error) {
	catalog, err := r.load(ctx)
	if err != nil {
		return domain.QuestionDefinition{}, err
	}
	q, ok := catalog.byID[questionID]
	if !ok {
		return domain.QuestionDefinition{}, domain.ErrQuestionNotFound
	}
	return q, nil
}

func (r *QuestionRepository) ListQuestions(ctx context.Context) ([]domain.QuestionDefinition, error) {
	catalog, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.QuestionDefinition, len(catalog.questions))
	copy(out, catalog.questions)
	return out, nil
}

func (r *QuestionRepository) load(ctx context.Context) (*cachedCatalog, error) {
	if c := r.fresh(); c != nil {
		return c, nil
	}

	result, err, _ := r.sf.Do("catalog", func() (interface{}, error) {
		if c := r.fresh(); c != nil {
			return c, nil
		}

		questions, err := r.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}
		c := &cachedCatalog{
			questions: questions,
			byID:      make(map[string]domain.QuestionDefinition, len(questions)),
			expiresAt: r.clock().Add(r.ttlWithJitter()),
		}
		for _, q := range questions {
			c.byID[q.ID] = q
		}

		r.mu.Lock()
		r.catalog = c
		r.mu.Unlock()
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*cachedCatalog), nil
}

func (r *QuestionRepository) fresh() *cachedCatalog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.catalog != nil && r.catalog.expiresAt.After(r.clock()) {
		return r.catalog
	}
	return nil
}

// Invalidate drops the cached catalog.
func (r *QuestionRepository) Invalidate() {
	r.mu.Lock()
	r.catalog = nil
	r.mu.Unlock()
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader serves a fixed catalog (useful for tests/demos).
type StaticQuestionLoader struct {
	questions []domain.QuestionDefinition
}

func NewStaticQuestionLoader(questions []domain.QuestionDefinition) *StaticQuestionLoader {
	return &StaticQuestionLoader{questions: questions}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context) ([]domain.QuestionDefinition, error) {
	out := make([]domain.QuestionDefinition, len(l.questions))
	copy(out, l.questions)
	return out, nil
}
