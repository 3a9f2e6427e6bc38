package redis

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"bleepy-challenge-service/internal/app"
	"bleepy-challenge-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuestionCache keeps answer keys in Redis (hash per question) and falls back
// to the bank on a miss:
//
//	HSET question:{id} category {c} difficulty {d} correct_answer {a}
//
// Sampling is never cached.
type QuestionCache struct {
	client *redis.Client
	bank   app.QuestionBank
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionCache(client *redis.Client, bank app.QuestionBank, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		bank:   bank,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	key := questionKey(questionID)
	if q, ok := c.cached(ctx, key, questionID); ok {
		return q, nil
	}

	result, err, _ := c.sf.Do(questionID, func() (interface{}, error) {
		if q, ok := c.cached(ctx, key, questionID); ok {
			return q, nil
		}
		q, err := c.bank.GetQuestion(ctx, questionID)
		if err != nil {
			return domain.Question{}, err
		}

		pipe := c.client.Pipeline()
		pipe.HSet(ctx, key,
			"category", q.Category,
			"difficulty", string(q.Difficulty),
			"correct_answer", q.CorrectAnswer,
		)
		if ttl := c.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		// best-effort, the bank already answered
		_, _ = pipe.Exec(ctx)
		return q, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

func (c *QuestionCache) SampleQuestions(ctx context.Context, categories []string, difficulties []domain.Difficulty, count int) ([]string, error) {
	return c.bank.SampleQuestions(ctx, categories, difficulties, count)
}

func (c *QuestionCache) cached(ctx context.Context, key, questionID string) (domain.Question, bool) {
	fields, err := c.client.HGetAll(ctx, key).Result()
	if err != nil || fields["correct_answer"] == "" {
		return domain.Question{}, false
	}
	return domain.Question{
		ID:            questionID,
		Category:      fields["category"],
		Difficulty:    domain.Difficulty(fields["difficulty"]),
		CorrectAnswer: fields["correct_answer"],
	}, true
}

func questionKey(questionID string) string {
	return "question:" + questionID
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
