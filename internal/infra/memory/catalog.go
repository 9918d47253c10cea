package memory

import (
	"context"
	"math/rand"
	"sort"
	"sync"

	"trivia-duel-service/internal/domain"
)

// Catalog is an in-memory users/categories/questions directory for demos
// and tests. Only verified questions are ever served.
type Catalog struct {
	mu         sync.RWMutex
	users      map[int64]bool
	categories map[int64]domain.Category
	questions  map[int64]catalogQuestion
	shuffle    func(n int, swap func(i, j int))
}

type catalogQuestion struct {
	question domain.Question
	correct  int64
	verified bool
}

func NewCatalog() *Catalog {
	return &Catalog{
		users:      make(map[int64]bool),
		categories: make(map[int64]domain.Category),
		questions:  make(map[int64]catalogQuestion),
		shuffle:    rand.Shuffle,
	}
}

func (c *Catalog) AddUsers(ids ...int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		c.users[id] = true
	}
}

func (c *Catalog) AddCategory(cat domain.Category) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.categories[cat.ID] = cat
}

// AddQuestion registers a verified question with its correct choice.
func (c *Catalog) AddQuestion(q domain.Question, correctChoiceID int64) {
	c.put(q, correctChoiceID, true)
}

// AddUnverifiedQuestion registers a question that is never sampled.
func (c *Catalog) AddUnverifiedQuestion(q domain.Question, correctChoiceID int64) {
	c.put(q, correctChoiceID, false)
}

func (c *Catalog) put(q domain.Question, correct int64, verified bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.questions[q.ID] = catalogQuestion{question: q, correct: correct, verified: verified}
}

func (c *Catalog) UserExists(_ context.Context, userID int64) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.users[userID], nil
}

func (c *Catalog) CategoryExists(_ context.Context, categoryID int64) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.categories[categoryID]
	return ok, nil
}

func (c *Catalog) RandomCategories(_ context.Context, n int) ([]domain.Category, error) {
	c.mu.RLock()
	all := make([]domain.Category, 0, len(c.categories))
	for _, cat := range c.categories {
		all = append(all, cat)
	}
	c.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	c.shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	if n < len(all) {
		all = all[:n]
	}
	return all, nil
}

func (c *Catalog) SampleQuestions(_ context.Context, categoryID int64, count int) ([]domain.Question, error) {
	c.mu.RLock()
	var pool []domain.Question
	for _, q := range c.questions {
		if q.verified && q.question.CategoryID == categoryID {
			pool = append(pool, q.question)
		}
	}
	c.mu.RUnlock()

	sort.Slice(pool, func(i, j int) bool { return pool[i].ID < pool[j].ID })
	c.shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if count < len(pool) {
		pool = pool[:count]
	}
	return pool, nil
}

// Questions returns the known questions among ids, in the order asked.
func (c *Catalog) Questions(_ context.Context, ids []int64) ([]domain.Question, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := c.questions[id]; ok {
			out = append(out, q.question)
		}
	}
	return out, nil
}

func (c *Catalog) LoadAnswerKey(_ context.Context, questionID int64) (domain.AnswerKey, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.questions[questionID]
	if !ok {
		return domain.AnswerKey{}, domain.Wrap(domain.ErrQuestionNotFound, "question %d", questionID)
	}
	key := domain.AnswerKey{QuestionID: questionID, CorrectChoiceID: q.correct}
	for _, ch := range q.question.Choices {
		key.ChoiceIDs = append(key.ChoiceIDs, ch.ID)
	}
	return key, nil
}
