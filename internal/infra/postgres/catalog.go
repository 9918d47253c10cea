package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"trivia-duel-service/internal/domain"
)

// Catalog reads users, categories and the verified question bank that other
// services own. It never writes.
type Catalog struct {
	pool *pgxpool.Pool
}

func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

func (c *Catalog) UserExists(ctx context.Context, userID int64) (bool, error) {
	var ok bool
	err := c.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id=$1)`, userID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("lookup user: %w", err)
	}
	return ok, nil
}

func (c *Catalog) CategoryExists(ctx context.Context, categoryID int64) (bool, error) {
	var ok bool
	err := c.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM categories WHERE id=$1)`, categoryID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("lookup category: %w", err)
	}
	return ok, nil
}

func (c *Catalog) RandomCategories(ctx context.Context, n int) ([]domain.Category, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT id, name, COALESCE(description, '') FROM categories ORDER BY RANDOM() LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("random categories: %w", err)
	}
	defer rows.Close()

	var out []domain.Category
	for rows.Next() {
		var cat domain.Category
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.Description); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, cat)
	}
	return out, rows.Err()
}

// SampleQuestions picks up to count verified questions of a category at
// random, choices included.
func (c *Catalog) SampleQuestions(ctx context.Context, categoryID int64, count int) ([]domain.Question, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT id, category_id, text FROM questions
		 WHERE category_id=$1 AND is_verified = TRUE
		 ORDER BY RANDOM() LIMIT $2`, categoryID, count)
	if err != nil {
		return nil, fmt.Errorf("sample questions: %w", err)
	}
	questions, err := scanQuestions(rows)
	if err != nil {
		return nil, err
	}
	return questions, c.attachChoices(ctx, questions)
}

// Questions returns the known questions among ids in the order asked.
func (c *Catalog) Questions(ctx context.Context, ids []int64) ([]domain.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := c.pool.Query(ctx, `SELECT id, category_id, text FROM questions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	found, err := scanQuestions(rows)
	if err != nil {
		return nil, err
	}
	if err := c.attachChoices(ctx, found); err != nil {
		return nil, err
	}

	byID := make(map[int64]domain.Question, len(found))
	for _, q := range found {
		byID[q.ID] = q
	}
	out := make([]domain.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func scanQuestions(rows pgx.Rows) ([]domain.Question, error) {
	defer rows.Close()
	var out []domain.Question
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.ID, &q.CategoryID, &q.Text); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (c *Catalog) attachChoices(ctx context.Context, questions []domain.Question) error {
	if len(questions) == 0 {
		return nil
	}
	ids := make([]int64, len(questions))
	index := make(map[int64]int, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
		index[q.ID] = i
	}

	rows, err := c.pool.Query(ctx,
		`SELECT question_id, id, choice_text FROM question_choices
		 WHERE question_id = ANY($1) ORDER BY question_id, position, id`, ids)
	if err != nil {
		return fmt.Errorf("load choices: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var qid int64
		var ch domain.Choice
		if err := rows.Scan(&qid, &ch.ID, &ch.Text); err != nil {
			return fmt.Errorf("scan choice: %w", err)
		}
		i := index[qid]
		questions[i].Choices = append(questions[i].Choices, ch)
	}
	return rows.Err()
}

// LoadAnswerKey reads a question's choices with their correctness.
func (c *Catalog) LoadAnswerKey(ctx context.Context, questionID int64) (domain.AnswerKey, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT id, is_correct FROM question_choices WHERE question_id=$1 ORDER BY position, id`, questionID)
	if err != nil {
		return domain.AnswerKey{}, fmt.Errorf("load answer key: %w", err)
	}
	defer rows.Close()

	key := domain.AnswerKey{QuestionID: questionID}
	for rows.Next() {
		var id int64
		var correct bool
		if err := rows.Scan(&id, &correct); err != nil {
			return domain.AnswerKey{}, fmt.Errorf("scan answer key: %w", err)
		}
		key.ChoiceIDs = append(key.ChoiceIDs, id)
		if correct {
			key.CorrectChoiceID = id
		}
	}
	if err := rows.Err(); err != nil {
		return domain.AnswerKey{}, err
	}
	if len(key.ChoiceIDs) == 0 {
		return domain.AnswerKey{}, domain.Wrap(domain.ErrQuestionNotFound, "question %d", questionID)
	}
	return key, nil
}
