package queries

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const getQuizTheme = `-- name: GetQuizTheme :one
SELECT id, user_id, title, description, is_public, question_count, created_at
FROM quizz_theme
WHERE id = $1
`

func (q *Queries) GetQuizTheme(ctx context.Context, id pgtype.UUID) (QuizzTheme, error) {
	row := q.db.QueryRow(ctx, getQuizTheme, id)
	var i QuizzTheme
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Title,
		&i.Description,
		&i.IsPublic,
		&i.QuestionCount,
		&i.CreatedAt,
	)
	return i, err
}

const listQuizQuestions = `-- name: ListQuizQuestions :many
SELECT id, quizz_id, question_text, question_image_url, question_type, correct_answer,
       choice_a, choice_b, choice_c, choice_d, order_index
FROM quizz_question
WHERE quizz_id = $1
ORDER BY order_index ASC, id ASC
`

func (q *Queries) ListQuizQuestions(ctx context.Context, quizzID pgtype.UUID) ([]QuizzQuestion, error) {
	rows, err := q.db.Query(ctx, listQuizQuestions, quizzID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []QuizzQuestion
	for rows.Next() {
		var i QuizzQuestion
		if err := rows.Scan(
			&i.ID,
			&i.QuizzID,
			&i.QuestionText,
			&i.QuestionImageUrl,
			&i.QuestionType,
			&i.CorrectAnswer,
			&i.ChoiceA,
			&i.ChoiceB,
			&i.ChoiceC,
			&i.ChoiceD,
			&i.OrderIndex,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createQuizTheme = `-- name: CreateQuizTheme :one
INSERT INTO quizz_theme (id, user_id, title, description, is_public, question_count)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE
SET title = EXCLUDED.title,
    description = EXCLUDED.description,
    is_public = EXCLUDED.is_public,
    question_count = EXCLUDED.question_count
RETURNING id, user_id, title, description, is_public, question_count, created_at
`

type CreateQuizThemeParams struct {
	ID            pgtype.UUID `json:"id"`
	UserID        pgtype.UUID `json:"user_id"`
	Title         string      `json:"title"`
	Description   pgtype.Text `json:"description"`
	IsPublic      bool        `json:"is_public"`
	QuestionCount int32       `json:"question_count"`
}

func (q *Queries) CreateQuizTheme(ctx context.Context, arg CreateQuizThemeParams) (QuizzTheme, error) {
	row := q.db.QueryRow(ctx, createQuizTheme,
		arg.ID,
		arg.UserID,
		arg.Title,
		arg.Description,
		arg.IsPublic,
		arg.QuestionCount,
	)
	var i QuizzTheme
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Title,
		&i.Description,
		&i.IsPublic,
		&i.QuestionCount,
		&i.CreatedAt,
	)
	return i, err
}

const deleteQuizQuestions = `-- name: DeleteQuizQuestions :exec
DELETE FROM quizz_question
WHERE quizz_id = $1
`

func (q *Queries) DeleteQuizQuestions(ctx context.Context, quizzID pgtype.UUID) error {
	_, err := q.db.Exec(ctx, deleteQuizQuestions, quizzID)
	return err
}

const createQuizQuestion = `-- name: CreateQuizQuestion :exec
INSERT INTO quizz_question (
    quizz_id, question_text, question_image_url, question_type, correct_answer,
    choice_a, choice_b, choice_c, choice_d, order_index
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

type CreateQuizQuestionParams struct {
	QuizzID          pgtype.UUID `json:"quizz_id"`
	QuestionText     string      `json:"question_text"`
	QuestionImageUrl pgtype.Text `json:"question_image_url"`
	QuestionType     string      `json:"question_type"`
	CorrectAnswer    string      `json:"correct_answer"`
	ChoiceA          pgtype.Text `json:"choice_a"`
	ChoiceB          pgtype.Text `json:"choice_b"`
	ChoiceC          pgtype.Text `json:"choice_c"`
	ChoiceD          pgtype.Text `json:"choice_d"`
	OrderIndex       int32       `json:"order_index"`
}

func (q *Queries) CreateQuizQuestion(ctx context.Context, arg CreateQuizQuestionParams) error {
	_, err := q.db.Exec(ctx, createQuizQuestion,
		arg.QuizzID,
		arg.QuestionText,
		arg.QuestionImageUrl,
		arg.QuestionType,
		arg.CorrectAnswer,
		arg.ChoiceA,
		arg.ChoiceB,
		arg.ChoiceC,
		arg.ChoiceD,
		arg.OrderIndex,
	)
	return err
}
