package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/Lownheur/prjt-web/internal/db/queries"
	"github.com/Lownheur/prjt-web/internal/quiz"
)

// questionTypeText is the stored name of free-text questions.
const questionTypeText = "text"

type quizStore interface {
	GetQuizTheme(ctx context.Context, id pgtype.UUID) (queries.QuizzTheme, error)
	ListQuizQuestions(ctx context.Context, quizzID pgtype.UUID) ([]queries.QuizzQuestion, error)
}

// QuizRepository reads quiz themes and their questions. It implements quiz.Loader.
type QuizRepository struct {
	store quizStore
}

var _ quiz.Loader = (*QuizRepository)(nil)

func NewQuizRepository(store quizStore) *QuizRepository {
	return &QuizRepository{store: store}
}

// LoadQuiz fetches quiz metadata, mapping a missing row to quiz.ErrNotFound.
func (r *QuizRepository) LoadQuiz(ctx context.Context, quizID uuid.UUID) (quiz.Quiz, error) {
	row, err := r.store.GetQuizTheme(ctx, pgUUID(quizID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return quiz.Quiz{}, quiz.ErrNotFound
		}
		return quiz.Quiz{}, fmt.Errorf("get quiz theme: %w", err)
	}

	return quiz.Quiz{
		ID:          uuid.UUID(row.ID.Bytes),
		OwnerID:     uuid.UUID(row.UserID.Bytes),
		Title:       row.Title,
		Description: row.Description.String,
		IsPublic:    row.IsPublic,
	}, nil
}

// LoadQuestions fetches a quiz's questions ordered by order_index.
func (r *QuizRepository) LoadQuestions(ctx context.Context, quizID uuid.UUID) ([]quiz.Question, error) {
	rows, err := r.store.ListQuizQuestions(ctx, pgUUID(quizID))
	if err != nil {
		return nil, fmt.Errorf("list quiz questions: %w", err)
	}

	questions := make([]quiz.Question, 0, len(rows))
	for _, row := range rows {
		questions = append(questions, toQuestion(row))
	}
	return questions, nil
}

func toQuestion(row queries.QuizzQuestion) quiz.Question {
	q := quiz.Question{
		ID:            uuid.UUID(row.ID.Bytes).String(),
		Text:          row.QuestionText,
		ImageURL:      row.QuestionImageUrl.String,
		Type:          quiz.TypeFreeText,
		CorrectAnswer: row.CorrectAnswer,
		Order:         int(row.OrderIndex),
	}
	if row.QuestionType == string(quiz.TypeMultipleChoice) {
		q.Type = quiz.TypeMultipleChoice
		for _, c := range []pgtype.Text{row.ChoiceA, row.ChoiceB, row.ChoiceC, row.ChoiceD} {
			if c.Valid && c.String != "" {
				q.Choices = append(q.Choices, c.String)
			}
		}
	}
	return q
}

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PackImporter writes a quiz pack to Postgres in a single transaction,
// replacing the questions of an existing quiz with the same id.
type PackImporter struct {
	db txBeginner
}

func NewPackImporter(db txBeginner) *PackImporter {
	return &PackImporter{db: db}
}

// Import stores pack as a quiz owned by ownerID.
func (p *PackImporter) Import(ctx context.Context, pack quiz.Pack, ownerID uuid.UUID) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := importPack(ctx, queries.New(tx), pack, ownerID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

type importStore interface {
	CreateQuizTheme(ctx context.Context, arg queries.CreateQuizThemeParams) (queries.QuizzTheme, error)
	DeleteQuizQuestions(ctx context.Context, quizzID pgtype.UUID) error
	CreateQuizQuestion(ctx context.Context, arg queries.CreateQuizQuestionParams) error
}

func importPack(ctx context.Context, store importStore, pack quiz.Pack, ownerID uuid.UUID) error {
	quizID := pgUUID(pack.Quiz.ID)
	if _, err := store.CreateQuizTheme(ctx, queries.CreateQuizThemeParams{
		ID:            quizID,
		UserID:        pgUUID(ownerID),
		Title:         pack.Quiz.Title,
		Description:   pgText(pack.Quiz.Description),
		IsPublic:      pack.Quiz.IsPublic,
		QuestionCount: int32(len(pack.Questions)),
	}); err != nil {
		return fmt.Errorf("create quiz theme: %w", err)
	}
	if err := store.DeleteQuizQuestions(ctx, quizID); err != nil {
		return fmt.Errorf("clear quiz questions: %w", err)
	}

	for _, q := range pack.Questions {
		params := queries.CreateQuizQuestionParams{
			QuizzID:          quizID,
			QuestionText:     q.Text,
			QuestionImageUrl: pgText(q.ImageURL),
			QuestionType:     questionTypeText,
			CorrectAnswer:    q.CorrectAnswer,
			OrderIndex:       int32(q.Order),
		}
		if q.Type == quiz.TypeMultipleChoice {
			params.QuestionType = string(quiz.TypeMultipleChoice)
			choices := make([]pgtype.Text, quiz.MaxChoices)
			for i := 0; i < len(q.Choices) && i < quiz.MaxChoices; i++ {
				choices[i] = pgText(q.Choices[i])
			}
			params.ChoiceA, params.ChoiceB, params.ChoiceC, params.ChoiceD = choices[0], choices[1], choices[2], choices[3]
		}
		if err := store.CreateQuizQuestion(ctx, params); err != nil {
			return fmt.Errorf("create question %q: %w", q.ID, err)
		}
	}
	return nil
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func pgText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
