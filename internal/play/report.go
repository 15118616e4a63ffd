package play

import (
	"time"

	"github.com/Lownheur/prjt-web/internal/play/scoring"
)

func (e *Engine) buildReportLocked(reason EndReason, finishedAt time.Time) ScoreReport {
	total := len(e.questions)
	report := ScoreReport{
		SessionID:      e.sessionID,
		QuizID:         e.quizID,
		PlayerID:       e.playerID,
		Mode:           e.cfg.Mode,
		TotalQuestions: total,
		AnsweredCount:  len(e.answers),
		Breakdown:      make([]BreakdownItem, total),
		StartedAt:      e.startedAt,
		FinishedAt:     finishedAt,
		EndReason:      reason,
		Abandoned:      reason == EndAbandoned,
	}

	for i, q := range e.questions {
		item := BreakdownItem{Question: q.Clone()}
		if rec, ok := e.answers[q.ID]; ok {
			r := rec.clone()
			item.Answer = &r
			if rec.IsCorrect {
				report.CorrectCount++
			}
		}
		report.Breakdown[i] = item
	}
	report.Percentage = scoring.Percentage(report.CorrectCount, total)

	outcomes := make([]scoring.Outcome, 0, len(e.order))
	for _, id := range e.order {
		outcomes = append(outcomes, e.outcome(e.answers[id]))
	}
	report.Points, report.MaxStreak = e.scorer.ComputeTotal(outcomes)

	if !e.startedAt.IsZero() && finishedAt.After(e.startedAt) {
		report.ElapsedSeconds = int(finishedAt.Sub(e.startedAt) / time.Second)
	}
	return report
}

// outcome feeds the time bonus only when the question had its own limit.
func (e *Engine) outcome(rec AnswerRecord) scoring.Outcome {
	o := scoring.Outcome{IsCorrect: rec.IsCorrect}
	if e.cfg.Mode == ModePerQuestion && rec.TimeSpentSeconds != nil {
		limit := e.cfg.PerQuestionSeconds
		o.TimeLimit = time.Duration(limit) * time.Second
		o.TimeRemaining = time.Duration(limit-*rec.TimeSpentSeconds) * time.Second
	}
	return o
}

func (r AnswerRecord) clone() AnswerRecord {
	if r.TimeSpentSeconds != nil {
		spent := *r.TimeSpentSeconds
		r.TimeSpentSeconds = &spent
	}
	return r
}

func (r ScoreReport) clone() ScoreReport {
	breakdown := make([]BreakdownItem, len(r.Breakdown))
	for i, item := range r.Breakdown {
		item.Question = item.Question.Clone()
		if item.Answer != nil {
			a := item.Answer.clone()
			item.Answer = &a
		}
		breakdown[i] = item
	}
	r.Breakdown = breakdown
	return r
}
