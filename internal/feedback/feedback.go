// Package feedback records answered queries and user verdicts. Recording is
// best-effort: the answer was already delivered, so a logging failure is
// logged and swallowed rather than surfaced to the caller.
package feedback

import (
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/pantheonai/enginuity/internal/storage"
)

// Judgment values stored with a feedback row.
const (
	JudgmentPositive = "positive"
	JudgmentNegative = "negative"
	JudgmentNone     = "none"
)

// ParseJudgment maps a user's reply to a stored judgment. Anything
// unrecognized counts as no judgment.
func ParseJudgment(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", JudgmentPositive:
		return JudgmentPositive
	case "n", "no", JudgmentNegative:
		return JudgmentNegative
	default:
		return JudgmentNone
	}
}

// Recorder persists query/answer exchanges.
type Recorder struct {
	store  *storage.Store
	logger *slog.Logger
}

func NewRecorder(store *storage.Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, logger: logger}
}

// Record saves one exchange and returns its id so the caller can attach a
// judgment later. An empty id means the save failed; the failure is already
// logged and the caller should carry on.
func (r *Recorder) Record(query, answer, tier string, promptTokens int) string {
	id := uuid.NewString()
	err := r.store.SaveFeedback(storage.Feedback{
		ID:           id,
		QueryText:    query,
		AnswerText:   answer,
		UserFeedback: JudgmentNone,
		PromptTokens: promptTokens,
		ModelTier:    tier,
	})
	if err != nil {
		r.logger.Warn("saving feedback failed", "error", err)
		return ""
	}
	return id
}

// Judge attaches the user's verdict to an earlier exchange. Best-effort,
// like Record.
func (r *Recorder) Judge(id, judgment string) {
	if id == "" || judgment == JudgmentNone {
		return
	}
	if err := r.store.UpdateFeedbackJudgment(id, judgment); err != nil {
		r.logger.Warn("updating feedback judgment failed", "id", id, "error", err)
	}
}
