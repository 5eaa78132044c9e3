package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// Difficulty is the question tier; it also selects the base reward.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// Difficulties lists the supported tiers in menu order.
var Difficulties = []Difficulty{Easy, Medium, Hard}

// ParseDifficulty normalises a raw difficulty label.
func ParseDifficulty(raw string) (Difficulty, bool) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(raw)))
	switch d {
	case Easy, Medium, Hard:
		return d, true
	}
	return "", false
}

// Category is a question topic as shown in the menu.
type Category struct {
	Slug  string `json:"slug" yaml:"slug"`
	Title string `json:"title" yaml:"title"`
}

// QuestionEntry is the loosely typed source record for a question, before validation.
type QuestionEntry struct {
	Category   string   `json:"category" yaml:"category"`
	Difficulty string   `json:"difficulty" yaml:"difficulty"`
	Prompt     string   `json:"prompt" yaml:"prompt"`
	Options    []string `json:"options" yaml:"options"`
	Answer     string   `json:"answer" yaml:"answer"`
}

// Question is an immutable, validated catalog entry.
type Question struct {
	ID         string
	Category   string
	Difficulty Difficulty
	Prompt     string
	Options    []string
	Answer     string
}

// QuestionID derives the stable content identity of a question.
func QuestionID(category string, difficulty Difficulty, prompt, answer string) string {
	sum := sha1.Sum([]byte(category + "|" + string(difficulty) + "|" + prompt + "|" + answer))
	return hex.EncodeToString(sum[:])
}

// HasOption reports whether opt is one of the question's options.
func (q Question) HasOption(opt string) bool {
	for _, o := range q.Options {
		if o == opt {
			return true
		}
	}
	return false
}

// Pick is the pool a user last started a round in.
type Pick struct {
	Category   string
	Difficulty Difficulty
}

// IsZero reports whether no pool was ever picked.
func (p Pick) IsZero() bool {
	return p.Category == ""
}

// PlayerProgress is the durable per-user record. Used holds the ids of settled
// questions; LastPick lets "next question" continue after a restart.
type PlayerProgress struct {
	UserID   string
	Score    int
	Streak   int
	Used     map[string]struct{}
	LastPick Pick
}

// NewPlayerProgress returns a zeroed record for userID.
func NewPlayerProgress(userID string) PlayerProgress {
	return PlayerProgress{UserID: userID, Used: make(map[string]struct{})}
}

// IsUsed reports whether questionID was already settled for this player.
func (p PlayerProgress) IsUsed(questionID string) bool {
	_, ok := p.Used[questionID]
	return ok
}

// RoundView is what a display surface needs to draw an active round.
type RoundView struct {
	RoundID          string     `json:"roundId"`
	Category         string     `json:"category"`
	Difficulty       Difficulty `json:"difficulty"`
	Prompt           string     `json:"prompt"`
	Options          []string   `json:"options"`
	SecondsRemaining int        `json:"secondsRemaining"`
	HintApplied      bool       `json:"hintApplied"`
}

// Settlement is the outcome of a resolved round.
type Settlement struct {
	RoundID           string     `json:"roundId"`
	QuestionID        string     `json:"questionId"`
	Category          string     `json:"category"`
	Difficulty        Difficulty `json:"difficulty"`
	Chosen            string     `json:"chosen,omitempty"`
	TimedOut          bool       `json:"timedOut"`
	Correct           bool       `json:"correct"`
	PointsDelta       int        `json:"pointsDelta"`
	NewScore          int        `json:"newScore"`
	NewStreak         int        `json:"newStreak"`
	ComboBonusApplied bool       `json:"comboBonusApplied"`
	CorrectOption     string     `json:"correctOption"`
}

// ProgressView summarises a player's standing for menus.
type ProgressView struct {
	UserID    string `json:"userId"`
	Score     int    `json:"score"`
	Streak    int    `json:"streak"`
	UsedCount int    `json:"usedCount"`
}

// Signal explains why a request was a no-op. The zero value means it was applied.
type Signal string

const (
	SignalNone            Signal = ""
	SignalNoActiveRound   Signal = "no_active_round"
	SignalRoundInProgress Signal = "round_in_progress"
	SignalHintUsed        Signal = "hint_already_used"
	SignalInvalidOption   Signal = "invalid_option"
	SignalPoolExhausted   Signal = "pool_exhausted"
	SignalNoPreviousPick  Signal = "no_previous_pick"
)

// StartOutcome is returned by round starts.
type StartOutcome struct {
	Signal Signal
	Round  RoundView
}

// HintOutcome is returned by hint requests.
type HintOutcome struct {
	Signal   Signal
	Round    RoundView
	NewScore int
}

// AnswerOutcome is returned by answer submissions.
type AnswerOutcome struct {
	Signal     Signal
	Settlement Settlement
}
