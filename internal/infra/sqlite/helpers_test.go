package sqlite

import "trivia-round-service/internal/domain"

func progressWithScore(score int) domain.PlayerProgress {
	p := domain.NewPlayerProgress("u1")
	p.Score = score
	return p
}
