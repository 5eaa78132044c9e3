package mocks

import (
	"context"
	"sync"

	"trivia-round-service/internal/domain"
)

// RecordingPresenter captures everything rendered. Settlements are also
// pushed to Settled so tests can wait for timer-driven ones.
type RecordingPresenter struct {
	mu          sync.Mutex
	views       []domain.RoundView
	settlements []domain.Settlement
	exhausted   int
	Err         error

	Settled chan domain.Settlement
}

func NewRecordingPresenter() *RecordingPresenter {
	return &RecordingPresenter{Settled: make(chan domain.Settlement, 64)}
}

func (p *RecordingPresenter) RenderRoundView(_ context.Context, _ string, view domain.RoundView) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.views = append(p.views, view)
	return p.Err
}

func (p *RecordingPresenter) RenderSettlement(_ context.Context, _ string, settlement domain.Settlement) error {
	p.mu.Lock()
	p.settlements = append(p.settlements, settlement)
	p.mu.Unlock()
	select {
	case p.Settled <- settlement:
	default:
	}
	return p.Err
}

func (p *RecordingPresenter) RenderExhausted(_ context.Context, _, _ string, _ domain.Difficulty) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exhausted++
	return p.Err
}

func (p *RecordingPresenter) Views() []domain.RoundView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.RoundView(nil), p.views...)
}

func (p *RecordingPresenter) Settlements() []domain.Settlement {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Settlement(nil), p.settlements...)
}

func (p *RecordingPresenter) Exhausted() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exhausted
}
