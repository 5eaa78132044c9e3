package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"trivia-round-service/internal/domain"
	"trivia-round-service/internal/logger"
)

// SessionStore persists per-user progress. Implementations must be safe for
// concurrent use across different users; the service serialises calls for a
// single user.
type SessionStore interface {
	// LoadProgress returns the user's record, creating a zeroed one on first access.
	LoadProgress(ctx context.Context, userID string) (domain.PlayerProgress, error)
	// SaveProgress writes score and streak only. The used set grows through
	// CommitSettlement.
	SaveProgress(ctx context.Context, userID string, progress domain.PlayerProgress) error
	IsUsed(ctx context.Context, userID, questionID string) (bool, error)
	// CommitSettlement writes score and streak and marks questionID used as one
	// unit: either both land or neither does.
	CommitSettlement(ctx context.Context, userID, questionID string, progress domain.PlayerProgress) error
	// SaveLastPick remembers the pool the user last started a round in.
	SaveLastPick(ctx context.Context, userID string, pick domain.Pick) error
}

// Presenter delivers round state to a display surface. Calls are made while the
// user's round lock is held, so implementations must not block; failures are
// logged and otherwise ignored.
type Presenter interface {
	RenderRoundView(ctx context.Context, userID string, view domain.RoundView) error
	RenderSettlement(ctx context.Context, userID string, settlement domain.Settlement) error
	RenderExhausted(ctx context.Context, userID, category string, difficulty domain.Difficulty) error
}

// QuestionSource draws unused questions from a pool.
type QuestionSource interface {
	Draw(category string, difficulty domain.Difficulty, excluded map[string]struct{}) (domain.Question, bool)
}

// Option configures a RoundService.
type Option func(*RoundService)

// WithLogger sets the service logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *RoundService) {
		s.log = l
	}
}

// WithTickInterval changes the countdown tick period. Rounds still last
// RoundSeconds ticks; tests use a short interval to run them quickly.
func WithTickInterval(d time.Duration) Option {
	return func(s *RoundService) {
		if d > 0 {
			s.tick = d
		}
	}
}

// WithSeed makes option shuffles and hint picks deterministic.
func WithSeed(seed int64) Option {
	return func(s *RoundService) {
		s.rnd = rand.New(rand.NewSource(seed))
	}
}

type roundStatus int

const (
	statusActive roundStatus = iota
	statusResolved
)

// round is the live state of one question for one user. Guarded by player.mu.
type round struct {
	id          string
	userID      string
	question    domain.Question
	order       []string
	enabled     map[string]bool
	hintApplied bool
	remaining   int
	status      roundStatus
	countdown   *countdown
}

func (r *round) view() domain.RoundView {
	opts := make([]string, 0, len(r.order))
	for _, o := range r.order {
		if r.enabled[o] {
			opts = append(opts, o)
		}
	}
	return domain.RoundView{
		RoundID:          r.id,
		Category:         r.question.Category,
		Difficulty:       r.question.Difficulty,
		Prompt:           r.question.Prompt,
		Options:          opts,
		SecondsRemaining: r.remaining,
		HintApplied:      r.hintApplied,
	}
}

// player holds one user's round slot. mu serialises every transition for the
// user, which makes settlement single-winner. refs counts in-flight calls plus
// a running countdown and is guarded by RoundService.mu; an entry with no refs
// has no round and is dropped.
type player struct {
	mu    sync.Mutex
	round *round
	refs  int
}

// RoundService runs the round lifecycle for every user.
type RoundService struct {
	questions QuestionSource
	store     SessionStore
	presenter Presenter
	log       *logger.Logger
	tick      time.Duration

	rndMu sync.Mutex
	rnd   *rand.Rand

	baseCtx  context.Context
	shutdown context.CancelFunc
	timers   sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	players map[string]*player
}

func NewRoundService(questions QuestionSource, store SessionStore, presenter Presenter, opts ...Option) *RoundService {
	s := &RoundService{
		questions: questions,
		store:     store,
		presenter: presenter,
		log:       logger.Default(),
		tick:      time.Second,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		players:   make(map[string]*player),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithPrefix("rounds")
	s.baseCtx, s.shutdown = context.WithCancel(logger.NewContext(context.Background(), s.log))
	return s
}

// Close stops every running countdown and waits for them to exit. Active
// rounds are left unsettled; later starts fail with domain.ErrClosed.
func (s *RoundService) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.shutdown()
	s.timers.Wait()
}

// acquire returns the user's slot, pinning it until release.
func (s *RoundService) acquire(userID string) *player {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[userID]
	if !ok {
		p = &player{}
		s.players[userID] = p
	}
	p.refs++
	return p
}

func (s *RoundService) release(userID string, p *player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.refs--
	if p.refs == 0 && s.players[userID] == p {
		delete(s.players, userID)
	}
}

// trackCountdown pins p for the lifetime of a new countdown. Called with p.mu
// held; s.mu is never held while taking a player lock.
func (s *RoundService) trackCountdown(p *player) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	p.refs++
	s.timers.Add(1)
	return true
}

// Start opens a round for (category, difficulty). It is rejected while the user
// already has an active round, and reports SignalPoolExhausted when no unused
// question remains in the pool.
func (s *RoundService) Start(ctx context.Context, userID, category string, difficulty domain.Difficulty) (domain.StartOutcome, error) {
	log := s.log.WithFields(map[string]any{"user": userID, "category": category, "difficulty": difficulty})
	p := s.acquire(userID)
	defer s.release(userID, p)
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.round != nil {
		log.Debug("start rejected: round %s in progress", p.round.id)
		return domain.StartOutcome{Signal: domain.SignalRoundInProgress, Round: p.round.view()}, nil
	}

	progress, err := s.store.LoadProgress(ctx, userID)
	if err != nil {
		log.Error("load progress: %v", err)
		return domain.StartOutcome{}, fmt.Errorf("%w: load progress: %v", domain.ErrStore, err)
	}

	pick := domain.Pick{Category: category, Difficulty: difficulty}
	if progress.LastPick != pick {
		// only "next question" after a restart depends on this
		if err := s.store.SaveLastPick(ctx, userID, pick); err != nil {
			log.Warn("save last pick: %v", err)
		}
	}

	q, ok, err := s.drawUnused(ctx, userID, category, difficulty, progress.Used)
	if err != nil {
		log.Error("check used question: %v", err)
		return domain.StartOutcome{}, err
	}
	if !ok {
		log.Info("pool exhausted")
		if err := s.presenter.RenderExhausted(ctx, userID, category, difficulty); err != nil {
			log.Warn("render exhausted: %v", err)
		}
		return domain.StartOutcome{Signal: domain.SignalPoolExhausted}, nil
	}

	r := &round{
		id:        uuid.NewString(),
		userID:    userID,
		question:  q,
		order:     s.shuffled(q.Options),
		enabled:   make(map[string]bool, len(q.Options)),
		remaining: RoundSeconds,
		status:    statusActive,
	}
	for _, o := range q.Options {
		r.enabled[o] = true
	}
	if !s.trackCountdown(p) {
		return domain.StartOutcome{}, domain.ErrClosed
	}
	p.round = r
	r.countdown = startCountdown(s.baseCtx, s.tick, func(tctx context.Context) bool {
		return s.onTick(tctx, p, r)
	}, func() {
		s.release(userID, p)
		s.timers.Done()
	})
	log.Info("round %s started with question %s", r.id, q.ID)

	view := r.view()
	if err := s.presenter.RenderRoundView(ctx, userID, view); err != nil {
		log.Warn("render round: %v", err)
	}
	return domain.StartOutcome{Round: view}, nil
}

// Next starts a round in the pool the user last picked. The pick is read from
// the store, so it survives restarts.
func (s *RoundService) Next(ctx context.Context, userID string) (domain.StartOutcome, error) {
	progress, err := s.store.LoadProgress(ctx, userID)
	if err != nil {
		return domain.StartOutcome{}, fmt.Errorf("%w: load progress: %v", domain.ErrStore, err)
	}
	if progress.LastPick.IsZero() {
		return domain.StartOutcome{Signal: domain.SignalNoPreviousPick}, nil
	}
	return s.Start(ctx, userID, progress.LastPick.Category, progress.LastPick.Difficulty)
}

// drawUnused draws from the catalog and double-checks the store, since another
// instance sharing the store may have settled the drawn question since the
// progress snapshot was taken.
func (s *RoundService) drawUnused(ctx context.Context, userID, category string, difficulty domain.Difficulty, used map[string]struct{}) (domain.Question, bool, error) {
	excluded := make(map[string]struct{}, len(used))
	for id := range used {
		excluded[id] = struct{}{}
	}
	for {
		q, ok := s.questions.Draw(category, difficulty, excluded)
		if !ok {
			return domain.Question{}, false, nil
		}
		isUsed, err := s.store.IsUsed(ctx, userID, q.ID)
		if err != nil {
			return domain.Question{}, false, fmt.Errorf("%w: is used: %v", domain.ErrStore, err)
		}
		if !isUsed {
			return q, true, nil
		}
		excluded[q.ID] = struct{}{}
	}
}

// ApplyHint charges HintPenalty immediately and narrows the enabled options to
// the correct one plus one random incorrect one, keeping display order.
func (s *RoundService) ApplyHint(ctx context.Context, userID string) (domain.HintOutcome, error) {
	log := s.log.WithField("user", userID)
	p := s.acquire(userID)
	defer s.release(userID, p)
	p.mu.Lock()
	defer p.mu.Unlock()

	r := p.round
	if r == nil {
		return domain.HintOutcome{Signal: domain.SignalNoActiveRound}, nil
	}
	if r.hintApplied {
		return domain.HintOutcome{Signal: domain.SignalHintUsed, Round: r.view()}, nil
	}

	progress, err := s.store.LoadProgress(ctx, userID)
	if err != nil {
		log.Error("load progress: %v", err)
		return domain.HintOutcome{}, fmt.Errorf("%w: load progress: %v", domain.ErrStore, err)
	}
	progress.Score -= HintPenalty
	if err := s.store.SaveProgress(ctx, userID, progress); err != nil {
		log.Error("save hint penalty: %v", err)
		return domain.HintOutcome{}, fmt.Errorf("%w: save progress: %v", domain.ErrStore, err)
	}

	wrong := make([]string, 0, len(r.order)-1)
	for _, o := range r.order {
		if o != r.question.Answer {
			wrong = append(wrong, o)
		}
	}
	keep := wrong[s.intn(len(wrong))]
	for _, o := range r.order {
		r.enabled[o] = o == r.question.Answer || o == keep
	}
	r.hintApplied = true
	log.Info("hint applied to round %s, score now %d", r.id, progress.Score)

	view := r.view()
	if err := s.presenter.RenderRoundView(ctx, userID, view); err != nil {
		log.Warn("render hinted round: %v", err)
	}
	return domain.HintOutcome{Round: view, NewScore: progress.Score}, nil
}

// SubmitAnswer settles the active round with the chosen option. Options that are
// unknown or hidden by the hint are rejected and leave the round untouched.
func (s *RoundService) SubmitAnswer(ctx context.Context, userID, option string) (domain.AnswerOutcome, error) {
	log := s.log.WithField("user", userID)
	p := s.acquire(userID)
	defer s.release(userID, p)
	p.mu.Lock()
	defer p.mu.Unlock()

	r := p.round
	if r == nil {
		return domain.AnswerOutcome{Signal: domain.SignalNoActiveRound}, nil
	}
	if !r.enabled[option] {
		log.Debug("rejected option %q for round %s", option, r.id)
		return domain.AnswerOutcome{Signal: domain.SignalInvalidOption}, nil
	}

	settlement, err := s.settleLocked(ctx, p, r, option, false)
	if err != nil {
		log.Error("settle round %s: %v", r.id, err)
		return domain.AnswerOutcome{}, err
	}
	return domain.AnswerOutcome{Settlement: settlement}, nil
}

// Leave detaches the active round without settling it, as when the user goes
// back to the menu. It reports whether a round was abandoned.
func (s *RoundService) Leave(_ context.Context, userID string) bool {
	p := s.acquire(userID)
	defer s.release(userID, p)
	p.mu.Lock()
	defer p.mu.Unlock()

	r := p.round
	if r == nil {
		return false
	}
	r.countdown.stop()
	p.round = nil
	s.log.WithField("user", userID).Info("round %s abandoned", r.id)
	return true
}

// Progress reports the user's standing.
func (s *RoundService) Progress(ctx context.Context, userID string) (domain.ProgressView, error) {
	progress, err := s.store.LoadProgress(ctx, userID)
	if err != nil {
		return domain.ProgressView{}, fmt.Errorf("%w: load progress: %v", domain.ErrStore, err)
	}
	return domain.ProgressView{
		UserID:    userID,
		Score:     progress.Score,
		Streak:    progress.Streak,
		UsedCount: len(progress.Used),
	}, nil
}

// ActiveRound returns the user's current round view, if any.
func (s *RoundService) ActiveRound(userID string) (domain.RoundView, bool) {
	p := s.acquire(userID)
	defer s.release(userID, p)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.round == nil {
		return domain.RoundView{}, false
	}
	return p.round.view(), true
}

// onTick runs on the countdown goroutine. It returns false once the countdown
// should end. A timeout whose settlement fails to persist keeps the round
// active and is retried on the next tick.
func (s *RoundService) onTick(ctx context.Context, p *player, r *round) bool {
	log := logger.FromContext(ctx).WithField("user", r.userID)
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.round != r || r.status != statusActive {
		return false
	}
	if r.remaining > 0 {
		r.remaining--
	}
	if r.remaining > 0 {
		if err := s.presenter.RenderRoundView(ctx, r.userID, r.view()); err != nil {
			log.Warn("render tick: %v", err)
		}
		return true
	}

	if _, err := s.settleLocked(ctx, p, r, "", true); err != nil {
		log.Error("timeout settlement of round %s failed, retrying: %v", r.id, err)
		return true
	}
	return false
}

// settleLocked is the single settlement path for answers and timeouts. The
// round only leaves ACTIVE once the store commits the settlement. Caller holds p.mu.
func (s *RoundService) settleLocked(ctx context.Context, p *player, r *round, chosen string, timedOut bool) (domain.Settlement, error) {
	progress, err := s.store.LoadProgress(ctx, r.userID)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("%w: load progress: %v", domain.ErrStore, err)
	}

	correct := !timedOut && chosen == r.question.Answer
	out := Settle(r.question.Difficulty, correct, r.hintApplied, progress.Streak)

	progress.Score += out.PointsDelta
	progress.Streak = out.NewStreak
	if err := s.store.CommitSettlement(ctx, r.userID, r.question.ID, progress); err != nil {
		return domain.Settlement{}, fmt.Errorf("%w: commit settlement: %v", domain.ErrStore, err)
	}

	r.status = statusResolved
	r.countdown.stop()
	p.round = nil

	settlement := domain.Settlement{
		RoundID:           r.id,
		QuestionID:        r.question.ID,
		Category:          r.question.Category,
		Difficulty:        r.question.Difficulty,
		Chosen:            chosen,
		TimedOut:          timedOut,
		Correct:           correct,
		PointsDelta:       out.PointsDelta,
		NewScore:          progress.Score,
		NewStreak:         progress.Streak,
		ComboBonusApplied: out.ComboBonus,
		CorrectOption:     r.question.Answer,
	}
	s.log.WithField("user", r.userID).Info("round %s settled: correct=%v timeout=%v delta=%d score=%d streak=%d",
		r.id, correct, timedOut, out.PointsDelta, progress.Score, progress.Streak)

	if err := s.presenter.RenderSettlement(ctx, r.userID, settlement); err != nil {
		s.log.WithField("user", r.userID).Warn("render settlement: %v", err)
	}
	return settlement, nil
}

func (s *RoundService) shuffled(options []string) []string {
	out := append([]string(nil), options...)
	s.rndMu.Lock()
	s.rnd.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	s.rndMu.Unlock()
	return out
}

func (s *RoundService) intn(n int) int {
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	return s.rnd.Intn(n)
}
