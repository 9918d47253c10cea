package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"trivia-duel-service/internal/app"
	"trivia-duel-service/internal/domain"
)

// ErrReadOnlyTx is returned by writes attempted inside ReadTx.
var ErrReadOnlyTx = errors.New("memory: write in read-only transaction")

// Store is an in-process app.Store. Transactions are serialized and work on
// a private copy of the data that replaces the live copy only on success.
type Store struct {
	mu    sync.RWMutex
	state *state
}

var _ app.Store = (*Store)(nil)

func NewStore(gameTypes ...domain.GameType) *Store {
	st := newState()
	for _, gt := range gameTypes {
		st.gameTypes[gt.ID] = gt
	}
	return &Store{state: st}
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx app.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(ctx, &tx{st: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *Store) ReadTx(ctx context.Context, fn func(ctx context.Context, tx app.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(ctx, &tx{st: s.state, readOnly: true})
}

// PutGameType adds or replaces reference data.
func (s *Store) PutGameType(gt domain.GameType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.gameTypes[gt.ID] = gt
}

// XP returns the experience credited to a user by settled games.
func (s *Store) XP(userID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.xp[userID]
}

// Settlements returns the rows written when gameID completed.
func (s *Store) Settlements(gameID int64) []domain.Settlement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Settlement
	for _, st := range s.state.settlements {
		if st.GameID == gameID {
			out = append(out, st)
		}
	}
	return out
}

// QueueLen reports how many queue entries exist for a game type.
func (s *Store) QueueLen(gameTypeID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.state.queue {
		if e.GameTypeID == gameTypeID {
			n++
		}
	}
	return n
}

type sequences struct {
	queue, invitation, game, round, roundQuestion, answer int64
}

type state struct {
	seq            sequences
	gameTypes      map[int64]domain.GameType
	queue          map[int64]domain.MatchQueueEntry
	invitations    map[int64]domain.GameInvitation
	games          map[int64]domain.Game
	participants   map[int64][]domain.Participant
	rounds         map[int64][]domain.Round
	roundQuestions map[int64][]domain.RoundQuestion
	answers        map[int64][]domain.RoundAnswer
	settlements    []domain.Settlement
	xp             map[int64]int
}

func newState() *state {
	return &state{
		gameTypes:      make(map[int64]domain.GameType),
		queue:          make(map[int64]domain.MatchQueueEntry),
		invitations:    make(map[int64]domain.GameInvitation),
		games:          make(map[int64]domain.Game),
		participants:   make(map[int64][]domain.Participant),
		rounds:         make(map[int64][]domain.Round),
		roundQuestions: make(map[int64][]domain.RoundQuestion),
		answers:        make(map[int64][]domain.RoundAnswer),
		xp:             make(map[int64]int),
	}
}

// clone copies every table. Pointer fields inside rows are never mutated in
// place, so sharing them between copies is safe.
func (s *state) clone() *state {
	c := &state{
		seq:            s.seq,
		gameTypes:      cloneMap(s.gameTypes),
		queue:          cloneMap(s.queue),
		invitations:    cloneMap(s.invitations),
		games:          cloneMap(s.games),
		participants:   cloneSliceMap(s.participants),
		rounds:         cloneSliceMap(s.rounds),
		roundQuestions: cloneSliceMap(s.roundQuestions),
		answers:        cloneSliceMap(s.answers),
		settlements:    append([]domain.Settlement(nil), s.settlements...),
		xp:             cloneMap(s.xp),
	}
	return c
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneSliceMap[K comparable, V any](m map[K][]V) map[K][]V {
	out := make(map[K][]V, len(m))
	for k, v := range m {
		out[k] = append([]V(nil), v...)
	}
	return out
}

type tx struct {
	st       *state
	readOnly bool
}

var _ app.Tx = (*tx)(nil)

func (t *tx) writable() error {
	if t.readOnly {
		return ErrReadOnlyTx
	}
	return nil
}

func (t *tx) GameType(_ context.Context, id int64) (*domain.GameType, error) {
	gt, ok := t.st.gameTypes[id]
	if !ok {
		return nil, nil
	}
	return &gt, nil
}

// LockQueue is a no-op: the store already runs one transaction at a time.
func (t *tx) LockQueue(context.Context, int64) error { return t.writable() }

func (t *tx) QueueEntry(_ context.Context, userID, gameTypeID int64) (*domain.MatchQueueEntry, error) {
	for _, e := range t.st.queue {
		if e.UserID == userID && e.GameTypeID == gameTypeID {
			return &e, nil
		}
	}
	return nil, nil
}

func (t *tx) InsertQueueEntry(ctx context.Context, entry *domain.MatchQueueEntry) error {
	if err := t.writable(); err != nil {
		return err
	}
	if existing, _ := t.QueueEntry(ctx, entry.UserID, entry.GameTypeID); existing != nil {
		return domain.ErrAlreadyQueued
	}
	t.st.seq.queue++
	entry.ID = t.st.seq.queue
	t.st.queue[entry.ID] = *entry
	return nil
}

func (t *tx) ClaimOpponent(_ context.Context, gameTypeID, userID int64) (*domain.MatchQueueEntry, error) {
	var best *domain.MatchQueueEntry
	for _, e := range t.st.queue {
		if e.GameTypeID != gameTypeID || e.UserID == userID {
			continue
		}
		if best == nil || e.EnqueuedAt.Before(best.EnqueuedAt) ||
			(e.EnqueuedAt.Equal(best.EnqueuedAt) && e.ID < best.ID) {
			e := e // per-iteration copy (go < 1.22 loop semantics)
			best = &e
		}
	}
	return best, nil
}

func (t *tx) DeleteQueueEntry(_ context.Context, id int64) (bool, error) {
	if err := t.writable(); err != nil {
		return false, err
	}
	if _, ok := t.st.queue[id]; !ok {
		return false, nil
	}
	delete(t.st.queue, id)
	return true, nil
}

func (t *tx) DeleteUserQueueEntries(_ context.Context, userIDs ...int64) error {
	if err := t.writable(); err != nil {
		return err
	}
	for id, e := range t.st.queue {
		for _, u := range userIDs {
			if e.UserID == u {
				delete(t.st.queue, id)
				break
			}
		}
	}
	return nil
}

func (t *tx) UserQueued(_ context.Context, userID int64) (bool, error) {
	for _, e := range t.st.queue {
		if e.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) InsertInvitation(ctx context.Context, inv *domain.GameInvitation) error {
	if err := t.writable(); err != nil {
		return err
	}
	if inv.Status == domain.InvitationPending {
		if existing, _ := t.PendingInvitation(ctx, inv.InviterID, inv.InviteeID); existing != nil {
			return domain.ErrAlreadyInvited
		}
	}
	t.st.seq.invitation++
	inv.ID = t.st.seq.invitation
	t.st.invitations[inv.ID] = *inv
	return nil
}

func (t *tx) PendingInvitation(_ context.Context, inviterID, inviteeID int64) (*domain.GameInvitation, error) {
	for _, inv := range t.st.invitations {
		if inv.InviterID == inviterID && inv.InviteeID == inviteeID && inv.Status == domain.InvitationPending {
			return &inv, nil
		}
	}
	return nil, nil
}

func (t *tx) LockInvitation(_ context.Context, id int64) (*domain.GameInvitation, error) {
	inv, ok := t.st.invitations[id]
	if !ok {
		return nil, nil
	}
	return &inv, nil
}

func (t *tx) UpdateInvitation(_ context.Context, inv *domain.GameInvitation) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.st.invitations[inv.ID]; !ok {
		return fmt.Errorf("memory: invitation %d does not exist", inv.ID)
	}
	t.st.invitations[inv.ID] = *inv
	return nil
}

func (t *tx) DeleteInvitation(_ context.Context, id int64) error {
	if err := t.writable(); err != nil {
		return err
	}
	delete(t.st.invitations, id)
	return nil
}

func (t *tx) InsertGame(_ context.Context, game *domain.Game) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.st.seq.game++
	game.ID = t.st.seq.game
	t.st.games[game.ID] = *game
	return nil
}

func (t *tx) Game(_ context.Context, id int64) (*domain.Game, error) {
	g, ok := t.st.games[id]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (t *tx) LockGame(ctx context.Context, id int64) (*domain.Game, error) {
	return t.Game(ctx, id)
}

func (t *tx) UpdateGame(_ context.Context, game *domain.Game) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.st.games[game.ID]; !ok {
		return fmt.Errorf("memory: game %d does not exist", game.ID)
	}
	t.st.games[game.ID] = *game
	return nil
}

func (t *tx) LatestOpenGame(_ context.Context, userID, gameTypeID int64) (*domain.Game, error) {
	var best *domain.Game
	for _, g := range t.st.games {
		if g.GameTypeID != gameTypeID || !open(g) || !t.seated(g.ID, userID) {
			continue
		}
		if best == nil || g.CreatedAt.After(best.CreatedAt) ||
			(g.CreatedAt.Equal(best.CreatedAt) && g.ID > best.ID) {
			g := g // per-iteration copy (go < 1.22 loop semantics)
			best = &g
		}
	}
	return best, nil
}

func (t *tx) UserInOpenGame(_ context.Context, userID int64) (bool, error) {
	for _, g := range t.st.games {
		if open(g) && t.seated(g.ID, userID) {
			return true, nil
		}
	}
	return false, nil
}

func open(g domain.Game) bool {
	return g.Status == domain.GamePending || g.Status == domain.GameActive
}

func (t *tx) seated(gameID, userID int64) bool {
	for _, p := range t.st.participants[gameID] {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

func (t *tx) InsertParticipants(_ context.Context, participants []*domain.Participant) error {
	if err := t.writable(); err != nil {
		return err
	}
	for _, p := range participants {
		if t.seated(p.GameID, p.UserID) {
			return fmt.Errorf("memory: user %d already in game %d", p.UserID, p.GameID)
		}
		t.st.participants[p.GameID] = append(t.st.participants[p.GameID], *p)
	}
	return nil
}

// Participants keeps insertion order, which is join order.
func (t *tx) Participants(_ context.Context, gameID int64) ([]*domain.Participant, error) {
	rows := t.st.participants[gameID]
	out := make([]*domain.Participant, 0, len(rows))
	for i := range rows {
		p := rows[i]
		out = append(out, &p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].JoinTime.Before(out[j].JoinTime) })
	return out, nil
}

func (t *tx) Participant(_ context.Context, gameID, userID int64) (*domain.Participant, error) {
	for _, p := range t.st.participants[gameID] {
		if p.UserID == userID {
			return &p, nil
		}
	}
	return nil, nil
}

func (t *tx) AddScore(_ context.Context, gameID, userID int64, points int) (int, error) {
	if err := t.writable(); err != nil {
		return 0, err
	}
	rows := t.st.participants[gameID]
	for i := range rows {
		if rows[i].UserID == userID {
			rows[i].Score += points
			return rows[i].Score, nil
		}
	}
	return 0, fmt.Errorf("memory: user %d not in game %d", userID, gameID)
}

func (t *tx) InsertRounds(_ context.Context, rounds []*domain.Round) error {
	if err := t.writable(); err != nil {
		return err
	}
	if len(rounds) == 0 {
		return nil
	}
	for _, r := range rounds {
		for _, existing := range t.st.rounds[r.GameID] {
			if existing.Number == r.Number {
				return fmt.Errorf("memory: round %d of game %d exists", r.Number, r.GameID)
			}
		}
		t.st.seq.round++
		r.ID = t.st.seq.round
		t.st.rounds[r.GameID] = append(t.st.rounds[r.GameID], *r)
	}
	sort.Slice(t.st.rounds[rounds[0].GameID], func(i, j int) bool {
		rs := t.st.rounds[rounds[0].GameID]
		return rs[i].Number < rs[j].Number
	})
	return nil
}

func (t *tx) Rounds(_ context.Context, gameID int64) ([]*domain.Round, error) {
	rows := t.st.rounds[gameID]
	out := make([]*domain.Round, 0, len(rows))
	for i := range rows {
		r := rows[i]
		out = append(out, &r)
	}
	return out, nil
}

func (t *tx) Round(_ context.Context, gameID int64, number int) (*domain.Round, error) {
	for _, r := range t.st.rounds[gameID] {
		if r.Number == number {
			return &r, nil
		}
	}
	return nil, nil
}

func (t *tx) LockRound(ctx context.Context, gameID int64, number int) (*domain.Round, error) {
	return t.Round(ctx, gameID, number)
}

func (t *tx) UpdateRound(_ context.Context, round *domain.Round) error {
	if err := t.writable(); err != nil {
		return err
	}
	rows := t.st.rounds[round.GameID]
	for i := range rows {
		if rows[i].ID == round.ID {
			rows[i] = *round
			return nil
		}
	}
	return fmt.Errorf("memory: round %d does not exist", round.ID)
}

func (t *tx) InsertRoundQuestions(_ context.Context, questions []*domain.RoundQuestion) error {
	if err := t.writable(); err != nil {
		return err
	}
	for _, q := range questions {
		for _, existing := range t.st.roundQuestions[q.RoundID] {
			if existing.QuestionID == q.QuestionID {
				return fmt.Errorf("memory: question %d already in round %d", q.QuestionID, q.RoundID)
			}
		}
		t.st.seq.roundQuestion++
		q.ID = t.st.seq.roundQuestion
		t.st.roundQuestions[q.RoundID] = append(t.st.roundQuestions[q.RoundID], *q)
	}
	return nil
}

func (t *tx) RoundQuestions(_ context.Context, roundID int64) ([]*domain.RoundQuestion, error) {
	rows := t.st.roundQuestions[roundID]
	out := make([]*domain.RoundQuestion, 0, len(rows))
	for i := range rows {
		q := rows[i]
		out = append(out, &q)
	}
	return out, nil
}

func (t *tx) InsertAnswer(ctx context.Context, answer *domain.RoundAnswer) error {
	if err := t.writable(); err != nil {
		return err
	}
	if ok, _ := t.AnswerExists(ctx, answer.RoundQuestionID, answer.UserID); ok {
		return domain.ErrAlreadyAnswered
	}
	t.st.seq.answer++
	answer.ID = t.st.seq.answer
	t.st.answers[answer.RoundQuestionID] = append(t.st.answers[answer.RoundQuestionID], *answer)
	return nil
}

func (t *tx) AnswerExists(_ context.Context, roundQuestionID, userID int64) (bool, error) {
	for _, a := range t.st.answers[roundQuestionID] {
		if a.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) CountRoundAnswers(_ context.Context, roundID int64) (int, error) {
	n := 0
	for _, q := range t.st.roundQuestions[roundID] {
		n += len(t.st.answers[q.ID])
	}
	return n, nil
}

func (t *tx) UserRoundAnswers(_ context.Context, roundID, userID int64) ([]*domain.RoundAnswer, error) {
	var out []*domain.RoundAnswer
	for _, q := range t.st.roundQuestions[roundID] {
		for _, a := range t.st.answers[q.ID] {
			if a.UserID == userID {
				a := a // per-iteration copy (go < 1.22 loop semantics)
				out = append(out, &a)
			}
		}
	}
	return out, nil
}

func (t *tx) RecordSettlements(_ context.Context, settlements []domain.Settlement) error {
	if err := t.writable(); err != nil {
		return err
	}
	for _, s := range settlements {
		t.st.settlements = append(t.st.settlements, s)
		t.st.xp[s.UserID] += s.XP + s.BonusXP
	}
	return nil
}
