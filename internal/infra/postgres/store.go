package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"trivia-duel-service/internal/app"
	"trivia-duel-service/internal/domain"
)

// queueLockClass is the first key of the advisory lock that serializes
// matchmaking for one game type.
const queueLockClass = 7301

const uniqueViolation = "23505"

// Store persists game state in Postgres through bun.
type Store struct {
	db *bun.DB
}

var _ app.Store = (*Store)(nil)

// Open connects bun to the database at dsn.
func Open(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx app.Tx) error) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, btx bun.Tx) error {
		return fn(ctx, &tx{tx: btx})
	})
}

// ReadTx gives fn one consistent snapshot of the database.
func (s *Store) ReadTx(ctx context.Context, fn func(ctx context.Context, tx app.Tx) error) error {
	opts := &sql.TxOptions{ReadOnly: true, Isolation: sql.LevelRepeatableRead}
	return s.db.RunInTx(ctx, opts, func(ctx context.Context, btx bun.Tx) error {
		return fn(ctx, &tx{tx: btx})
	})
}

type tx struct {
	tx bun.Tx
}

var _ app.Tx = (*tx)(nil)

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == uniqueViolation
}

// noRows turns sql.ErrNoRows into the nil, nil of a missing row.
func noRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return err
}

func (t *tx) GameType(ctx context.Context, id int64) (*domain.GameType, error) {
	row := new(gameTypeRow)
	if err := t.tx.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, noRows(err)
	}
	return row.toDomain(), nil
}

func (t *tx) LockQueue(ctx context.Context, gameTypeID int64) error {
	_, err := t.tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(?, ?)", queueLockClass, int32(gameTypeID))
	return err
}

func (t *tx) QueueEntry(ctx context.Context, userID, gameTypeID int64) (*domain.MatchQueueEntry, error) {
	row := new(queueRow)
	err := t.tx.NewSelect().Model(row).
		Where("user_id = ?", userID).
		Where("game_type_id = ?", gameTypeID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, noRows(err)
	}
	return row.toDomain(), nil
}

func (t *tx) InsertQueueEntry(ctx context.Context, entry *domain.MatchQueueEntry) error {
	row := &queueRow{UserID: entry.UserID, GameTypeID: entry.GameTypeID, EnqueuedAt: entry.EnqueuedAt}
	if _, err := t.tx.NewInsert().Model(row).Returning("id").Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyQueued
		}
		return err
	}
	entry.ID = row.ID
	return nil
}

// ClaimOpponent takes the oldest waiting entry, skipping rows another
// transaction already holds.
func (t *tx) ClaimOpponent(ctx context.Context, gameTypeID, userID int64) (*domain.MatchQueueEntry, error) {
	row := new(queueRow)
	err := t.tx.NewSelect().Model(row).
		Where("game_type_id = ?", gameTypeID).
		Where("user_id <> ?", userID).
		OrderExpr("enqueued_at ASC, id ASC").
		Limit(1).
		For("UPDATE SKIP LOCKED").
		Scan(ctx)
	if err != nil {
		return nil, noRows(err)
	}
	return row.toDomain(), nil
}

func (t *tx) DeleteQueueEntry(ctx context.Context, id int64) (bool, error) {
	res, err := t.tx.NewDelete().Model((*queueRow)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (t *tx) DeleteUserQueueEntries(ctx context.Context, userIDs ...int64) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := t.tx.NewDelete().Model((*queueRow)(nil)).Where("user_id IN (?)", bun.In(userIDs)).Exec(ctx)
	return err
}

func (t *tx) UserQueued(ctx context.Context, userID int64) (bool, error) {
	return t.tx.NewSelect().Model((*queueRow)(nil)).Where("user_id = ?", userID).Exists(ctx)
}

func (t *tx) InsertInvitation(ctx context.Context, inv *domain.GameInvitation) error {
	row := newInvitationRow(inv)
	row.ID = 0
	if _, err := t.tx.NewInsert().Model(row).Returning("id").Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyInvited
		}
		return err
	}
	inv.ID = row.ID
	return nil
}

func (t *tx) PendingInvitation(ctx context.Context, inviterID, inviteeID int64) (*domain.GameInvitation, error) {
	row := new(invitationRow)
	err := t.tx.NewSelect().Model(row).
		Where("inviter_id = ?", inviterID).
		Where("invitee_id = ?", inviteeID).
		Where("status = ?", string(domain.InvitationPending)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, noRows(err)
	}
	return row.toDomain(), nil
}

func (t *tx) LockInvitation(ctx context.Context, id int64) (*domain.GameInvitation, error) {
	row := new(invitationRow)
	if err := t.tx.NewSelect().Model(row).Where("id = ?", id).For("UPDATE").Scan(ctx); err != nil {
		return nil, noRows(err)
	}
	return row.toDomain(), nil
}

func (t *tx) UpdateInvitation(ctx context.Context, inv *domain.GameInvitation) error {
	res, err := t.tx.NewUpdate().Model(newInvitationRow(inv)).WherePK().Exec(ctx)
	return affectedOne(res, err, "invitation", inv.ID)
}

func (t *tx) DeleteInvitation(ctx context.Context, id int64) error {
	_, err := t.tx.NewDelete().Model((*invitationRow)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}

func (t *tx) InsertGame(ctx context.Context, game *domain.Game) error {
	row := newGameRow(game)
	row.ID = 0
	if _, err := t.tx.NewInsert().Model(row).Returning("id").Exec(ctx); err != nil {
		return err
	}
	game.ID = row.ID
	return nil
}

func (t *tx) Game(ctx context.Context, id int64) (*domain.Game, error) {
	row := new(gameRow)
	if err := t.tx.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, noRows(err)
	}
	return row.toDomain(), nil
}

func (t *tx) LockGame(ctx context.Context, id int64) (*domain.Game, error) {
	row := new(gameRow)
	if err := t.tx.NewSelect().Model(row).Where("id = ?", id).For("UPDATE").Scan(ctx); err != nil {
		return nil, noRows(err)
	}
	return row.toDomain(), nil
}

func (t *tx) UpdateGame(ctx context.Context, game *domain.Game) error {
	res, err := t.tx.NewUpdate().Model(newGameRow(game)).WherePK().Exec(ctx)
	return affectedOne(res, err, "game", game.ID)
}

func (t *tx) openGames(userID int64) *bun.SelectQuery {
	return t.tx.NewSelect().
		Join("JOIN game_participants AS gp ON gp.game_id = g.id").
		Where("gp.user_id = ?", userID).
		Where("g.status IN (?)", bun.In([]string{string(domain.GamePending), string(domain.GameActive)}))
}

func (t *tx) LatestOpenGame(ctx context.Context, userID, gameTypeID int64) (*domain.Game, error) {
	row := new(gameRow)
	err := t.openGames(userID).Model(row).
		Where("g.game_type_id = ?", gameTypeID).
		OrderExpr("g.created_at DESC, g.id DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, noRows(err)
	}
	return row.toDomain(), nil
}

func (t *tx) UserInOpenGame(ctx context.Context, userID int64) (bool, error) {
	return t.openGames(userID).Model((*gameRow)(nil)).Exists(ctx)
}

func (t *tx) InsertParticipants(ctx context.Context, participants []*domain.Participant) error {
	if len(participants) == 0 {
		return nil
	}
	rows := make([]*participantRow, 0, len(participants))
	for _, p := range participants {
		rows = append(rows, &participantRow{
			GameID:   p.GameID,
			UserID:   p.UserID,
			Score:    p.Score,
			JoinTime: p.JoinTime,
			Status:   string(p.Status),
		})
	}
	_, err := t.tx.NewInsert().Model(&rows).Returning("id").Exec(ctx)
	return err
}

func (t *tx) Participants(ctx context.Context, gameID int64) ([]*domain.Participant, error) {
	var rows []participantRow
	err := t.tx.NewSelect().Model(&rows).
		Where("game_id = ?", gameID).
		OrderExpr("join_time ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Participant, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func (t *tx) Participant(ctx context.Context, gameID, userID int64) (*domain.Participant, error) {
	row := new(participantRow)
	err := t.tx.NewSelect().Model(row).
		Where("game_id = ?", gameID).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		return nil, noRows(err)
	}
	return row.toDomain(), nil
}

// AddScore increments in place so concurrent answers never lose points.
func (t *tx) AddScore(ctx context.Context, gameID, userID int64, points int) (int, error) {
	var score int
	err := t.tx.NewUpdate().Model((*participantRow)(nil)).
		Set("score = score + ?", points).
		Where("game_id = ?", gameID).
		Where("user_id = ?", userID).
		Returning("score").
		Scan(ctx, &score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("postgres: user %d not in game %d", userID, gameID)
	}
	return score, err
}

func (t *tx) InsertRounds(ctx context.Context, rounds []*domain.Round) error {
	if len(rounds) == 0 {
		return nil
	}
	rows := make([]*roundRow, 0, len(rounds))
	for _, r := range rounds {
		row := newRoundRow(r)
		row.ID = 0
		rows = append(rows, row)
	}
	if _, err := t.tx.NewInsert().Model(&rows).Returning("id").Exec(ctx); err != nil {
		return err
	}
	for i, r := range rounds {
		r.ID = rows[i].ID
	}
	return nil
}

func (t *tx) Rounds(ctx context.Context, gameID int64) ([]*domain.Round, error) {
	var rows []roundRow
	err := t.tx.NewSelect().Model(&rows).
		Where("game_id = ?", gameID).
		Order("round_number ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Round, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func (t *tx) selectRound(gameID int64, number int) (*roundRow, *bun.SelectQuery) {
	row := new(roundRow)
	return row, t.tx.NewSelect().Model(row).
		Where("game_id = ?", gameID).
		Where("round_number = ?", number)
}

func (t *tx) Round(ctx context.Context, gameID int64, number int) (*domain.Round, error) {
	row, q := t.selectRound(gameID, number)
	if err := q.Scan(ctx); err != nil {
		return nil, noRows(err)
	}
	return row.toDomain(), nil
}

func (t *tx) LockRound(ctx context.Context, gameID int64, number int) (*domain.Round, error) {
	row, q := t.selectRound(gameID, number)
	if err := q.For("UPDATE").Scan(ctx); err != nil {
		return nil, noRows(err)
	}
	return row.toDomain(), nil
}

func (t *tx) UpdateRound(ctx context.Context, round *domain.Round) error {
	res, err := t.tx.NewUpdate().Model(newRoundRow(round)).WherePK().Exec(ctx)
	return affectedOne(res, err, "round", round.ID)
}

func (t *tx) InsertRoundQuestions(ctx context.Context, questions []*domain.RoundQuestion) error {
	if len(questions) == 0 {
		return nil
	}
	rows := make([]*roundQuestionRow, 0, len(questions))
	for _, q := range questions {
		rows = append(rows, &roundQuestionRow{GameRoundID: q.RoundID, QuestionID: q.QuestionID})
	}
	if _, err := t.tx.NewInsert().Model(&rows).Returning("id").Exec(ctx); err != nil {
		return err
	}
	for i, q := range questions {
		q.ID = rows[i].ID
	}
	return nil
}

func (t *tx) RoundQuestions(ctx context.Context, roundID int64) ([]*domain.RoundQuestion, error) {
	var rows []roundQuestionRow
	err := t.tx.NewSelect().Model(&rows).
		Where("game_round_id = ?", roundID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.RoundQuestion, 0, len(rows))
	for _, r := range rows {
		out = append(out, &domain.RoundQuestion{ID: r.ID, RoundID: r.GameRoundID, QuestionID: r.QuestionID})
	}
	return out, nil
}

func (t *tx) InsertAnswer(ctx context.Context, answer *domain.RoundAnswer) error {
	row := &answerRow{
		GameRoundQuestionID: answer.RoundQuestionID,
		UserID:              answer.UserID,
		ChoiceID:            answer.ChoiceID,
		IsCorrect:           answer.IsCorrect,
		PointsEarned:        answer.PointsEarned,
		ResponseTimeMs:      answer.ResponseTimeMs,
		CreatedAt:           answer.CreatedAt,
	}
	if _, err := t.tx.NewInsert().Model(row).Returning("id").Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyAnswered
		}
		return err
	}
	answer.ID = row.ID
	return nil
}

func (t *tx) AnswerExists(ctx context.Context, roundQuestionID, userID int64) (bool, error) {
	return t.tx.NewSelect().Model((*answerRow)(nil)).
		Where("game_round_question_id = ?", roundQuestionID).
		Where("user_id = ?", userID).
		Exists(ctx)
}

func (t *tx) roundAnswers(roundID int64) *bun.SelectQuery {
	return t.tx.NewSelect().
		Join("JOIN game_round_questions AS grq ON grq.id = ra.game_round_question_id").
		Where("grq.game_round_id = ?", roundID)
}

func (t *tx) CountRoundAnswers(ctx context.Context, roundID int64) (int, error) {
	return t.roundAnswers(roundID).Model((*answerRow)(nil)).Count(ctx)
}

func (t *tx) UserRoundAnswers(ctx context.Context, roundID, userID int64) ([]*domain.RoundAnswer, error) {
	var rows []answerRow
	err := t.roundAnswers(roundID).Model(&rows).
		Where("ra.user_id = ?", userID).
		OrderExpr("ra.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.RoundAnswer, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

// RecordSettlements writes one row per participant and credits total_xp.
func (t *tx) RecordSettlements(ctx context.Context, settlements []domain.Settlement) error {
	if len(settlements) == 0 {
		return nil
	}
	rows := make([]*settlementRow, 0, len(settlements))
	for _, s := range settlements {
		rows = append(rows, &settlementRow{
			GameID:    s.GameID,
			UserID:    s.UserID,
			XPAwarded: s.XP,
			BonusXP:   s.BonusXP,
			Winner:    s.Winner,
		})
	}
	if _, err := t.tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
		return err
	}
	for _, s := range settlements {
		_, err := t.tx.ExecContext(ctx, "UPDATE users SET total_xp = total_xp + ? WHERE id = ?", s.XP+s.BonusXP, s.UserID)
		if err != nil {
			return fmt.Errorf("credit xp to user %d: %w", s.UserID, err)
		}
	}
	return nil
}

func affectedOne(res sql.Result, err error, what string, id int64) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("postgres: %s %d does not exist", what, id)
	}
	return nil
}
