package app

import (
	"context"

	"github.com/sirupsen/logrus"

	"trivia-duel-service/internal/domain"
)

// Invite records a pending duel invitation from inviter to invitee.
func (e *Engine) Invite(ctx context.Context, inviterID, inviteeID int64) (domain.InviteResult, error) {
	fields := logrus.Fields{"user_id": inviterID, "invitee_id": inviteeID}
	return observe(ctx, e, "invite", fields, func(ctx context.Context) (domain.InviteResult, error) {
		if inviterID <= 0 || inviteeID <= 0 {
			return domain.InviteResult{}, domain.Wrap(domain.ErrMissingArgument, "inviter and invitee ids")
		}
		if inviterID == inviteeID {
			return domain.InviteResult{}, domain.ErrSelfInvite
		}
		for _, id := range []int64{inviterID, inviteeID} {
			if err := e.requireUser(ctx, id); err != nil {
				return domain.InviteResult{}, err
			}
		}

		var res domain.InviteResult
		err := e.inTx(ctx, func(ctx context.Context, tx Tx) error {
			busy, err := tx.UserInOpenGame(ctx, inviteeID)
			if err != nil {
				return err
			}
			if !busy {
				if busy, err = tx.UserQueued(ctx, inviteeID); err != nil {
					return err
				}
			}
			if busy {
				return domain.ErrInviteeBusy
			}
			pending, err := tx.PendingInvitation(ctx, inviterID, inviteeID)
			if err != nil {
				return err
			}
			if pending != nil {
				return domain.ErrAlreadyInvited
			}
			inv := &domain.GameInvitation{
				InviterID: inviterID,
				InviteeID: inviteeID,
				Status:    domain.InvitationPending,
				CreatedAt: e.clock(),
			}
			if err := tx.InsertInvitation(ctx, inv); err != nil {
				return err
			}
			res = domain.InviteResult{InvitationID: inv.ID, CreatedAt: inv.CreatedAt}
			return nil
		})
		return res, err
	})
}

// RespondInvite accepts, declines or rejects a pending invitation. Accepting
// creates and activates a duel with the inviter joining first.
func (e *Engine) RespondInvite(ctx context.Context, invitationID, inviteeID int64, action domain.InviteAction) (domain.RespondResult, error) {
	fields := logrus.Fields{"invitation_id": invitationID, "user_id": inviteeID, "action": action}
	return observe(ctx, e, "respond_invite", fields, func(ctx context.Context) (domain.RespondResult, error) {
		if invitationID <= 0 || inviteeID <= 0 {
			return domain.RespondResult{}, domain.Wrap(domain.ErrMissingArgument, "invitation and invitee ids")
		}
		switch action {
		case domain.ActionAccept, domain.ActionDecline, domain.ActionReject:
		default:
			return domain.RespondResult{}, domain.Wrap(domain.ErrInvalidAction, "%q", action)
		}

		var res domain.RespondResult
		err := e.inTx(ctx, func(ctx context.Context, tx Tx) error {
			inv, err := tx.LockInvitation(ctx, invitationID)
			if err != nil {
				return err
			}
			if inv == nil {
				return domain.Wrap(domain.ErrInvitationMissing, "invitation %d", invitationID)
			}
			if inv.InviteeID != inviteeID {
				return domain.ErrInviteeMismatch
			}
			if inv.Status != domain.InvitationPending {
				return domain.Wrap(domain.ErrInvitationClosed, "invitation already %s", inv.Status)
			}
			if action != domain.ActionAccept {
				return tx.DeleteInvitation(ctx, inv.ID)
			}

			gameType, err := tx.GameType(ctx, e.settings.InviteGameTypeID)
			if err != nil {
				return err
			}
			if gameType == nil {
				return domain.Wrap(domain.ErrGameTypeNotFound, "game type %d", e.settings.InviteGameTypeID)
			}
			if err := tx.LockQueue(ctx, gameType.ID); err != nil {
				return err
			}
			// Both players leave every queue, as on a queue match.
			if err := tx.DeleteUserQueueEntries(ctx, inv.InviterID, inv.InviteeID); err != nil {
				return err
			}
			for _, id := range []int64{inv.InviterID, inv.InviteeID} {
				busy, err := tx.UserInOpenGame(ctx, id)
				if err != nil {
					return err
				}
				if busy {
					return domain.Wrap(domain.ErrPlayerBusy, "user %d", id)
				}
			}
			players := []int64{inv.InviterID, inv.InviteeID}
			game, err := e.createDuel(ctx, tx, gameType, players)
			if err != nil {
				return err
			}
			inv.Status = domain.InvitationAccepted
			inv.GameID = &game.ID
			if err := tx.UpdateInvitation(ctx, inv); err != nil {
				return err
			}
			res = domain.RespondResult{Accepted: true, GameID: game.ID, Players: players}
			return nil
		})
		if err != nil {
			return domain.RespondResult{}, err
		}
		if res.Accepted {
			e.metrics.Matches.WithLabelValues("invitation").Inc()
			e.publishSnapshot(ctx, res.GameID)
		}
		return res, nil
	})
}
