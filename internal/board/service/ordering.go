package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	boarddomain "github.com/smallbiznis/taskboard/internal/board/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) CreateColumn(ctx context.Context, userID snowflake.ID, req boarddomain.CreateColumnRequest) (*boarddomain.Column, error) {
	if req.BoardID == 0 {
		return nil, boarddomain.ErrInvalidBoard
	}
	title, err := validateTitle(req.Title)
	if err != nil {
		return nil, err
	}

	var column *boarddomain.Column
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		board, err := lockBoardForMember(ctx, repo, req.BoardID, userID)
		if err != nil {
			return err
		}
		if limit := s.limits.Get().MaxColumnsPerBoard; limit > 0 && len(board.ColumnOrderIDs) >= limit {
			return boarddomain.ErrLimitExceeded
		}

		now := s.clock.Now()
		column = &boarddomain.Column{
			ID:           s.genID.Generate(),
			BoardID:      board.ID,
			Title:        title,
			CardOrderIDs: boarddomain.IDs{},
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := repo.InsertColumn(ctx, column); err != nil {
			return err
		}

		updated, err := repo.AppendColumnOrderID(ctx, board.ID, column.ID)
		if err != nil {
			return err
		}
		if updated == nil {
			return boarddomain.ErrBoardNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return column, nil
}

func (s *Service) UpdateColumn(ctx context.Context, userID, columnID snowflake.ID, req boarddomain.UpdateColumnRequest) (*boarddomain.Column, error) {
	patch := map[string]any{}
	if req.Title != nil {
		title, err := validateTitle(*req.Title)
		if err != nil {
			return nil, err
		}
		patch["title"] = title
	}

	var updated *boarddomain.Column
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		column, err := lockColumnForMember(ctx, repo, columnID, userID)
		if err != nil {
			return err
		}

		if req.CardOrderIDs != nil {
			next := *req.CardOrderIDs
			if !isPermutation(column.CardOrderIDs, next) {
				return boarddomain.ErrInvalidOrder
			}
			patch["card_order_ids"] = toIDs(next)
		}
		if len(patch) == 0 {
			updated = column
			return nil
		}
		patch["updated_at"] = s.clock.Now()

		updated, err = repo.UpdateColumn(ctx, column.ID, patch)
		if err != nil {
			return err
		}
		if updated == nil {
			return boarddomain.ErrColumnNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteColumn deletes the column, then its cards, then pulls the column from
// the board order.
func (s *Service) DeleteColumn(ctx context.Context, userID, columnID snowflake.ID) (*boarddomain.DeleteColumnResult, error) {
	result := &boarddomain.DeleteColumnResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		column, err := lockColumnForMember(ctx, repo, columnID, userID)
		if err != nil {
			return err
		}

		if result.DeletedColumns, err = repo.DeleteColumn(ctx, column.ID); err != nil {
			return err
		}
		if result.DeletedCards, err = repo.DeleteCardsByColumn(ctx, column.ID); err != nil {
			return err
		}
		_, err = repo.PullColumnOrderID(ctx, column.BoardID, column.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("column deleted",
		zap.String("column_id", columnID.String()),
		zap.Int64("deleted_cards", result.DeletedCards),
	)
	return result, nil
}

// MoveCard writes the source order, then the target order, then the card's
// column. Calling it again with the same request leaves the state unchanged.
func (s *Service) MoveCard(ctx context.Context, userID snowflake.ID, req boarddomain.MoveCardRequest) (*boarddomain.MoveCardResult, error) {
	if req.CardID == 0 || req.PrevColumnID == 0 || req.NextColumnID == 0 {
		return nil, boarddomain.ErrInvalidMove
	}
	sameColumn := req.PrevColumnID == req.NextColumnID
	prevOrder := req.PrevCardOrderIDs
	nextOrder := req.NextCardOrderIDs
	if sameColumn && len(nextOrder) == 0 {
		nextOrder = prevOrder
	}

	result := &boarddomain.MoveCardResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		card, err := repo.LockCard(ctx, req.CardID)
		if err != nil {
			return err
		}
		if card == nil {
			return boarddomain.ErrCardNotFound
		}
		if _, err := lockBoardForMember(ctx, repo, card.BoardID, userID); err != nil {
			return hiddenAs(err, boarddomain.ErrCardNotFound)
		}

		prev, err := repo.LockColumn(ctx, req.PrevColumnID)
		if err != nil {
			return err
		}
		if prev == nil {
			return boarddomain.ErrColumnNotFound
		}
		next := prev
		if !sameColumn {
			if next, err = repo.LockColumn(ctx, req.NextColumnID); err != nil {
				return err
			}
			if next == nil {
				return boarddomain.ErrColumnNotFound
			}
		}
		if prev.BoardID != card.BoardID || next.BoardID != card.BoardID {
			return boarddomain.ErrInvalidMove
		}

		if err := validateMove(card.ID, prev, next, prevOrder, nextOrder); err != nil {
			return err
		}

		now := s.clock.Now()
		if result.PrevColumn, err = repo.UpdateColumn(ctx, prev.ID, map[string]any{
			"card_order_ids": toIDs(prevOrder),
			"updated_at":     now,
		}); err != nil {
			return err
		}
		if result.NextColumn, err = repo.UpdateColumn(ctx, next.ID, map[string]any{
			"card_order_ids": toIDs(nextOrder),
			"updated_at":     now,
		}); err != nil {
			return err
		}
		if result.Card, err = repo.UpdateCard(ctx, card.ID, map[string]any{
			"column_id":  next.ID,
			"updated_at": now,
		}); err != nil {
			return err
		}
		if result.PrevColumn == nil || result.NextColumn == nil || result.Card == nil {
			return boarddomain.ErrInvalidMove
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordCardMove(ctx, !sameColumn)
	return result, nil
}

// validateMove rejects orders that would lose, duplicate or invent cards.
func validateMove(cardID snowflake.ID, prev, next *boarddomain.Column, prevOrder, nextOrder []snowflake.ID) error {
	if hasDuplicates(prevOrder) || hasDuplicates(nextOrder) {
		return boarddomain.ErrInvalidOrder
	}
	if !boarddomain.ContainsID(nextOrder, cardID) {
		return boarddomain.ErrInvalidOrder
	}

	if prev.ID == next.ID {
		if !sameIDs(prevOrder, nextOrder) || !isPermutation(prev.CardOrderIDs, nextOrder) {
			return boarddomain.ErrInvalidOrder
		}
		return nil
	}

	if boarddomain.ContainsID(prevOrder, cardID) {
		return boarddomain.ErrInvalidOrder
	}
	for _, id := range prevOrder {
		if boarddomain.ContainsID(nextOrder, id) {
			return boarddomain.ErrInvalidOrder
		}
	}
	current := idSet(prev.CardOrderIDs, next.CardOrderIDs)
	proposed := idSet(prevOrder, nextOrder)
	if len(current) != len(proposed) {
		return boarddomain.ErrInvalidOrder
	}
	for id := range proposed {
		if _, ok := current[id]; !ok {
			return boarddomain.ErrInvalidOrder
		}
	}
	return nil
}

func lockColumnForMember(ctx context.Context, repo boarddomain.Repository, columnID, userID snowflake.ID) (*boarddomain.Column, error) {
	column, err := repo.LockColumn(ctx, columnID)
	if err != nil {
		return nil, err
	}
	if column == nil {
		return nil, boarddomain.ErrColumnNotFound
	}
	if _, err := lockBoardForMember(ctx, repo, column.BoardID, userID); err != nil {
		return nil, hiddenAs(err, boarddomain.ErrColumnNotFound)
	}
	return column, nil
}

func isPermutation(current, next []snowflake.ID) bool {
	if len(current) != len(next) || hasDuplicates(next) {
		return false
	}
	set := idSet(current)
	if len(set) != len(current) {
		return false
	}
	for _, id := range next {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}

func hasDuplicates(ids []snowflake.ID) bool {
	return len(idSet(ids)) != len(ids)
}

func sameIDs(a, b []snowflake.ID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func idSet(lists ...[]snowflake.ID) map[snowflake.ID]struct{} {
	set := map[snowflake.ID]struct{}{}
	for _, list := range lists {
		for _, id := range list {
			set[id] = struct{}{}
		}
	}
	return set
}

func toIDs(ids []snowflake.ID) boarddomain.IDs {
	return append(boarddomain.IDs{}, ids...)
}
