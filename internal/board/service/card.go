package service

import (
	"context"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	boarddomain "github.com/smallbiznis/taskboard/internal/board/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func (s *Service) CreateCard(ctx context.Context, userID snowflake.ID, req boarddomain.CreateCardRequest) (*boarddomain.Card, error) {
	if req.BoardID == 0 {
		return nil, boarddomain.ErrInvalidBoard
	}
	if req.ColumnID == 0 {
		return nil, boarddomain.ErrInvalidColumn
	}
	title, err := validateTitle(req.Title)
	if err != nil {
		return nil, err
	}
	description := strings.TrimSpace(req.Description)
	if utf8.RuneCountInString(description) > descriptionMaxLen {
		return nil, boarddomain.ErrInvalidDescription
	}

	var card *boarddomain.Card
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		board, err := lockBoardForMember(ctx, repo, req.BoardID, userID)
		if err != nil {
			return err
		}
		column, err := repo.LockColumn(ctx, req.ColumnID)
		if err != nil {
			return err
		}
		if column == nil || column.BoardID != board.ID {
			return boarddomain.ErrColumnNotFound
		}
		if limit := s.limits.Get().MaxCardsPerColumn; limit > 0 && len(column.CardOrderIDs) >= limit {
			return boarddomain.ErrLimitExceeded
		}

		now := s.clock.Now()
		card = &boarddomain.Card{
			ID:          s.genID.Generate(),
			BoardID:     board.ID,
			ColumnID:    column.ID,
			Title:       title,
			Description: description,
			MemberIDs:   boarddomain.IDs{},
			Comments:    datatypes.JSONSlice[boarddomain.Comment]{},
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := repo.InsertCard(ctx, card); err != nil {
			return err
		}

		updated, err := repo.AppendCardOrderID(ctx, column.ID, card.ID)
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
	return card, nil
}

// UpdateCard applies field edits, prepends a comment and adds or removes a
// card member, all against the locked card row.
func (s *Service) UpdateCard(ctx context.Context, userID, cardID snowflake.ID, req boarddomain.UpdateCardRequest) (*boarddomain.Card, error) {
	patch := map[string]any{}
	if req.Title != nil {
		title, err := validateTitle(*req.Title)
		if err != nil {
			return nil, err
		}
		patch["title"] = title
	}
	if req.Description != nil {
		description := strings.TrimSpace(*req.Description)
		if utf8.RuneCountInString(description) > descriptionMaxLen {
			return nil, boarddomain.ErrInvalidDescription
		}
		patch["description"] = description
	}
	if req.Cover != nil {
		cover, err := validateCover(*req.Cover)
		if err != nil {
			return nil, err
		}
		patch["cover"] = cover
	}

	var updated *boarddomain.Card
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		card, err := repo.LockCard(ctx, cardID)
		if err != nil {
			return err
		}
		if card == nil {
			return boarddomain.ErrCardNotFound
		}
		board, err := lockBoardForMember(ctx, repo, card.BoardID, userID)
		if err != nil {
			return hiddenAs(err, boarddomain.ErrCardNotFound)
		}

		if req.Comment != nil {
			comment, err := s.buildComment(userID, *req.Comment)
			if err != nil {
				return err
			}
			comments := make(datatypes.JSONSlice[boarddomain.Comment], 0, len(card.Comments)+1)
			comments = append(comments, comment)
			comments = append(comments, card.Comments...)
			patch["comments"] = comments
		}

		if change := req.MemberChange; change != nil {
			members, err := applyMemberChange(board, card.MemberIDs, *change)
			if err != nil {
				return err
			}
			patch["member_ids"] = members
		}

		if len(patch) == 0 {
			updated = card
			return nil
		}
		patch["updated_at"] = s.clock.Now()

		updated, err = repo.UpdateCard(ctx, card.ID, patch)
		if err != nil {
			return err
		}
		if updated == nil {
			return boarddomain.ErrCardNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) buildComment(userID snowflake.ID, in boarddomain.NewComment) (boarddomain.Comment, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return boarddomain.Comment{}, boarddomain.ErrInvalidComment
	}
	if limit := s.limits.Get().MaxCommentLength; limit > 0 && utf8.RuneCountInString(content) > limit {
		return boarddomain.Comment{}, boarddomain.ErrInvalidComment
	}
	if in.Author.UserID != 0 && in.Author.UserID != userID {
		return boarddomain.Comment{}, boarddomain.ErrInvalidComment
	}

	return boarddomain.Comment{
		UserID:          userID,
		UserEmail:       in.Author.Email,
		UserDisplayName: in.Author.DisplayName,
		UserAvatar:      in.Author.Avatar,
		Content:         content,
		CommentedAt:     s.clock.Now(),
	}, nil
}

func applyMemberChange(board *boarddomain.Board, current boarddomain.IDs, change boarddomain.CardMemberChange) (boarddomain.IDs, error) {
	if change.UserID == 0 {
		return nil, boarddomain.ErrInvalidMember
	}
	switch change.Action {
	case boarddomain.CardMemberAdd:
		if !board.HasMember(change.UserID) {
			return nil, boarddomain.ErrInvalidMember
		}
		next, _ := boarddomain.AppendID(current, change.UserID)
		return toIDs(next), nil
	case boarddomain.CardMemberRemove:
		next, _ := boarddomain.RemoveID(current, change.UserID)
		return toIDs(next), nil
	default:
		return nil, boarddomain.ErrInvalidMember
	}
}

// validateCover accepts an empty value, which clears the cover, or an
// absolute http(s) URL.
func validateCover(raw string) (string, error) {
	cover := strings.TrimSpace(raw)
	if cover == "" {
		return "", nil
	}
	parsed, err := url.Parse(cover)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", boarddomain.ErrInvalidCover
	}
	return cover, nil
}
