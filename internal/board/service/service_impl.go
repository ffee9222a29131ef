package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	boarddomain "github.com/smallbiznis/taskboard/internal/board/domain"
	"github.com/smallbiznis/taskboard/internal/clock"
	"github.com/smallbiznis/taskboard/internal/config"
	obsmetrics "github.com/smallbiznis/taskboard/internal/observability/metrics"
	"github.com/smallbiznis/taskboard/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

const (
	titleMinLen       = 3
	titleMaxLen       = 50
	descriptionMinLen = 3
	descriptionMaxLen = 256
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    boarddomain.Repository
	Clock   clock.Clock
	Limits  *config.LimitsHolder `optional:"true"`
	Metrics *obsmetrics.Metrics  `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    boarddomain.Repository
	clock   clock.Clock
	limits  *config.LimitsHolder
	metrics *obsmetrics.Metrics
}

func New(p Params) boarddomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("board.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		clock:   p.Clock,
		limits:  p.Limits,
		metrics: p.Metrics,
	}
}

func (s *Service) CreateBoard(ctx context.Context, userID snowflake.ID, req boarddomain.CreateBoardRequest) (*boarddomain.Board, error) {
	if userID == 0 {
		return nil, boarddomain.ErrInvalidUser
	}
	title, err := validateTitle(req.Title)
	if err != nil {
		return nil, err
	}
	description, err := validateDescription(req.Description)
	if err != nil {
		return nil, err
	}
	if !req.Type.Valid() {
		return nil, boarddomain.ErrInvalidType
	}

	now := s.clock.Now()
	board := &boarddomain.Board{
		ID:             s.genID.Generate(),
		Title:          title,
		Slug:           slug.Make(title),
		Description:    description,
		Type:           req.Type,
		ColumnOrderIDs: boarddomain.IDs{},
		OwnerIDs:       boarddomain.IDs{userID},
		MemberIDs:      boarddomain.IDs{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.InsertBoard(ctx, board); err != nil {
		return nil, err
	}

	s.log.Info("board created", zap.String("board_id", board.ID.String()), zap.String("user_id", userID.String()))
	return board, nil
}

// GetBoardDetail returns ErrBoardNotFound both for a missing board and for a
// board the viewer does not belong to.
func (s *Service) GetBoardDetail(ctx context.Context, userID, boardID snowflake.ID) (*boarddomain.BoardDetail, error) {
	var detail *boarddomain.BoardDetail
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		board, err := repo.FindBoardForMember(ctx, boardID, userID)
		if err != nil {
			return err
		}
		if board == nil {
			return boarddomain.ErrBoardNotFound
		}

		columns, err := repo.ListColumnsByBoard(ctx, board.ID)
		if err != nil {
			return err
		}
		cards, err := repo.ListCardsByBoard(ctx, board.ID)
		if err != nil {
			return err
		}

		detail = assembleDetail(board, columns, cards)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func assembleDetail(board *boarddomain.Board, columns []*boarddomain.Column, cards []*boarddomain.Card) *boarddomain.BoardDetail {
	byColumn := make(map[snowflake.ID][]boarddomain.Card, len(columns))
	for _, card := range cards {
		byColumn[card.ColumnID] = append(byColumn[card.ColumnID], *card)
	}

	detail := &boarddomain.BoardDetail{
		Board:   *board,
		Columns: make([]boarddomain.ColumnDetail, 0, len(columns)),
	}
	for _, column := range columns {
		columnCards := byColumn[column.ID]
		if columnCards == nil {
			columnCards = []boarddomain.Card{}
		}
		detail.Columns = append(detail.Columns, boarddomain.ColumnDetail{
			Column: *column,
			Cards:  columnCards,
		})
	}
	return detail
}

// ListBoards sorts the viewer's boards by title with English collation. The
// page and the total come from the same result set.
func (s *Service) ListBoards(ctx context.Context, userID snowflake.ID, page pagination.Pagination) (*boarddomain.ListBoardsResult, error) {
	if userID == 0 {
		return nil, boarddomain.ErrInvalidUser
	}
	page = page.Normalize(s.limits.Get().MaxPageSize)

	boards, err := s.repo.ListBoardsForMember(ctx, userID)
	if err != nil {
		return nil, err
	}

	col := collate.New(language.English)
	sort.SliceStable(boards, func(i, j int) bool {
		if c := col.CompareString(boards[i].Title, boards[j].Title); c != 0 {
			return c < 0
		}
		return boards[i].ID < boards[j].ID
	})

	total := len(boards)
	start, end := pagination.Window(total, page)
	return &boarddomain.ListBoardsResult{
		Boards:     boards[start:end],
		TotalCount: total,
		PageInfo:   pagination.BuildPageInfo(total, page),
	}, nil
}

func (s *Service) UpdateBoard(ctx context.Context, userID, boardID snowflake.ID, req boarddomain.UpdateBoardRequest) (*boarddomain.Board, error) {
	patch := map[string]any{}
	if req.Title != nil {
		title, err := validateTitle(*req.Title)
		if err != nil {
			return nil, err
		}
		patch["title"] = title
		patch["slug"] = slug.Make(title)
	}
	if req.Description != nil {
		description, err := validateDescription(*req.Description)
		if err != nil {
			return nil, err
		}
		patch["description"] = description
	}
	if req.Type != nil {
		if !req.Type.Valid() {
			return nil, boarddomain.ErrInvalidType
		}
		patch["type"] = *req.Type
	}

	var updated *boarddomain.Board
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		board, err := lockBoardForMember(ctx, repo, boardID, userID)
		if err != nil {
			return err
		}

		if req.ColumnOrderIDs != nil {
			next := *req.ColumnOrderIDs
			if !isPermutation(board.ColumnOrderIDs, next) {
				return boarddomain.ErrInvalidOrder
			}
			patch["column_order_ids"] = toIDs(next)
		}
		if len(patch) == 0 {
			updated = board
			return nil
		}
		patch["updated_at"] = s.clock.Now()

		updated, err = repo.UpdateBoard(ctx, board.ID, patch)
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
	return updated, nil
}

// lockBoardForMember locks the board row and hides it from non-members.
func lockBoardForMember(ctx context.Context, repo boarddomain.Repository, boardID, userID snowflake.ID) (*boarddomain.Board, error) {
	board, err := repo.LockBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if board == nil || !board.HasMember(userID) {
		return nil, boarddomain.ErrBoardNotFound
	}
	return board, nil
}

// hiddenAs reports a board the actor cannot see as notFound and passes any
// other error through.
func hiddenAs(err, notFound error) error {
	if errors.Is(err, boarddomain.ErrBoardNotFound) {
		return notFound
	}
	return err
}

func validateTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if n := utf8.RuneCountInString(title); n < titleMinLen || n > titleMaxLen {
		return "", boarddomain.ErrInvalidTitle
	}
	return title, nil
}

func validateDescription(raw string) (string, error) {
	description := strings.TrimSpace(raw)
	if n := utf8.RuneCountInString(description); n < descriptionMinLen || n > descriptionMaxLen {
		return "", boarddomain.ErrInvalidDescription
	}
	return description, nil
}
