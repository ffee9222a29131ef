package domain

import "errors"

var (
	ErrInvalidUser        = errors.New("invalid_user")
	ErrInvalidBoard       = errors.New("invalid_board")
	ErrInvalidColumn      = errors.New("invalid_column")
	ErrInvalidCard        = errors.New("invalid_card")
	ErrInvalidTitle       = errors.New("invalid_title")
	ErrInvalidDescription = errors.New("invalid_description")
	ErrInvalidType        = errors.New("invalid_type")
	ErrInvalidOrder       = errors.New("invalid_order")
	ErrInvalidMove        = errors.New("invalid_move")
	ErrInvalidComment     = errors.New("invalid_comment")
	ErrInvalidCover       = errors.New("invalid_cover")
	ErrInvalidMember      = errors.New("invalid_member")
	ErrLimitExceeded      = errors.New("limit_exceeded")

	ErrBoardNotFound  = errors.New("board_not_found")
	ErrColumnNotFound = errors.New("column_not_found")
	ErrCardNotFound   = errors.New("card_not_found")
)
