package domain

import "errors"

var (
	ErrInvalidInvitation  = errors.New("invalid_invitation")
	ErrInvalidStatus      = errors.New("invalid_status")
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrSelfInvitation     = errors.New("self_invitation")
	ErrReferenceNotFound  = errors.New("invitation_reference_not_found")
	ErrInvitationNotFound = errors.New("invitation_not_found")
	ErrBoardNotFound      = errors.New("invitation_board_not_found")
	ErrAlreadyMember      = errors.New("already_member")
	ErrAlreadyResponded   = errors.New("invitation_already_responded")
)
