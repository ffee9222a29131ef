package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type CreateBoardInvitationRequest struct {
	BoardID      snowflake.ID `json:"boardId"`
	InviteeEmail string       `json:"inviteeEmail"`
}

type RespondRequest struct {
	InvitationID snowflake.ID `json:"-"`
	Status       Status       `json:"status"`
}

type Service interface {
	CreateBoardInvitation(ctx context.Context, inviterID snowflake.ID, req CreateBoardInvitationRequest) (*InvitationView, error)
	ListInvitations(ctx context.Context, userID snowflake.ID) ([]InvitationView, error)
	RespondToInvitation(ctx context.Context, userID snowflake.ID, req RespondRequest) (*InvitationView, error)
}
