package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	invitationdomain "github.com/smallbiznis/taskboard/internal/invitation/domain"
)

func (s *Server) ListInvitations(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	invitations, err := s.invitationSvc.ListInvitations(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, http.StatusOK, invitations)
}

func (s *Server) CreateBoardInvitation(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req invitationdomain.CreateBoardInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	invitation, err := s.invitationSvc.CreateBoardInvitation(c.Request.Context(), userID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, http.StatusCreated, invitation)
}

func (s *Server) RespondToInvitation(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	invitationID, ok := pathID(c, "invitationId")
	if !ok {
		return
	}

	var req invitationdomain.RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.InvitationID = invitationID

	invitation, err := s.invitationSvc.RespondToInvitation(c.Request.Context(), userID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, http.StatusOK, invitation)
}
