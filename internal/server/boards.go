package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	boarddomain "github.com/smallbiznis/taskboard/internal/board/domain"
	"github.com/smallbiznis/taskboard/pkg/db/pagination"
)

func (s *Server) ListBoards(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, newValidationError("page", "invalid_page", "page and itemsPerPage must be integers"))
		return
	}

	result, err := s.boardSvc.ListBoards(c.Request.Context(), userID, page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, http.StatusOK, result)
}

func (s *Server) CreateBoard(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req boarddomain.CreateBoardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	board, err := s.boardSvc.CreateBoard(c.Request.Context(), userID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, http.StatusCreated, board)
}

func (s *Server) GetBoard(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	boardID, ok := pathID(c, "id")
	if !ok {
		return
	}
	c.Set("board_id", boardID.String())

	detail, err := s.boardSvc.GetBoardDetail(c.Request.Context(), userID, boardID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, http.StatusOK, detail)
}

func (s *Server) UpdateBoard(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	boardID, ok := pathID(c, "id")
	if !ok {
		return
	}
	c.Set("board_id", boardID.String())

	var req boarddomain.UpdateBoardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	board, err := s.boardSvc.UpdateBoard(c.Request.Context(), userID, boardID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, http.StatusOK, board)
}

// MoveCard persists a drag of one card within or across columns.
func (s *Server) MoveCard(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req boarddomain.MoveCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.boardSvc.MoveCard(c.Request.Context(), userID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, http.StatusOK, result)
}

func (s *Server) ReconcileBoard(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	boardID, ok := pathID(c, "id")
	if !ok {
		return
	}
	c.Set("board_id", boardID.String())

	report, err := s.reconciler.ReconcileBoard(c.Request.Context(), userID, boardID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, http.StatusOK, report)
}
