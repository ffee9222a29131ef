package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	boarddomain "github.com/smallbiznis/taskboard/internal/board/domain"
)

func (s *Server) CreateColumn(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req boarddomain.CreateColumnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	column, err := s.boardSvc.CreateColumn(c.Request.Context(), userID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, http.StatusCreated, column)
}

func (s *Server) UpdateColumn(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	columnID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req boarddomain.UpdateColumnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	column, err := s.boardSvc.UpdateColumn(c.Request.Context(), userID, columnID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, http.StatusOK, column)
}

// DeleteColumn removes the column, its cards and its entry in the board order.
func (s *Server) DeleteColumn(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	columnID, ok := pathID(c, "id")
	if !ok {
		return
	}

	result, err := s.boardSvc.DeleteColumn(c.Request.Context(), userID, columnID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, http.StatusOK, result)
}
