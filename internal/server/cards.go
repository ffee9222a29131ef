package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	boarddomain "github.com/smallbiznis/taskboard/internal/board/domain"
)

type commentToAdd struct {
	Content string `json:"content"`
}

type updateCardBody struct {
	boarddomain.UpdateCardRequest
	CommentToAdd *commentToAdd `json:"commentToAdd,omitempty"`
}

func (s *Server) CreateCard(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req boarddomain.CreateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	card, err := s.boardSvc.CreateCard(c.Request.Context(), userID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, http.StatusCreated, card)
}

// UpdateCard edits card fields. A comment is stamped with the caller's
// current public profile.
func (s *Server) UpdateCard(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	cardID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var body updateCardBody
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req := body.UpdateCardRequest
	if body.CommentToAdd != nil {
		author, err := s.authsvc.GetMe(c.Request.Context(), userID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		req.Comment = &boarddomain.NewComment{
			Author: boarddomain.CommentAuthor{
				UserID:      author.ID,
				Email:       author.Email,
				DisplayName: author.DisplayName,
				Avatar:      author.Avatar,
			},
			Content: body.CommentToAdd.Content,
		}
	}

	card, err := s.boardSvc.UpdateCard(c.Request.Context(), userID, cardID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, http.StatusOK, card)
}
