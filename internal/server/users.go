package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/taskboard/internal/auth/domain"
)

type loginResponse struct {
	User                  authdomain.PublicUser `json:"user"`
	AccessToken           string                `json:"accessToken"`
	AccessTokenExpiresAt  int64                 `json:"accessTokenExpiresAt"`
	RefreshToken          string                `json:"refreshToken"`
	RefreshTokenExpiresAt int64                 `json:"refreshTokenExpiresAt"`
}

func (s *Server) Register(c *gin.Context) {
	var req authdomain.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	user, err := s.authsvc.Register(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, http.StatusCreated, user)
}

func (s *Server) VerifyAccount(c *gin.Context) {
	var req authdomain.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	user, err := s.authsvc.VerifyAccount(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, http.StatusOK, user)
}

func (s *Server) Login(c *gin.Context) {
	var req authdomain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.authsvc.Login(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.sessions.SetTokens(c, result.AccessToken, result.RefreshToken)
	respondData(c, http.StatusOK, loginResponse{
		User:                  result.User,
		AccessToken:           result.AccessToken,
		AccessTokenExpiresAt:  result.AccessTokenExpiresAt.UnixMilli(),
		RefreshToken:          result.RefreshToken,
		RefreshTokenExpiresAt: result.RefreshTokenExpiresAt.UnixMilli(),
	})
}

func (s *Server) Logout(c *gin.Context) {
	s.sessions.Clear(c)
	respondData(c, http.StatusOK, gin.H{"loggedOut": true})
}

func (s *Server) RefreshToken(c *gin.Context) {
	raw, ok := s.sessions.ReadRefreshToken(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	result, err := s.authsvc.RefreshToken(c.Request.Context(), raw)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.sessions.SetTokens(c, result.AccessToken, "")
	respondData(c, http.StatusOK, gin.H{
		"accessToken":          result.AccessToken,
		"accessTokenExpiresAt": result.AccessTokenExpiresAt.UnixMilli(),
	})
}

func (s *Server) GetMe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	user, err := s.authsvc.GetMe(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, http.StatusOK, user)
}

func (s *Server) UpdateMe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req authdomain.UpdateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	user, err := s.authsvc.UpdateMe(c.Request.Context(), userID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, http.StatusOK, user)
}
