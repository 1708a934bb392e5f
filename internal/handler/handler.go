// Package handler holds helpers shared by the HTTP handler packages.
package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/jobboard-api/internal/middleware"
	"github.com/jwalitptl/jobboard-api/internal/model"
	"github.com/jwalitptl/jobboard-api/pkg/auth"
	apperrors "github.com/jwalitptl/jobboard-api/pkg/errors"
)

// ParseID reads a uuid path parameter.
func ParseID(c *gin.Context, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		return uuid.Nil, apperrors.BadRequest("invalid "+param, err)
	}
	return id, nil
}

// Identity returns the authenticated caller. Routes using it sit behind
// AuthMiddleware.Authenticate, so a missing identity is a 401.
func Identity(c *gin.Context) (auth.Identity, error) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		return auth.Identity{}, apperrors.Unauthorized(nil)
	}
	return identity, nil
}

// ListOptions parses the query string of a list endpoint; extra names the
// keys the endpoint accepts beyond paging.
func ListOptions(c *gin.Context, extra ...string) (model.ListOptions, error) {
	opts, err := model.ParseListOptions(c.Request.URL.Query(), extra...)
	if err != nil {
		return model.ListOptions{}, apperrors.BadRequest(err.Error(), err)
	}
	return opts, nil
}

// Fail hands err to the error middleware and stops the chain.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
