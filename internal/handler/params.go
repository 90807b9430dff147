package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/orchids/sandtube/pkg/response"
	"github.com/orchids/sandtube/pkg/validator"
)

// pathID reads and validates a path parameter, writing the error response
// itself when the value is unusable.
func pathID(c *gin.Context, name, field string) (string, bool) {
	id := c.Param(name)
	if err := validator.ValidateID(field, id); err != nil {
		response.ValidationError(c, err.Error())
		return "", false
	}
	return id, true
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.ValidationError(c, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func queryLimit(c *gin.Context, def, max int) (int, bool) {
	limit, err := validator.ParseLimit(c.Query("limit"), def, max)
	if err != nil {
		response.ValidationError(c, err.Error())
		return 0, false
	}
	return limit, true
}

type userRequest struct {
	UserID string `json:"user_id" binding:"required"`
}
