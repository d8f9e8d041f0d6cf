package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type bindMessages map[string]map[string]string

type roomURI struct {
	Code string `uri:"code" binding:"required,roomcode"`
}

type connectQuery struct {
	PlayerID string `form:"playerId" binding:"omitempty,max=64"`
	Name     string `form:"name" binding:"omitempty,name"`
	Token    string `form:"token"`
}

var roomURIMessages = bindMessages{
	"Code": {
		"required": "room code is required",
		"roomcode": "room code must be 6 letters or digits",
	},
}

var connectMessages = bindMessages{
	"PlayerID": {"max": "player id is too long"},
	"Name":     {"name": "name must be 24 safe characters or fewer"},
}

func bindURI(c *gin.Context, req any, messages bindMessages) bool {
	if err := c.ShouldBindUri(req); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": resolveBindError(err, messages, "room not found")})
		return false
	}
	return true
}

func bindQuery(c *gin.Context, req any, messages bindMessages) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": resolveBindError(err, messages, "")})
		return false
	}
	return true
}

func resolveBindError(err error, messages bindMessages, fallback string) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, verr := range verrs {
			if fieldMsgs, ok := messages[verr.Field()]; ok {
				if msg, ok := fieldMsgs[verr.Tag()]; ok {
					return msg
				}
			}
		}
	}
	if fallback != "" {
		return fallback
	}
	return "invalid request"
}
