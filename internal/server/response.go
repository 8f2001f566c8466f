package server

import (
	"time"

	"github.com/gin-gonic/gin"
)

// SuccessResponse builds the standard success envelope.
func SuccessResponse(message string, data interface{}) gin.H {
	response := gin.H{
		"success":   true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	if data != nil {
		response["data"] = data
	}

	return response
}

// ErrorResponse builds the standard error envelope.
func ErrorResponse(code string, message string) gin.H {
	return gin.H{
		"success":   false,
		"error":     code,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}
}
