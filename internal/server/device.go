package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	submissiondomain "github.com/smallbiznis/smartinvoice/internal/submission/domain"
)

func (s *Server) GetStatus(c *gin.Context) {
	status, err := s.deviceSvc.Status(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"initialized": status.Initialized,
		"environment": s.cfg.DeviceEnvironment(),
		"device":      status,
	})
}

func (s *Server) InitializeDevice(c *gin.Context) {
	var req submissiondomain.InitRequest
	if err := decodeJSON(c, &req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.submitSvc.InitializeDevice(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, withReference(err, referenceOfResult(result)))
		return
	}
	c.Set("reference", result.Reference)

	if !result.Success {
		message := result.Error
		if message == "" {
			message = "Initialization failed"
		}
		c.JSON(resultStatus(result), gin.H{
			"success":     false,
			"message":     message,
			"reference":   result.Reference,
			"status_code": result.StatusCode,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Device successfully initialized",
		"reference": result.Reference,
		"result":    result.Data,
	})
}

func (s *Server) CheckHealth(c *gin.Context) {
	health, err := s.submitSvc.HealthCheck(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := http.StatusOK
	if !health.Success {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, health)
}
