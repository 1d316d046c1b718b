package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admission-portal-api/internal/middleware"
	"github.com/noah-isme/admission-portal-api/internal/models"
	appErrors "github.com/noah-isme/admission-portal-api/pkg/errors"
)

func sessionFromContext(c *gin.Context) *models.Session {
	return middleware.Session(c)
}

func yearParam(c *gin.Context) (int, error) {
	year, err := strconv.Atoi(strings.TrimSpace(c.Param("year")))
	if err != nil || year < 1900 || year > 9999 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid admission year")
	}
	return year, nil
}

func intParam(c *gin.Context, name string) (int, error) {
	value, err := strconv.Atoi(c.Param(name))
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid "+name)
	}
	return value, nil
}
