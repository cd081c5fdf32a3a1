package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/newuzbdev/edunite/internal/middleware"
	"github.com/newuzbdev/edunite/internal/models"
	"github.com/newuzbdev/edunite/internal/scheduling"
	appErrors "github.com/newuzbdev/edunite/pkg/errors"
)

// clock is swapped in tests.
var clock = time.Now

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func today() time.Time {
	y, m, d := clock().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// dateQuery reads a YYYY-MM-DD query parameter, defaulting to today.
func dateQuery(c *gin.Context, key string) (time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return today(), nil
	}
	date, err := scheduling.ParseDate(raw)
	if err != nil {
		return time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, key+": "+err.Error())
	}
	return date, nil
}

// monthQuery reads a YYYY-MM query parameter, defaulting to the current month.
func monthQuery(c *gin.Context, key string) (time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return scheduling.MonthStart(today()), nil
	}
	month, err := scheduling.ParseMonth(raw)
	if err != nil {
		return time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, key+": "+err.Error())
	}
	return month, nil
}

func invalidPayload(err error) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload")
}
