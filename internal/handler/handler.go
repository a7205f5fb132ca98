package handler

import (
	"errors"
	"net/http"

	"app/internal/usecase"
	"app/internal/validator"

	"github.com/labstack/echo/v4"
)

type errorResponse struct {
	Error string `json:"error"`
}

func errorJSON(msg string) errorResponse {
	return errorResponse{Error: msg}
}

// usecaseのerrorをHTTPステータスに変換する。handlerはここだけ見ればいい。
func writeUsecaseError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, usecase.ErrValidation),
		errors.Is(err, validator.ErrInvalidInput),
		errors.Is(err, validator.ErrInvalidRefresh):
		return c.JSON(http.StatusBadRequest, errorJSON("VALIDATION_ERROR"))
	case errors.Is(err, usecase.ErrSelfStatusChange):
		return c.JSON(http.StatusBadRequest, errorJSON("CANNOT_MODIFY_SELF"))
	case errors.Is(err, usecase.ErrUnauthorized),
		errors.Is(err, usecase.ErrSecurityIncident):
		return c.JSON(http.StatusUnauthorized, errorJSON("UNAUTHORIZED"))
	case errors.Is(err, usecase.ErrAccountRejected):
		return c.JSON(http.StatusForbidden, errorJSON("ACCOUNT_REJECTED"))
	case errors.Is(err, usecase.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorJSON("NOT_FOUND"))
	case errors.Is(err, usecase.ErrConflict),
		errors.Is(err, validator.ErrEmailAlreadyUsed):
		return c.JSON(http.StatusConflict, errorJSON("CONFLICT"))
	default:
		return c.JSON(http.StatusInternalServerError, errorJSON("INTERNAL"))
	}
}
