package echoapi

import (
	"github.com/labstack/echo/v4"
)

// idempotencyKeyHeader lets clients replay a transition request safely.
const idempotencyKeyHeader = "Idempotency-Key"

func getIdempotencyKey(ctx echo.Context) string {
	return ctx.Request().Header.Get(idempotencyKeyHeader)
}

type (
	SuccessResponse struct {
		Success string `json:"success"`
	}

	DestroyMultipleRequest struct {
		IDs []string `query:"id"`
	}
)
