package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// parseBoundedInt читает положительное число из query. Пустое значение дает def,
// значения больше upper урезаются до upper.
func parseBoundedInt(raw, name string, def, upper int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return min(value, upper), nil
}

func parsePagination(c echo.Context, defaultLimit, maxLimit int) (int, int, error) {
	limit, err := parseBoundedInt(c.QueryParam("limit"), "limit", defaultLimit, maxLimit)
	if err != nil {
		return 0, 0, err
	}

	offset := 0
	if raw := strings.TrimSpace(c.QueryParam("offset")); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, errors.New("invalid offset")
		}
	}

	return limit, offset, nil
}

func parseOptionalBool(raw string) (*bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
