package v1

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/hookwatch/internal/domain"
)

// scopesFromQuery reads the optional workspace_id, terminal_session_id and
// run_id parameters. Omitting all three yields no scope, meaning all active
// scopes.
func scopesFromQuery(c echo.Context) []domain.ScopeKey {
	ws := c.QueryParam("workspace_id")
	term := c.QueryParam("terminal_session_id")
	run := c.QueryParam("run_id")
	if ws == "" && term == "" && run == "" {
		return nil
	}
	return []domain.ScopeKey{domain.NewScopeKey(ws, term, run)}
}

func intParam(c echo.Context, name string, def int) int {
	v := c.QueryParam(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func int64Param(c echo.Context, name string) int64 {
	n, _ := strconv.ParseInt(c.QueryParam(name), 10, 64)
	return n
}

func listParam(c echo.Context, name string) []string {
	var out []string
	for _, v := range c.QueryParams()[name] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
