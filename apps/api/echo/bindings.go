package echoapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/andromeda0004/My-Tuition/core"
)

var orderingParam = "ordering"

// Ordering binds `?ordering=-balanceFees,name` (a leading "-" means descending).
type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// response is the envelope of every successful request.
type response struct {
	Success bool        `json:"success"`
	Count   *int        `json:"count,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func respond(ctx echo.Context, code int, data interface{}, message ...string) error {
	res := response{Success: true, Data: data}
	if len(message) > 0 {
		res.Message = message[0]
	}
	return ctx.JSON(code, res)
}

func respondList(ctx echo.Context, data interface{}, count int) error {
	return ctx.JSON(http.StatusOK, response{Success: true, Count: &count, Data: data})
}
