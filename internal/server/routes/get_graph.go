package routes

import (
	"errors"
	"net/http"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/OFFIS-RIT/kgbuilder/pkg/store"
)

// minSearchLength is the shortest query the entity search answers.
const minSearchLength = 2

// QueryGraphHandler returns the entities matching keyword and type with
// the relations among them.
func QueryGraphHandler(c echo.Context) error {
	type graphQuery struct {
		Keyword string `query:"keyword"`
		Type    string `query:"type"`
		Limit   int    `query:"limit" validate:"gte=0"`
		Offset  int    `query:"offset" validate:"gte=0"`
	}

	data := new(graphQuery)
	if err := c.Bind(data); err != nil {
		return fail(c, http.StatusBadRequest, msgInvalidRequest)
	}
	if err := c.Validate(data); err != nil {
		return fail(c, http.StatusBadRequest, msgInvalidRequest)
	}

	view, err := app(c).Graph.QueryGraph(c.Request().Context(), store.GraphFilter{
		Keyword: data.Keyword,
		Type:    data.Type,
		Limit:   data.Limit,
		Offset:  data.Offset,
	}.Normalize())
	if err != nil {
		return failErr(c, "query graph", err)
	}
	return ok(c, view)
}

type searchHit struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// SearchEntitiesHandler serves autocompletion. Queries shorter than two
// characters answer with an empty list.
func SearchEntitiesHandler(c echo.Context) error {
	type searchQuery struct {
		Q     string `query:"q"`
		Type  string `query:"type"`
		Limit int    `query:"limit" validate:"gte=0"`
	}

	data := new(searchQuery)
	if err := c.Bind(data); err != nil {
		return fail(c, http.StatusBadRequest, msgInvalidRequest)
	}
	if err := c.Validate(data); err != nil {
		return fail(c, http.StatusBadRequest, msgInvalidRequest)
	}
	if utf8.RuneCountInString(data.Q) < minSearchLength {
		return ok(c, []searchHit{})
	}
	if data.Limit == 0 {
		data.Limit = 10
	}

	view, err := app(c).Graph.QueryGraph(c.Request().Context(), store.GraphFilter{
		Keyword: data.Q,
		Type:    data.Type,
		Limit:   data.Limit,
	}.Normalize())
	if err != nil {
		return failErr(c, "search entities", err)
	}

	hits := make([]searchHit, 0, len(view.Nodes))
	for _, n := range view.Nodes {
		hits = append(hits, searchHit{ID: n.ID, Name: n.Name, Type: n.Type})
	}
	return ok(c, hits)
}

// EntityNetworkHandler returns the neighbourhood of an entity.
func EntityNetworkHandler(c echo.Context) error {
	type networkQuery struct {
		EntityID string `param:"entityId" validate:"required"`
		Depth    int    `query:"depth" validate:"gte=0"`
	}

	data := new(networkQuery)
	if err := c.Bind(data); err != nil {
		return fail(c, http.StatusBadRequest, msgInvalidRequest)
	}
	if err := c.Validate(data); err != nil {
		return fail(c, http.StatusBadRequest, msgInvalidRequest)
	}

	view, err := app(c).Graph.EntityNetwork(c.Request().Context(), data.EntityID, store.NormalizeDepth(data.Depth))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fail(c, http.StatusNotFound, "实体不存在")
		}
		return failErr(c, "entity network", err)
	}
	return ok(c, view)
}

func GraphStatsHandler(c echo.Context) error {
	stats, err := app(c).Graph.Stats(c.Request().Context())
	if err != nil {
		return failErr(c, "graph stats", err)
	}
	return ok(c, stats)
}
