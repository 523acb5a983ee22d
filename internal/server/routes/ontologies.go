package routes

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/OFFIS-RIT/kgbuilder/internal/util"
	"github.com/OFFIS-RIT/kgbuilder/pkg/common"
	"github.com/OFFIS-RIT/kgbuilder/pkg/store"
)

// GetOntologiesHandler lists the active ontology libraries, newest first.
func GetOntologiesHandler(c echo.Context) error {
	items, err := app(c).Repo.ListOntologies(c.Request().Context())
	if err != nil {
		return failErr(c, "list ontologies", err)
	}
	return ok(c, nonNil(items))
}

func GetOntologyHandler(c echo.Context) error {
	o, err := app(c).Repo.GetOntology(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fail(c, http.StatusNotFound, msgOntologyNotFound)
		}
		return failErr(c, "get ontology", err)
	}
	return ok(c, o)
}

type ontologyBody struct {
	Name          string                       `json:"name" validate:"required"`
	Version       string                       `json:"version"`
	Domain        string                       `json:"domain"`
	Description   string                       `json:"description"`
	IsDefault     bool                         `json:"isDefault"`
	EntityTypes   []common.LibraryEntityType   `json:"entityTypes" validate:"dive"`
	RelationTypes []common.LibraryRelationType `json:"relationTypes" validate:"dive"`
}

func CreateOntologyHandler(c echo.Context) error {
	data := new(ontologyBody)
	if err := c.Bind(data); err != nil {
		return fail(c, http.StatusBadRequest, msgInvalidRequest)
	}
	if err := c.Validate(data); err != nil {
		return fail(c, http.StatusBadRequest, msgInvalidRequest)
	}

	now := time.Now()
	o := &common.OntologyLibrary{
		ID:            util.NewID(),
		Name:          data.Name,
		Version:       data.Version,
		Domain:        data.Domain,
		Description:   data.Description,
		IsActive:      true,
		IsDefault:     data.IsDefault,
		EntityTypes:   nonNil(data.EntityTypes),
		RelationTypes: nonNil(data.RelationTypes),
		CreatedBy:     userID(c),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	o.ApplyDefaults()

	if err := app(c).Repo.CreateOntology(c.Request().Context(), o); err != nil {
		return failErr(c, "create ontology", err)
	}
	return c.JSON(http.StatusOK, messageResponse{Success: true, Message: "本体创建成功", Data: o})
}

// UpdateOntologyHandler overwrites the fields present in the body. Id,
// creator and creation time are kept.
func UpdateOntologyHandler(c echo.Context) error {
	ctx := c.Request().Context()
	repo := app(c).Repo

	id := c.Param("id")
	existing, err := repo.GetOntology(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fail(c, http.StatusNotFound, msgOntologyNotFound)
		}
		return failErr(c, "get ontology", err)
	}

	updated := *existing
	if err := (&echo.DefaultBinder{}).BindBody(c, &updated); err != nil {
		return fail(c, http.StatusBadRequest, msgInvalidRequest)
	}
	updated.ID = existing.ID
	updated.CreatedBy = existing.CreatedBy
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now()
	if err := c.Validate(&ontologyBody{
		Name:          updated.Name,
		EntityTypes:   updated.EntityTypes,
		RelationTypes: updated.RelationTypes,
	}); err != nil {
		return fail(c, http.StatusBadRequest, msgInvalidRequest)
	}
	updated.ApplyDefaults()

	if err := repo.UpdateOntology(ctx, &updated); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fail(c, http.StatusNotFound, msgOntologyNotFound)
		}
		return failErr(c, "update ontology", err)
	}
	return c.JSON(http.StatusOK, messageResponse{Success: true, Message: "本体更新成功", Data: &updated})
}

// DeleteOntologyHandler deactivates a library.
func DeleteOntologyHandler(c echo.Context) error {
	if err := app(c).Repo.DeleteOntology(c.Request().Context(), c.Param("id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fail(c, http.StatusNotFound, msgOntologyNotFound)
		}
		return failErr(c, "delete ontology", err)
	}
	return c.JSON(http.StatusOK, messageResponse{Success: true, Message: "本体已删除"})
}
