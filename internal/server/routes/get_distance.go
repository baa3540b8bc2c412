package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/openrepurpose/netprox/internal/server/middleware"
	"github.com/openrepurpose/netprox/pkg/distmat"
	"github.com/openrepurpose/netprox/pkg/geneindex"
)

func GetDistanceHandler(c echo.Context) error {
	type distanceQuery struct {
		Gene1 string `query:"gene1" validate:"required"`
		Gene2 string `query:"gene2" validate:"required"`
	}

	type distanceResponse struct {
		Gene1     string `json:"gene1"`
		Gene2     string `json:"gene2"`
		Distance  int    `json:"distance"`
		Reachable bool   `json:"reachable"`
	}

	query := new(distanceQuery)
	if err := c.Bind(query); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := c.Validate(query); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	app := c.(*middleware.AppContext).App

	i, err := app.Index.Lookup(query.Gene1)
	if err != nil {
		return unknownGeneResponse(c, err)
	}
	j, err := app.Index.Lookup(query.Gene2)
	if err != nil {
		return unknownGeneResponse(c, err)
	}

	d := app.Matrix.Distance(i, j)
	resp := distanceResponse{
		Gene1:     query.Gene1,
		Gene2:     query.Gene2,
		Reachable: d != distmat.Sentinel,
	}
	if resp.Reachable {
		resp.Distance = int(d)
	} else {
		resp.Distance = -1
	}

	return c.JSON(http.StatusOK, resp)
}

func unknownGeneResponse(c echo.Context, err error) error {
	if errors.Is(err, geneindex.ErrUnknownGene) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
}
