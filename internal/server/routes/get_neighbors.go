package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/openrepurpose/netprox/internal/server/middleware"
	"github.com/openrepurpose/netprox/pkg/distmat"
)

// GetNeighborhoodHandler lists the genes within a hop radius of one gene,
// read straight off the gene's matrix row.
func GetNeighborhoodHandler(c echo.Context) error {
	type neighborhoodQuery struct {
		MaxDistance int `query:"max_distance" validate:"min=0"`
		Limit       int `query:"limit" validate:"min=0"`
	}

	type neighbor struct {
		GeneID   string `json:"gene_id"`
		Distance int    `json:"distance"`
	}

	type neighborhoodResponse struct {
		GeneID      string     `json:"gene_id"`
		MaxDistance int        `json:"max_distance"`
		Neighbors   []neighbor `json:"neighbors"`
		Truncated   bool       `json:"truncated"`
	}

	query := &neighborhoodQuery{MaxDistance: 1, Limit: 1000}
	if err := c.Bind(query); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := c.Validate(query); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	app := c.(*middleware.AppContext).App

	geneID := c.Param("gene_id")
	i, err := app.Index.Lookup(geneID)
	if err != nil {
		return unknownGeneResponse(c, err)
	}

	resp := neighborhoodResponse{
		GeneID:      geneID,
		MaxDistance: query.MaxDistance,
		Neighbors:   []neighbor{},
	}

	for j := 0; j < app.Matrix.N(); j++ {
		if j == i {
			continue
		}
		d := app.Matrix.Distance(i, j)
		if d == distmat.Sentinel || int(d) > query.MaxDistance {
			continue
		}
		if query.Limit > 0 && len(resp.Neighbors) >= query.Limit {
			resp.Truncated = true
			break
		}
		resp.Neighbors = append(resp.Neighbors, neighbor{
			GeneID:   app.Index.ID(j),
			Distance: int(d),
		})
	}

	return c.JSON(http.StatusOK, resp)
}
