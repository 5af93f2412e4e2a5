package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	pricedomain "github.com/smallbiznis/condofee/internal/price/domain"
)

func (s *Server) ResolvePrice(c *gin.Context) {
	feeTypeID, err := requiredID("fee_type_id", c.Query("fee_type_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	buildingID, err := requiredID("building_id", c.Query("building_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resolved, err := s.priceSvc.GetPrice(c.Request.Context(), feeTypeID, buildingID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resolved})
}

func (s *Server) ListPriceOverrides(c *gin.Context) {
	buildingID, err := optionalID("building_id", c.Query("building_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	feeTypeID, err := optionalID("fee_type_id", c.Query("fee_type_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items, err := s.priceSvc.ListOverrides(c.Request.Context(), pricedomain.ListFilter{
		BuildingID: buildingID,
		FeeTypeID:  feeTypeID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) GetPriceTable(c *gin.Context) {
	buildingID, err := pathID(c, "buildingId", "building_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	rows, err := s.priceSvc.PriceTable(c.Request.Context(), buildingID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": rows})
}

func (s *Server) UpsertPriceOverride(c *gin.Context) {
	var req pricedomain.UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	override, err := s.priceSvc.UpsertOverride(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": override})
}

func (s *Server) BulkUpsertPriceOverrides(c *gin.Context) {
	buildingID, err := pathID(c, "buildingId", "building_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req pricedomain.BulkUpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}
	req.BuildingID = buildingID

	updated, err := s.priceSvc.BulkUpsert(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"updated": updated}})
}

func (s *Server) DeletePriceOverride(c *gin.Context) {
	id, err := pathID(c, "id", "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.priceSvc.DeleteOverride(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) DeletePriceOverrideFor(c *gin.Context) {
	buildingID, err := pathID(c, "buildingId", "building_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	feeTypeID, err := pathID(c, "feeTypeId", "fee_type_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.priceSvc.DeleteOverrideFor(c.Request.Context(), feeTypeID, buildingID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ResetBuildingPrices drops every override of the building so it bills at
// the defaults again.
func (s *Server) ResetBuildingPrices(c *gin.Context) {
	buildingID, err := pathID(c, "buildingId", "building_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	deleted, err := s.priceSvc.ResetBuilding(c.Request.Context(), buildingID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": deleted}})
}
