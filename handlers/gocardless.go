package handlers

import (
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/finwise-app/banklink-api/middleware"
	"github.com/finwise-app/banklink-api/services"
)

// GoCardlessHandler exposes the bank connection flow: institution discovery,
// requisition creation and the authorization callback.
type GoCardlessHandler struct {
	Connections *services.ConnectionService
}

func NewGoCardlessHandler(connections *services.ConnectionService) *GoCardlessHandler {
	return &GoCardlessHandler{Connections: connections}
}

// GetInstitutions lists banks for a country. A country with no supported
// banks yields an empty list, not an error.
func (h *GoCardlessHandler) GetInstitutions(c *gin.Context) {
	country := c.DefaultQuery("country", "GB")

	banks, err := h.Connections.ListBanks(c.Request.Context(), country)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch institutions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"institutions": banks})
}

// CreateBankConnection starts an authorization session and returns the link
// the frontend must redirect the user to.
func (h *GoCardlessHandler) CreateBankConnection(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req struct {
		InstitutionID string `json:"institution_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	requisition, err := h.Connections.Connect(c.Request.Context(), userID, req.InstitutionID)
	if err != nil {
		if errors.Is(err, services.ErrInvalidBank) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown or unsupported bank"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to create requisition"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"requisition_id": requisition.ID,
		"auth_link":      requisition.Link,
	})
}

// CompleteConnection consumes the ?ref= reference GoCardless appends to the
// redirect. Delivery is not exactly-once, so resolving is an idempotent read.
func (h *GoCardlessHandler) CompleteConnection(c *gin.Context) {
	userID := middleware.GetUserID(c)

	requisitionID := c.Query("ref")
	if requisitionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing requisition reference"})
		return
	}

	requisition, link, err := h.Connections.Resolve(c.Request.Context(), userID, requisitionID)
	if err != nil {
		if errors.Is(err, services.ErrRequisitionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Requisition not found"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to resolve requisition"})
		return
	}

	resp := gin.H{
		"requisition": requisition,
		"state":       h.Connections.State(userID),
	}
	if link != nil {
		resp["account_link"] = link
	}
	c.JSON(http.StatusOK, resp)
}

// ResetConnection abandons a pending authorization attempt. The user decides
// to retry; nothing resets automatically.
func (h *GoCardlessHandler) ResetConnection(c *gin.Context) {
	userID := middleware.GetUserID(c)
	h.Connections.Reset(userID)
	c.JSON(http.StatusOK, gin.H{"state": h.Connections.State(userID)})
}

// RedirectURL is where the provider sends the user back after authorization.
func RedirectURL() string {
	frontend := os.Getenv("FRONTEND_URL")
	if frontend == "" {
		frontend = "http://localhost:3000"
	}
	return frontend + "/dashboard"
}
