package handlers

import (
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/finwise-app/banklink-api/middleware"
	"github.com/finwise-app/banklink-api/models"
	"github.com/finwise-app/banklink-api/services"
)

// BankingHandler exposes account links, transaction history and the sync
// triggers (manual and scheduled).
type BankingHandler struct {
	Store *services.BankingService
	Sync  *services.SyncService
}

func NewBankingHandler(store *services.BankingService, sync *services.SyncService) *BankingHandler {
	return &BankingHandler{Store: store, Sync: sync}
}

// GetAccountLinks lists the user's active account links.
func (h *BankingHandler) GetAccountLinks(c *gin.Context) {
	userID := middleware.GetUserID(c)

	links, err := h.Store.ListActiveAccountLinks(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch account links"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"links": links})
}

// DeactivateAccountLink disables a link. The sync path never touches the
// active flag; this is the explicit deactivation path.
func (h *BankingHandler) DeactivateAccountLink(c *gin.Context) {
	userID := middleware.GetUserID(c)
	accountID := c.Param("id")

	if err := h.Store.DeactivateAccountLink(c.Request.Context(), userID, accountID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deactivate account link"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Account link deactivated"})
}

// SyncTransactions triggers a sync for one linked account. date_from/date_to
// (YYYY-MM-DD) override the default rolling 30-day window.
func (h *BankingHandler) SyncTransactions(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req struct {
		AccountID string `json:"account_id" binding:"required"`
		DateFrom  string `json:"date_from"`
		DateTo    string `json:"date_to"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	link, ok := h.findActiveLink(c, userID, req.AccountID)
	if !ok {
		return
	}

	window, err := parseWindow(req.DateFrom, req.DateTo)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.Sync.Sync(c.Request.Context(), link, window)
	if err != nil {
		h.respondSyncError(c, result, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"fetched":   result.Fetched,
		"persisted": result.Persisted,
	})
}

// ToggleAutoSync enables or disables the periodic refresh for the user's
// first active account link.
func (h *BankingHandler) ToggleAutoSync(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req struct {
		Enabled   bool   `json:"enabled"`
		AccountID string `json:"account_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !req.Enabled {
		// Stop only the caller's schedules, never another user's.
		if req.AccountID != "" {
			link, ok := h.findActiveLink(c, userID, req.AccountID)
			if !ok {
				return
			}
			h.Sync.StopAutoRefresh(userID, link.AccountID)
		} else {
			links, err := h.Store.ListActiveAccountLinks(c.Request.Context(), userID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch account links"})
				return
			}
			for _, link := range links {
				h.Sync.StopAutoRefresh(userID, link.AccountID)
			}
		}
		c.JSON(http.StatusOK, gin.H{"auto_sync": false})
		return
	}

	accountID := req.AccountID
	if accountID == "" {
		links, err := h.Store.ListActiveAccountLinks(c.Request.Context(), userID)
		if err != nil || len(links) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No active account link to refresh"})
			return
		}
		accountID = links[0].AccountID
	}

	link, ok := h.findActiveLink(c, userID, accountID)
	if !ok {
		return
	}

	h.Sync.StartAutoRefresh(link, refreshInterval())
	c.JSON(http.StatusOK, gin.H{"auto_sync": true, "account_id": link.AccountID})
}

// GetTransactions returns stored, classified transactions for one account.
func (h *BankingHandler) GetTransactions(c *gin.Context) {
	userID := middleware.GetUserID(c)

	accountID := c.Query("account_id")
	if accountID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing account_id"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	txs, err := h.Store.ListTransactions(c.Request.Context(), userID, accountID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch transactions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

func (h *BankingHandler) findActiveLink(c *gin.Context, userID, accountID string) (models.AccountLink, bool) {
	links, err := h.Store.ListActiveAccountLinks(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch account links"})
		return models.AccountLink{}, false
	}

	for _, link := range links {
		if link.AccountID == accountID {
			return link, true
		}
	}

	c.JSON(http.StatusNotFound, gin.H{"error": "No active link for this account"})
	return models.AccountLink{}, false
}

func (h *BankingHandler) respondSyncError(c *gin.Context, result *models.SyncResult, err error) {
	if errors.Is(err, services.ErrSyncInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": "Sync already in progress for this account"})
		return
	}

	var pe *services.PersistenceError
	if errors.As(err, &pe) {
		// Partial result: some rows landed before the store failed. Retrying
		// is safe.
		log.Printf("⚠️ Partial sync: %d rows persisted before failure: %v", pe.Persisted, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Persistence failed mid-sync",
			"fetched":   result.Fetched,
			"persisted": result.Persisted,
		})
		return
	}

	c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch transactions from provider"})
}

// parseWindow turns optional date_from/date_to overrides into a sync window.
// Both empty means the default rolling window; supplying only one of the two
// is an error, never a silent fallback.
func parseWindow(dateFrom, dateTo string) (services.Window, error) {
	if dateFrom == "" && dateTo == "" {
		return services.Window{}, nil
	}
	if dateFrom == "" || dateTo == "" {
		return services.Window{}, errors.New("date_from and date_to must be supplied together")
	}

	from, err := time.Parse("2006-01-02", dateFrom)
	if err != nil {
		return services.Window{}, errors.New("invalid date_from, expected YYYY-MM-DD")
	}
	to, err := time.Parse("2006-01-02", dateTo)
	if err != nil {
		return services.Window{}, errors.New("invalid date_to, expected YYYY-MM-DD")
	}
	if to.Before(from) {
		return services.Window{}, errors.New("date_to must not precede date_from")
	}

	return services.Window{From: from, To: to}, nil
}

func refreshInterval() time.Duration {
	if v, err := strconv.Atoi(os.Getenv("SYNC_INTERVAL_MINUTES")); err == nil && v > 0 {
		return time.Duration(v) * time.Minute
	}
	return 6 * time.Hour
}
