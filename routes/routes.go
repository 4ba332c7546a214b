package routes

import (
	"database/sql"

	"github.com/gin-gonic/gin"

	"github.com/finwise-app/banklink-api/handlers"
	"github.com/finwise-app/banklink-api/services"
)

// SetupBankingRoutes wires the bank connection and sync surface.
func SetupBankingRoutes(rg *gin.RouterGroup, db *sql.DB, ws *handlers.WSHandler) {
	store := services.NewBankingService(db)
	provider := services.NewGoCardlessService()
	tokens := services.NewTokenCache(provider)

	connections := services.NewConnectionService(provider, store, tokens, handlers.RedirectURL())
	syncEngine := services.NewSyncService(provider, store, tokens)
	syncEngine.SetNotifier(ws)

	gc := handlers.NewGoCardlessHandler(connections)
	banking := handlers.NewBankingHandler(store, syncEngine)

	rg.GET("/banking/institutions", gc.GetInstitutions)
	rg.POST("/banking/connections", gc.CreateBankConnection)
	rg.GET("/banking/connections/callback", gc.CompleteConnection)
	rg.POST("/banking/connections/reset", gc.ResetConnection)

	rg.GET("/banking/links", banking.GetAccountLinks)
	rg.DELETE("/banking/links/:id", banking.DeactivateAccountLink)
	rg.POST("/banking/sync", banking.SyncTransactions)
	rg.POST("/banking/sync/auto", banking.ToggleAutoSync)
	rg.GET("/banking/transactions", banking.GetTransactions)

	rg.GET("/ws/sync", ws.HandleWS)
}
