package handler

import (
	"wallet-escrow-engine/internal/adapter/http/middleware"
	"wallet-escrow-engine/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	Ledger         ports.Ledger
	Deposits       ports.DepositGateway
	Withdrawals    ports.WithdrawalQueue
	Escrow         ports.EscrowEngine
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check, pings whichever backends are configured
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Swagger documentation
	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	walletHandler := NewWalletHandler(deps.Ledger)
	wallets := v1.Group("/wallets")
	{
		wallets.POST("", walletHandler.Create)
		wallets.GET("/:user_id", walletHandler.Get)
		wallets.POST("/:user_id/credit", walletHandler.Credit)
		wallets.POST("/:user_id/debit", walletHandler.Debit)
		wallets.GET("/:user_id/transactions", walletHandler.ListTransactions)
	}
	v1.POST("/transfers", walletHandler.Transfer)

	depositHandler := NewDepositHandler(deps.Deposits)
	deposits := v1.Group("/deposits")
	{
		deposits.POST("", depositHandler.Generate)
		deposits.POST("/:reference/confirm", depositHandler.Confirm)
	}

	withdrawalHandler := NewWithdrawalHandler(deps.Withdrawals)
	withdrawals := v1.Group("/withdrawals")
	{
		withdrawals.POST("", withdrawalHandler.Request)
		withdrawals.GET("/pending", withdrawalHandler.ListPending)
		withdrawals.POST("/:id/approve", withdrawalHandler.Approve)
		withdrawals.POST("/:id/reject", withdrawalHandler.Reject)
	}

	escrowHandler := NewEscrowHandler(deps.Escrow)
	deals := v1.Group("/deals")
	{
		deals.POST("", escrowHandler.Create)
		deals.GET("/:id", escrowHandler.Get)
		deals.POST("/:id/accept", escrowHandler.Accept)
		deals.POST("/:id/pay", escrowHandler.Pay)
		deals.POST("/:id/release", escrowHandler.Release)
		deals.POST("/:id/dispute", escrowHandler.Dispute)
		deals.POST("/:id/cancel", escrowHandler.Cancel)
		deals.POST("/:id/resolve", escrowHandler.Resolve)
	}
	v1.GET("/users/:user_id/deals", escrowHandler.ListByUser)

	return r
}
