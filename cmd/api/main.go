package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"damdar-backend/config"
	"damdar-backend/internal/delivery/http/middleware"
	v1 "damdar-backend/internal/delivery/http/v1"
	"damdar-backend/internal/infrastructure/cache"
	"damdar-backend/internal/pricing"
	"damdar-backend/internal/repository/postgres"
	"damdar-backend/internal/usecase"
	"damdar-backend/pkg/logger"
	"damdar-backend/pkg/utils"

	"github.com/NYTimes/gziphandler"
)

func main() {
	cfg := config.LoadConfig()
	utils.SetSecret(cfg.JWTSecret)

	// Initialize Logger
	logger.Init(cfg.Env, cfg.LogLevel)
	log := logger.Get()

	// Initialize Database
	pgxPool, err := postgres.NewPgxPool(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	log.Info().Msg("Successfully connected to PostgreSQL via pgx")

	// Initialize Repositories
	offerRepo := postgres.NewOfferRepository(pgxPool)
	couponRepo := postgres.NewCouponRepository(pgxPool)
	cartRepo := postgres.NewCartRepository(pgxPool)
	productRepo := postgres.NewProductRepository(pgxPool)
	txManager := postgres.NewTransactionManager(pgxPool)

	// Initialize Cache (In-Memory)
	// Default expiration 30m, cleanup every 60m
	memCache := cache.NewMemoryCache(30*time.Minute, 60*time.Minute)

	fees := pricing.FeeConfig{
		DeliveryBaseFee:      cfg.DeliveryBaseFee,
		DeliveryPerKmRate:    cfg.DeliveryPerKmRate,
		FreeDeliveryRadiusKm: cfg.FreeDeliveryRadiusKm,
		PlatformFeePercent:   cfg.PlatformFeePercent,
		TaxPercent:           cfg.GSTPercent,
	}

	// Set up Router
	mux := http.NewServeMux()

	// --- Modules Initialization ---

	// Offer Module
	offerUC := usecase.NewOfferUsecase(offerRepo, memCache, cfg.CacheOfferTTL)
	adminOfferHandler := v1.NewAdminOfferHandler(offerUC)

	// Coupon Module
	couponUC := usecase.NewCouponUsecase(couponRepo, memCache)
	adminCouponHandler := v1.NewAdminCouponHandler(couponUC)

	// Cart Module
	cartUC := usecase.NewCartUsecase(
		cartRepo,
		productRepo,
		couponRepo,
		offerUC,
		txManager,
		memCache,
		fees,
		cfg.MaxCartQuantity,
		cfg.CacheCouponTTL,
	)
	cartHandler := v1.NewCartHandler(cartUC)

	// Cart (Protected)
	mux.Handle("GET /api/v1/cart", middleware.AuthMiddleware(http.HandlerFunc(cartHandler.GetCart)))
	mux.Handle("POST /api/v1/cart/lines", middleware.AuthMiddleware(http.HandlerFunc(cartHandler.AddLine)))
	mux.Handle("PUT /api/v1/cart/lines/{lineId}", middleware.AuthMiddleware(http.HandlerFunc(cartHandler.UpdateLine)))
	mux.Handle("DELETE /api/v1/cart/lines/{lineId}", middleware.AuthMiddleware(http.HandlerFunc(cartHandler.RemoveLine)))
	mux.Handle("PUT /api/v1/cart/lines/{lineId}/offer", middleware.AuthMiddleware(http.HandlerFunc(cartHandler.SelectOffer)))
	mux.Handle("POST /api/v1/cart/lines/{lineId}/negotiate", middleware.AuthMiddleware(http.HandlerFunc(cartHandler.Negotiate)))
	mux.Handle("POST /api/v1/cart/coupon", middleware.AuthMiddleware(http.HandlerFunc(cartHandler.ApplyCoupon)))
	mux.Handle("DELETE /api/v1/cart/coupon", middleware.AuthMiddleware(http.HandlerFunc(cartHandler.RemoveCoupon)))
	mux.Handle("PUT /api/v1/cart/delivery", middleware.AuthMiddleware(http.HandlerFunc(cartHandler.SetDeliveryDistance)))
	mux.Handle("POST /api/v1/checkout", middleware.AuthMiddleware(http.HandlerFunc(cartHandler.Checkout)))

	// Admin (Protected)
	adminMiddleware := func(h http.HandlerFunc) http.Handler {
		return middleware.AuthMiddleware(middleware.AdminMiddleware(h))
	}

	// Admin Offers
	mux.Handle("GET /api/v1/admin/offers", adminMiddleware(adminOfferHandler.GetCatalog))
	mux.Handle("PUT /api/v1/admin/offers/flat", adminMiddleware(adminOfferHandler.UpsertFlat))
	mux.Handle("PUT /api/v1/admin/offers/negotiate", adminMiddleware(adminOfferHandler.UpsertNegotiate))
	mux.Handle("PUT /api/v1/admin/offers/discount", adminMiddleware(adminOfferHandler.UpsertDiscount))
	mux.Handle("PUT /api/v1/admin/offers/mrp-reduction", adminMiddleware(adminOfferHandler.UpsertMRP))
	mux.Handle("PATCH /api/v1/admin/offers/{mode}/items/{productId}", adminMiddleware(adminOfferHandler.SetItemActive))

	// Admin Coupons
	mux.Handle("GET /api/v1/admin/coupons", adminMiddleware(adminCouponHandler.ListCoupons))
	mux.Handle("GET /api/v1/admin/coupons/{id}", adminMiddleware(adminCouponHandler.GetCoupon))
	mux.Handle("POST /api/v1/admin/coupons", adminMiddleware(adminCouponHandler.CreateCoupon))
	mux.Handle("PUT /api/v1/admin/coupons/{id}", adminMiddleware(adminCouponHandler.UpdateCoupon))
	mux.Handle("DELETE /api/v1/admin/coupons/{id}", adminMiddleware(adminCouponHandler.DeleteCoupon))

	// Health Check
	healthHandler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "ok", "db": "connected"}`))
	}
	mux.HandleFunc("GET /api/v1/health", healthHandler)
	mux.HandleFunc("GET /health", healthHandler) // Support root health check for Load Balancers

	addr := fmt.Sprintf(":%s", cfg.Port)

	// Initialize Rate Limiter with lifecycle management
	// 50 req/s, burst 100, cleanup every minute, TTL 3 minutes
	rateLimiter := middleware.NewRateLimiter(
		context.Background(),
		50,            // requests per second
		100,           // burst
		time.Minute,   // cleanup period
		3*time.Minute, // client TTL
	)

	// Apply CORS (with config injection), Request Logger, Rate Limit, and Gzip
	handler := middleware.NewCORSMiddleware(cfg)(mux)
	handler = middleware.RequestLogger(handler)
	handler = rateLimiter.Middleware()(handler)
	handler = gziphandler.GzipHandler(handler)

	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Abandoned-cart sweep: active carts idle past the TTL flip to abandoned.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(cfg.CartSweepPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				cutoff := time.Now().UTC().Add(-cfg.CartTTL)
				n, err := cartRepo.MarkAbandonedBefore(sweepCtx, cutoff)
				if err != nil {
					log.Error().Err(err).Msg("Abandoned-cart sweep failed")
					continue
				}
				if n > 0 {
					log.Info().Int64("carts", n).Msg("Marked stale carts abandoned")
				}
			case <-sweepCtx.Done():
				return
			}
		}
	}()

	// Graceful Shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	log.Info().Msgf("Server starting on %s", addr)

	// Wait for interrupt signal via channel
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down...")

	stopSweep()
	rateLimiter.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	pgxPool.Close()
	log.Info().Msg("Server exited properly")
}
