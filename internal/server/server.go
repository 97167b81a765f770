package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/aman-churiwal/admission-gateway/internal/config"
	"github.com/aman-churiwal/admission-gateway/internal/handler"
	"github.com/aman-churiwal/admission-gateway/internal/middleware"
	"github.com/aman-churiwal/admission-gateway/internal/proxy"
	"github.com/aman-churiwal/admission-gateway/internal/ratelimit"
	"github.com/aman-churiwal/admission-gateway/internal/repository"
	"github.com/aman-churiwal/admission-gateway/internal/service"
	"github.com/aman-churiwal/admission-gateway/internal/storage"
	"github.com/gin-gonic/gin"
)

type Server struct {
	router   *gin.Engine
	config   *config.Config
	redis    *storage.RedisClient
	postgres *storage.Postgres

	registry   *ratelimit.Registry
	classes    []ratelimit.RouteClass
	adaptive   *ratelimit.AdaptiveController
	localStore *ratelimit.LocalWindowStore

	apiKeyService *service.APIKeyService
	authService   *service.AuthService
	requestLogger *middleware.RequestLogger

	proxies    map[string]*proxy.Proxy
	httpServer *http.Server
}

func New(cfg *config.Config, redis *storage.RedisClient, postgres *storage.Postgres) (*Server, error) {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	apiKeyRepo := repository.NewAPIKeyRepository(postgres)
	userRepo := repository.NewUserRepository(postgres)
	tierRepo := repository.NewPlanTierRepository(postgres)
	logRepo := repository.NewRequestLogRepository(postgres)

	apiKeyService := service.NewAPIKeyService(apiKeyRepo, redis)
	authService := service.NewAuthService(userRepo, cfg.Auth.JWTSecret, cfg.Auth.ExpiryHours)

	adaptive := ratelimit.NewAdaptiveController(ratelimit.AdaptiveConfig{
		Interval: time.Duration(cfg.RateLimit.Adaptive.IntervalSeconds) * time.Second,
		Scale:    cfg.RateLimit.Adaptive.Scale,
	})
	localStore := ratelimit.NewLocalWindowStore()

	registry, classes, err := buildRegistry(cfg, redis, localStore, adaptive)
	if err != nil {
		return nil, err
	}

	// Plan tier rows override the config's bypass defaults
	loadTierBypass(registry, tierRepo)

	s := &Server{
		router:        router,
		config:        cfg,
		redis:         redis,
		postgres:      postgres,
		registry:      registry,
		classes:       classes,
		adaptive:      adaptive,
		localStore:    localStore,
		apiKeyService: apiKeyService,
		authService:   authService,
		requestLogger: middleware.NewRequestLogger(logRepo, 1000),
		proxies:       make(map[string]*proxy.Proxy),
	}

	s.initializeProxies()
	s.setupMiddleware()
	s.setupRoutes(logRepo)

	return s, nil
}

// buildRegistry turns the config's policy table into per-class chains.
func buildRegistry(
	cfg *config.Config,
	redis *storage.RedisClient,
	localStore *ratelimit.LocalWindowStore,
	adaptive *ratelimit.AdaptiveController,
) (*ratelimit.Registry, []ratelimit.RouteClass, error) {
	registry := ratelimit.NewRegistry()
	registry.Whitelist(cfg.RateLimit.WhitelistIPs...)

	redisStore := ratelimit.NewRedisCounterStore(redis)

	var classes []ratelimit.RouteClass
	seen := make(map[ratelimit.RouteClass]bool)

	for _, pc := range cfg.RateLimit.Policies {
		var store ratelimit.CounterStore = redisStore
		if pc.Store == "local" {
			store = localStore
		}

		policy, err := ratelimit.NewPolicy(ratelimit.PolicyConfig{
			ID:          pc.ID,
			Window:      pc.Window(),
			MaxRequests: pc.MaxRequests,
			Adaptive:    pc.Adaptive,
			KeyFunc:     ratelimit.KeyFuncFor(pc.KeyBy),
			FailMode:    ratelimit.FailMode(pc.FailMode),
		}, store, adaptive)
		if err != nil {
			return nil, nil, err
		}

		class := ratelimit.RouteClass(pc.Class)
		registry.Register(class, policy)

		if !seen[class] {
			seen[class] = true
			classes = append(classes, class)
		}
	}

	for tier, classNames := range cfg.RateLimit.TierBypass {
		for _, name := range classNames {
			registry.AllowBypass(tier, ratelimit.RouteClass(name))
		}
	}

	return registry, classes, nil
}

func loadTierBypass(registry *ratelimit.Registry, tierRepo *repository.PlanTierRepository) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tiers, err := tierRepo.List(ctx)
	if err != nil {
		log.Printf("Failed to load plan tiers, using config defaults: %v", err)
		return
	}

	for _, tier := range tiers {
		for _, class := range tier.Bypasses() {
			registry.AllowBypass(tier.Name, ratelimit.RouteClass(class))
		}
	}
}

func (s *Server) initializeProxies() {
	for _, svc := range s.config.Services {
		p, err := proxy.New(svc.Target)
		if err != nil {
			log.Printf("Failed to create proxy for %s: %v", svc.Path, err)
			continue
		}

		s.proxies[svc.Path] = p
		log.Printf("Initialized proxy for %s -> %s", svc.Path, svc.Target)
	}
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.CORS())
	s.router.Use(s.requestLogger.Middleware())
	s.router.Use(middleware.APIKeyValidator(s.apiKeyService))
	s.router.Use(middleware.Identity(s.authService))
}

func (s *Server) setupRoutes(logRepo *repository.RequestLogRepository) {
	s.router.GET("/health", s.healthCheck)

	authHandler := handler.NewAuthHandler(s.authService)
	auth := s.router.Group("/auth")
	auth.Use(middleware.RateLimit(s.registry, ratelimit.ClassAuth))
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
	}

	apiKeyHandler := handler.NewAPIKeyHandler(s.apiKeyService)
	limitsHandler := handler.NewLimitsHandler(s.registry, s.classes, s.adaptive, s.localStore, logRepo)

	admin := s.router.Group("/admin")
	admin.Use(middleware.RequireAuth(s.authService))
	{
		admin.GET("/status", s.adminStatus)
		admin.GET("/limits", limitsHandler.Status)
		admin.GET("/limits/rejections", limitsHandler.Rejections)
		admin.POST("/keys", apiKeyHandler.Create)
		admin.GET("/keys", apiKeyHandler.List)
		admin.GET("/keys/:id", apiKeyHandler.Get)
		admin.PATCH("/keys/:id", apiKeyHandler.Update)
		admin.DELETE("/keys/:id", apiKeyHandler.Delete)
	}

	s.setupProxyRoutes()
}

func (s *Server) setupProxyRoutes() {
	for _, svc := range s.config.Services {
		p, ok := s.proxies[svc.Path]
		if !ok {
			continue
		}

		class := ratelimit.RouteClass(svc.Class)
		if svc.Class == "" {
			class = ratelimit.ClassGeneral
		}

		limited := middleware.RateLimit(s.registry, class)

		s.router.Any(svc.Path+"/*proxyPath", limited, p.Handle)
		s.router.Any(svc.Path, limited, p.Handle)

		log.Printf("Registered proxy route: %s (class: %s)", svc.Path, class)
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	redisHealthy := true
	if err := s.redis.Ping(c.Request.Context()); err != nil {
		redisHealthy = false
		log.Printf("Redis health check failed: %v", err)
	}

	dbHealthy := true
	if err := s.postgres.Ping(c.Request.Context()); err != nil {
		dbHealthy = false
		log.Printf("Database health check failed: %v", err)
	}

	// A down counter store degrades the gateway (policies fail open or
	// closed per config) but does not take the request path down.
	status := "healthy"
	statusCode := http.StatusOK

	if !redisHealthy || !dbHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":    status,
		"service":   "admission-gateway",
		"version":   "1.0.0",
		"timestamp": time.Now().Unix(),
		"checks": gin.H{
			"redis":    redisHealthy,
			"database": dbHealthy,
		},
	})
}

func (s *Server) adminStatus(c *gin.Context) {
	ctx := c.Request.Context()
	keys, _ := s.apiKeyService.List(ctx)

	c.JSON(http.StatusOK, gin.H{
		"gateway":     "running",
		"services":    len(s.config.Services),
		"api_keys":    len(keys),
		"load_factor": s.adaptive.LoadFactor(),
		"uptime":      time.Since(startTime).Seconds(),
		"timestamp":   time.Now().Unix(),
	})
}

// Start launches the background components and the HTTP listener.
func (s *Server) Start(addr string) error {
	s.adaptive.Start()
	s.localStore.Start(time.Duration(s.config.RateLimit.SweepSeconds) * time.Second)
	s.requestLogger.Start()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	log.Printf("Starting admission gateway on %s", addr)
	log.Printf("Environment: %s", s.config.Server.Environment)

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down server...")

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	s.adaptive.Stop()
	s.localStore.Stop()
	s.requestLogger.Stop()

	return err
}

func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

var startTime = time.Now()
