package provider

import (
	"time"

	"github.com/NishadApi25/final-year-project/internal/authz"
	"github.com/NishadApi25/final-year-project/internal/cache"
	"github.com/NishadApi25/final-year-project/internal/config"
	"github.com/NishadApi25/final-year-project/internal/logger"
	"github.com/NishadApi25/final-year-project/internal/metrics"
	"github.com/NishadApi25/final-year-project/internal/models"
	"github.com/NishadApi25/final-year-project/internal/payment/bkash"
	"github.com/NishadApi25/final-year-project/internal/payment/stripe"
	"github.com/NishadApi25/final-year-project/internal/queue"
	"github.com/NishadApi25/final-year-project/internal/repository"
	"github.com/NishadApi25/final-year-project/internal/service"

	"github.com/mojocn/base64Captcha"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client
	Metrics     *metrics.Metrics

	// Repositories
	AdminRepo      repository.AdminRepository
	UserRepo       repository.UserRepository
	OrderRepo      repository.OrderRepository
	ProductRepo    repository.ProductRepository
	ClickRepo      repository.ClickRepository
	EarningRepo    repository.EarningRepository
	WithdrawalRepo repository.WithdrawalRepository

	// Services
	AuthzService         *authz.Service
	AuthService          *service.AuthService
	ClickService         *service.ClickService
	EarningService       *service.EarningService
	WithdrawalService    *service.WithdrawalService
	SettlementService    *service.SettlementService
	BkashService         *service.BkashService
	AffiliateLinkService *service.AffiliateLinkService
	DashboardService     *service.DashboardService
	CaptchaService       *service.CaptchaService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}
	if cfg.Metrics.Enabled {
		c.Metrics = metrics.Default()
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.AdminRepo = repository.NewAdminRepository(db)
	c.UserRepo = repository.NewUserRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.ProductRepo = repository.NewProductRepository(db)
	c.ClickRepo = repository.NewClickRepository(db)
	c.EarningRepo = repository.NewEarningRepository(db)
	c.WithdrawalRepo = repository.NewWithdrawalRepository(db)
}

func (c *Container) initServices() {
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}

	affiliateCfg := c.Config.Affiliate
	production := c.Config.Server.IsProduction()

	c.AuthService = service.NewAuthService(&c.Config.JWT, c.AdminRepo)
	c.ClickService = service.NewClickService(c.ClickRepo, c.Metrics)
	c.EarningService = service.NewEarningService(c.EarningRepo, c.OrderRepo, c.ProductRepo, service.DefaultCommissionRules(), c.Metrics)
	c.WithdrawalService = service.NewWithdrawalService(c.WithdrawalRepo, c.EarningRepo, c.UserRepo, service.WithdrawalOptions{
		BalanceStatuses: affiliateCfg.BalanceStatuses,
		RequireRole:     affiliateCfg.RequireRole,
	}, c.Metrics)
	c.AffiliateLinkService = service.NewAffiliateLinkService(affiliateCfg.AppURL, c.UserRepo, c.ProductRepo)
	c.DashboardService = service.NewDashboardService(
		c.ClickRepo,
		c.EarningRepo,
		c.ProductRepo,
		c.WithdrawalService,
		time.Duration(affiliateCfg.OverviewCacheSeconds)*time.Second,
	)

	var captchaStore base64Captcha.Store
	if cache.Enabled() {
		captchaStore = cache.NewCaptchaStore(time.Duration(c.Config.Captcha.Image.ExpireSeconds) * time.Second)
	}
	c.CaptchaService = service.NewCaptchaService(c.Config.Captcha, captchaStore)

	gateway := c.newBkashGateway(production)
	c.BkashService = service.NewBkashService(gateway, c.OrderRepo, production, c.Metrics)
	c.SettlementService = service.NewSettlementService(c.EarningService, c.OrderRepo, service.SettlementOptions{
		Bkash:            gateway,
		Stripe:           c.newStripeConfig(),
		QueueClient:      c.QueueClient,
		RequirePaidOrder: affiliateCfg.RequirePaidOrder,
	})
}

// newBkashGateway 构建 bKash 客户端；非生产环境配置缺失时退回 mock。
func (c *Container) newBkashGateway(production bool) service.BkashGateway {
	bkashCfg := c.Config.Bkash
	clientCfg := bkash.Config{
		BaseURL:     bkashCfg.BaseURL,
		AppKey:      bkashCfg.AppKey,
		AppSecret:   bkashCfg.AppSecret,
		Username:    bkashCfg.Username,
		Password:    bkashCfg.Password,
		CallbackURL: bkashCfg.CallbackURL,
		Mock:        bkashCfg.Mock,
		TokenTTL:    time.Duration(bkashCfg.TokenTTLMinutes) * time.Minute,
		Timeout:     time.Duration(bkashCfg.TimeoutSeconds) * time.Second,
	}

	var opts []bkash.Option
	if cache.Enabled() {
		opts = append(opts, bkash.WithTokenCache(cache.NewBkashTokenCache(time.Now)))
	}

	client, err := bkash.NewClient(clientCfg, opts...)
	if err == nil {
		if client.Mock() {
			logger.Infow("provider_bkash_mock_mode")
		}
		return client
	}
	if production {
		logger.Errorw("provider_init_bkash_failed", "error", err)
		return nil
	}
	logger.Warnw("provider_bkash_fallback_to_mock", "error", err)
	clientCfg.Mock = true
	client, err = bkash.NewClient(clientCfg, opts...)
	if err != nil {
		logger.Errorw("provider_init_bkash_mock_failed", "error", err)
		return nil
	}
	return client
}

func (c *Container) newStripeConfig() *stripe.Config {
	stripeCfg := c.Config.Stripe
	if stripeCfg.SecretKey == "" && stripeCfg.WebhookSecret == "" {
		return nil
	}
	cfg := &stripe.Config{
		SecretKey:               stripeCfg.SecretKey,
		WebhookSecret:           stripeCfg.WebhookSecret,
		APIBaseURL:              stripeCfg.APIBaseURL,
		WebhookToleranceSeconds: stripeCfg.WebhookToleranceSeconds,
		Timeout:                 time.Duration(stripeCfg.RequestTimeoutSeconds) * time.Second,
	}
	cfg.Normalize()
	return cfg
}
