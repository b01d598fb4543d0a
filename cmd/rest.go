package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	coreconfig "github.com/AzielCF/az-flow/core/config"
	"github.com/AzielCF/az-flow/ui/rest"
	"github.com/AzielCF/az-flow/ui/rest/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var restCmd = &cobra.Command{
	Use:   "rest",
	Short: "Serve webhooks, fulfillment and the operational API over http",
	Long:  `Starts the HTTP server and, unless REMINDER_ENABLED=false, the hourly reminder scheduler.`,
	Run:   restServer,
}

func init() {
	rootCmd.AddCommand(restCmd)
}

func restServer(_ *cobra.Command, _ []string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := loadConfig()
	initApp(ctx, cfg)

	if len(cfg.App.BasicAuth) == 0 {
		logrus.Fatalln("APP_BASIC_AUTH is required for the /api routes; please set APP_BASIC_AUTH=<user>:<secret>[,<user2>:<secret2>] and restart.")
	}
	account := make(map[string]string)
	for _, basicAuth := range cfg.App.BasicAuth {
		ba := strings.SplitN(basicAuth, ":", 2)
		if len(ba) != 2 {
			logrus.Fatalln("Basic auth is not valid, please this following format <user>:<secret>")
		}
		account[ba[0]] = ba[1]
	}

	app := newServer(cfg, account)

	if cfg.Reminder.Enabled {
		reminderScheduler.Start(ctx)
	} else {
		logrus.Info("[SCHEDULER] reminders disabled (REMINDER_ENABLED=false)")
	}

	// Graceful shutdown handler
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Info("[REST] Reception of termination signal, shutting down gracefully...")
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			logrus.Errorf("[REST] Error during Fiber shutdown: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.App.Port); err != nil {
		logrus.Errorf("[REST] Failed to start: %v", err)
	}

	cancel()
	StopApp()
}

func newServer(cfg *coreconfig.Config, account map[string]string) *fiber.App {
	fiberConfig := fiber.Config{
		EnableTrustedProxyCheck: true,
		BodyLimit:               4 * 1024 * 1024,
		Network:                 "tcp",
		AppName:                 "Az-Flow Automation Core",
		ServerHeader:            "Hidden",
	}
	fiberConfig.ErrorHandler = func(c *fiber.Ctx, err error) error {
		// Providers retry anything but a 2xx, so callbacks are acknowledged even
		// when fiber rejects them (oversized body, malformed request).
		switch callbackKind(c.Path(), cfg.App.BasePath) {
		case rest.WebhookPrefix:
			logrus.WithError(err).WithField("path", c.Path()).Warn("[WEBHOOK] delivery rejected before handler, acknowledging")
			return rest.Acknowledge(c)
		case rest.FulfillmentPrefix:
			logrus.WithError(err).WithField("path", c.Path()).Warn("[FULFILLMENT] request rejected before handler")
			return rest.EmptyFulfillment(c)
		}
		return fiber.DefaultErrorHandler(c, err)
	}
	if len(cfg.App.TrustedProxies) > 0 {
		fiberConfig.TrustedProxies = cfg.App.TrustedProxies
		fiberConfig.ProxyHeader = fiber.HeaderXForwardedFor
	}

	app := fiber.New(fiberConfig)

	// Security: RequestID for audit trails
	app.Use(requestid.New())

	origins := strings.Join(cfg.App.CorsAllowedOrigins, ", ")
	if cfg.App.BaseUrl != "" && !strings.Contains(origins, cfg.App.BaseUrl) {
		origins += ", " + cfg.App.BaseUrl
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.Recovery())
	app.Use(helmet.New(helmet.Config{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		HSTSMaxAge:         31536000,
		ReferrerPolicy:     "no-referrer",
	}))
	app.Use(limiter.New(limiter.Config{
		// One provider server delivers for every tenant it hosts from a single IP.
		Next: func(c *fiber.Ctx) bool {
			return callbackKind(c.Path(), cfg.App.BasePath) != ""
		},
		Max:        1000,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
	}))

	if cfg.App.Debug {
		app.Use(logger.New())
	}

	root := app.Group(cfg.App.BasePath)

	// Provider and engine callbacks authenticate with their own tokens
	rest.InitRestWebhook(root, webhookUsecase)
	rest.InitRestFulfillment(root, fulfillmentUsecase)

	apiGroup := root.Group("/api")
	apiGroup.Use(basicauth.New(basicauth.Config{
		Users: account,
		Next: func(c *fiber.Ctx) bool {
			// Allow CORS preflight without credentials.
			return c.Method() == fiber.MethodOptions
		},
	}))

	rest.InitRestSession(apiGroup, handoffUsecase)
	rest.InitRestInstance(apiGroup, instanceUsecase, cfg.App.BaseUrl)
	rest.InitRestReminder(apiGroup, reminderScheduler)
	rest.InitRestTenant(apiGroup, tenantCache)

	var counter rest.StageCounter
	if cfg.Monitor.Persist {
		counter = metricSink
	}
	rest.InitRestMonitor(apiGroup, monitor, counter)

	return app
}

// callbackKind reports which provider or engine callback prefix path falls under, or "".
func callbackKind(path, basePath string) string {
	rel := strings.TrimPrefix(path, strings.TrimSuffix(basePath, "/"))
	for _, prefix := range []string{rest.WebhookPrefix, rest.FulfillmentPrefix} {
		if strings.HasPrefix(rel, prefix) {
			return prefix
		}
	}
	return ""
}
