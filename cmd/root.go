package cmd

import (
	"context"
	"os"
	"strings"

	"github.com/AzielCF/az-flow/botengine"
	"github.com/AzielCF/az-flow/botengine/providers"
	coreconfig "github.com/AzielCF/az-flow/core/config"
	coreDB "github.com/AzielCF/az-flow/core/database"
	domainFulfillment "github.com/AzielCF/az-flow/domains/fulfillment"
	domainInstance "github.com/AzielCF/az-flow/domains/instance"
	domainSession "github.com/AzielCF/az-flow/domains/session"
	"github.com/AzielCF/az-flow/domains/tenant"
	domainWebhook "github.com/AzielCF/az-flow/domains/webhook"
	"github.com/AzielCF/az-flow/infrastructure/rabbitmq"
	"github.com/AzielCF/az-flow/infrastructure/valkey"
	"github.com/AzielCF/az-flow/infrastructure/whatsapp"
	"github.com/AzielCF/az-flow/normalizer"
	"github.com/AzielCF/az-flow/pkg/botmonitor"
	"github.com/AzielCF/az-flow/pkg/crypto"
	"github.com/AzielCF/az-flow/pkg/msgtemplate"
	"github.com/AzielCF/az-flow/pkg/timeutils"
	"github.com/AzielCF/az-flow/repository"
	"github.com/AzielCF/az-flow/usecase"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

var (
	// Storage
	db           *gorm.DB
	valkeyClient *valkey.Client
	tenantRepo   *repository.TenantGormRepository
	tenantCache  *repository.CachedTenantRepository
	reminderRepo *repository.ReminderGormRepository
	dispatchRepo *repository.DispatchLogGormRepository
	metricSink   *repository.MetricGormSink
	sessionStore domainSession.ISessionStore

	// Infrastructure
	monitor   *botmonitor.Monitor
	publisher *rabbitmq.Publisher
	sender    *whatsapp.Sender
	engine    *botengine.Engine

	// Usecase
	webhookUsecase     domainWebhook.IWebhookUsecase
	handoffUsecase     domainSession.IHandoffUsecase
	fulfillmentUsecase domainFulfillment.IFulfillmentUsecase
	instanceUsecase    domainInstance.IInstanceUsecase
	reminderScheduler  *usecase.ReminderScheduler
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "azflow",
	Short: "Multi-tenant WhatsApp automation core",
	Long: `azflow answers WhatsApp conversations through a per-tenant bot engine
(Dialogflow, Typebot or an LLM) and sends scheduled billing reminders.`,
}

func init() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()
	viper.AutomaticEnv()

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	initFlags()
}

func initFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("port", "p", "", "change port number with --port <number> | example: --port=8080")
	flags.BoolP("debug", "d", false, "hide or displaying log with --debug <true/false> | example: --debug=true")
	flags.StringSliceP("basic-auth", "b", nil, "basic auth credential | -b=yourUsername:yourPassword")
	flags.String("db-driver", "", `database driver --db-driver <sqlite|postgres> | example: --db-driver="postgres"`)
	flags.String("session-backend", "", `chat session storage --session-backend <gorm|valkey|memory>`)

	_ = viper.BindPFlag("app_port", flags.Lookup("port"))
	_ = viper.BindPFlag("app_debug", flags.Lookup("debug"))
	_ = viper.BindPFlag("app_basic_auth", flags.Lookup("basic-auth"))
	_ = viper.BindPFlag("db_driver", flags.Lookup("db-driver"))
	_ = viper.BindPFlag("session_backend", flags.Lookup("session-backend"))
}

// loadConfig reads the environment and applies command line overrides.
func loadConfig() *coreconfig.Config {
	// viper sees flags and env alike; push the merged values back so LoadConfig reads one source
	for key, env := range map[string]string{
		"app_port":        "APP_PORT",
		"db_driver":       "DB_DRIVER",
		"session_backend": "SESSION_BACKEND",
	} {
		if v := viper.GetString(key); v != "" {
			_ = os.Setenv(env, v)
		}
	}
	if viper.GetBool("app_debug") {
		_ = os.Setenv("APP_DEBUG", "true")
	}
	if auth := viper.GetStringSlice("app_basic_auth"); len(auth) > 0 {
		_ = os.Setenv("APP_BASIC_AUTH", strings.Join(auth, ","))
	}

	cfg, err := coreconfig.LoadConfig()
	if err != nil {
		logrus.Fatalf("[CONFIG] %v", err)
	}

	if cfg.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return cfg
}

// initStorage opens the database and the repositories every command needs.
func initStorage(ctx context.Context, cfg *coreconfig.Config) {
	var err error
	db, err = coreDB.NewDatabase(cfg)
	if err != nil {
		logrus.Fatalf("[DB] %v", err)
	}

	tenantRepo = repository.NewTenantGormRepository(db)
	reminderRepo = repository.NewReminderGormRepository(db)
	dispatchRepo = repository.NewDispatchLogGormRepository(db)
	metricSink = repository.NewMetricGormSink(db)

	if err := migrate(ctx); err != nil {
		logrus.Fatalf("[DB] migration failed: %v", err)
	}

	if cfg.Database.ValkeyEnabled {
		valkeyClient, err = valkey.NewClient(valkey.FromAppConfig(cfg.Database))
		if err != nil {
			logrus.Fatalf("[VALKEY] %v", err)
		}
	}

	switch cfg.Session.Backend {
	case "valkey":
		sessionStore = repository.NewValkeySessionStore(valkeyClient)
	case "memory":
		logrus.Warn("[SESSION] in-memory sessions: handoff state is lost on restart")
		sessionStore = repository.NewMemorySessionStore()
	default:
		sessionStore = repository.NewSessionGormRepository(db)
	}

	tenantCache = repository.NewCachedTenantRepository(tenantRepo, cfg.Cache.TenantTTL)
}

// initApp wires the full pipeline on top of initStorage.
func initApp(ctx context.Context, cfg *coreconfig.Config) {
	initStorage(ctx, cfg)

	crypto.SetEncryptionKey(cfg.Security.SecretKey)
	if cfg.Security.SecretKey == "" {
		logrus.Warn("[CRYPTO] APP_SECRET_KEY is empty; credentials are read as plain text")
	}

	var sinks []botmonitor.Sink
	if cfg.Monitor.Persist {
		sinks = append(sinks, metricSink)
	}
	if cfg.AMQP.URL != "" {
		var err error
		publisher, err = rabbitmq.Dial(cfg.AMQP.URL, cfg.AMQP.Queue)
		if err != nil {
			logrus.WithError(err).Error("[AMQP] metric publishing disabled")
		} else {
			sinks = append(sinks, publisher)
		}
	}
	monitor = botmonitor.New(cfg.Monitor.BufferSize, cfg.Monitor.TTL, sinks...)

	box := crypto.Default()
	sender = whatsapp.NewSender(cfg.Outbound.Timeout, box, monitor)

	engine = botengine.NewEngine(sessionStore, monitor, box, cfg.Engine.Timeout)
	engine.RegisterProvider(tenant.EngineIntent, providers.NewDialogflow("", cfg.Engine.Timeout, nil))
	engine.RegisterProvider(tenant.EngineFlow, providers.NewTypebot(cfg.Engine.Timeout))
	engine.RegisterProvider(tenant.EngineGenerative, providers.NewGenerative(botengine.NewMemoryStore()))

	loc := timeutils.LoadLocation(cfg.Reminder.Timezone)

	webhookUsecase = usecase.NewWebhookService(tenantCache, normalizer.New(), sessionStore, engine, sender, monitor)
	handoffUsecase = usecase.NewHandoffService(tenantCache, sessionStore)
	fulfillmentUsecase = usecase.NewFulfillmentService(tenantCache, reminderRepo, msgtemplate.New(loc))
	instanceUsecase = usecase.NewInstanceService(tenantRepo, sender, cfg.App.BasePath)

	opts := usecase.SchedulerOptions{
		Location:  loc,
		SendRate:  cfg.Reminder.SendRate,
		SendBurst: cfg.Reminder.SendBurst,
		Monitor:   monitor,
	}
	if cfg.Reminder.Audit {
		opts.Audit = dispatchRepo
	}
	reminderScheduler = usecase.NewReminderScheduler(reminderRepo, tenantRepo, sender, opts)
}

func migrate(ctx context.Context) error {
	for _, m := range []interface{ InitSchema(context.Context) error }{
		tenantRepo,
		reminderRepo,
		dispatchRepo,
		metricSink,
		repository.NewSessionGormRepository(db),
	} {
		if err := m.InitSchema(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// StopApp releases every connection opened by initApp.
func StopApp() {
	logrus.Info("[APP] Stopping application...")

	if reminderScheduler != nil {
		reminderScheduler.Stop()
	}
	if monitor != nil {
		monitor.Close()
	}
	if publisher != nil {
		publisher.Close()
	}
	if valkeyClient != nil {
		valkeyClient.Close()
	}
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	logrus.Info("[APP] Application stopped cleanly.")
}
