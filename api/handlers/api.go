package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/linesmerrill/disaster-intake-api/api"
	"github.com/linesmerrill/disaster-intake-api/api/scheduler"
	"github.com/linesmerrill/disaster-intake-api/catalog"
	"github.com/linesmerrill/disaster-intake-api/channels"
	"github.com/linesmerrill/disaster-intake-api/config"
	"github.com/linesmerrill/disaster-intake-api/databases"
	"github.com/linesmerrill/disaster-intake-api/events"
	"github.com/linesmerrill/disaster-intake-api/lifecycle"
	"github.com/linesmerrill/disaster-intake-api/location"
	"github.com/linesmerrill/disaster-intake-api/models"
	"github.com/linesmerrill/disaster-intake-api/notify"
	"github.com/linesmerrill/disaster-intake-api/sessions"
)

const requestTimeout = 30 * time.Second

// App stores the router and the long-lived connections, so they can be reused
type App struct {
	Router    *mux.Router
	Config    config.Config
	Scheduler *scheduler.Scheduler

	dbHelper   databases.DatabaseHelper
	client     databases.ClientHelper
	redis      *redis.Client
	dispatcher *notify.Dispatcher
	manager    *lifecycle.Manager
	kafka      *events.KafkaPublisher
	services   Services
}

// Services holds everything the routes are served by
type Services struct {
	Auth    *api.MiddlewareDB
	Metrics *api.Metrics
	Webhook Webhook
	Report  Report
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	return NewRouter(a.services)
}

// NewRouter registers every route on top of the health and metrics router
func NewRouter(s Services) *mux.Router {
	r := api.New(s.Metrics)
	timed := api.TimeoutMiddleware(requestTimeout)

	// the stream is long lived, keep it out of the timeout subrouters
	r.Handle("/api/v1/emergency/stream", s.Auth.Middleware(http.HandlerFunc(s.Report.StreamHandler))).Methods(http.MethodGet)

	hooks := r.PathPrefix("/webhooks").Subrouter()
	hooks.Use(timed)
	hooks.HandleFunc("/sms", s.Webhook.SMSHandler).Methods(http.MethodPost)
	hooks.HandleFunc("/ussd", s.Webhook.USSDHandler).Methods(http.MethodPost)
	hooks.HandleFunc("/ussd/end", s.Webhook.USSDEndHandler).Methods(http.MethodPost)
	// status must be registered before the {action} catch-all
	hooks.HandleFunc("/ivr/status", s.Webhook.IVRStatusHandler).Methods(http.MethodPost)
	hooks.HandleFunc("/ivr/{action}", s.Webhook.IVRHandler).Methods(http.MethodPost)

	ivr := r.PathPrefix("/ivr").Subrouter()
	ivr.Use(timed)
	ivr.HandleFunc("/confirmation/{report_id}", s.Webhook.IVRConfirmationHandler).Methods(http.MethodGet, http.MethodPost)

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.Use(timed)

	apiV1.HandleFunc("/auth/token", s.Auth.CreateToken).Methods(http.MethodPost)
	apiV1.Handle("/auth/logout", s.Auth.Middleware(http.HandlerFunc(s.Auth.RevokeToken))).Methods(http.MethodDelete)

	apiV1.Handle("/emergency/reports", s.Auth.Middleware(http.HandlerFunc(s.Report.ListReportsHandler))).Methods(http.MethodGet)
	apiV1.Handle("/emergency/reports", s.Auth.Middleware(http.HandlerFunc(s.Report.CreateReportHandler))).Methods(http.MethodPost)
	apiV1.Handle("/emergency/reports/{report_id}", s.Auth.Middleware(http.HandlerFunc(s.Report.ReportDetailsHandler))).Methods(http.MethodGet)
	apiV1.Handle("/emergency/reports/{report_id}/acknowledge", s.Auth.Middleware(http.HandlerFunc(s.Report.AcknowledgeReportHandler))).Methods(http.MethodPost)
	apiV1.Handle("/emergency/reports/{report_id}/status", s.Auth.Middleware(http.HandlerFunc(s.Report.UpdateStatusHandler))).Methods(http.MethodPut)
	apiV1.Handle("/emergency/services", s.Auth.Middleware(http.HandlerFunc(s.Report.EmergencyServicesHandler))).Methods(http.MethodGet)

	return r
}

// Initialize is invoked by main to connect with the databases and create a router
func (a *App) Initialize() error {
	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}
	a.client = client

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	a.dbHelper = databases.NewDatabase(&a.Config, client)
	zap.S().Info("disaster-intake-api has connected to the database")

	reportDB := databases.NewReportDatabase(a.dbHelper)
	responderDB := databases.NewResponderDatabase(a.dbHelper)
	confirmationDB := databases.NewConfirmationDatabase(a.dbHelper)
	for _, ix := range []interface{ EnsureIndexes(context.Context) error }{reportDB, responderDB, confirmationDB} {
		if err := ix.EnsureIndexes(ctx); err != nil {
			zap.S().Warnw("failed to ensure indexes", "error", err)
		}
	}

	a.redis, err = sessions.NewRedisClient(a.Config.RedisURL)
	if err != nil {
		zap.S().With(err).Error("failed to create redis client")
		return err
	}
	if err := a.redis.Ping(ctx).Err(); err != nil {
		zap.S().With(err).Error("failed to connect to redis")
		return err
	}
	store := sessions.NewRedisStore(a.redis, a.Config.SessionTTL)

	metrics := api.NewMetrics()
	cat := catalog.Default()
	resolver := location.NewResolver(location.NewHTTPGeocoder(a.Config.GeocoderURL))

	hub := events.NewHub()
	publisher := events.Multi{hub}
	if len(a.Config.KafkaBrokers) > 0 {
		a.kafka = events.NewKafkaPublisher(a.Config.KafkaBrokers, a.Config.KafkaTopic)
		publisher = append(publisher, a.kafka)
		zap.S().Infow("publishing report events to kafka", "brokers", a.Config.KafkaBrokers, "topic", a.Config.KafkaTopic)
	}
	manager := lifecycle.NewManager(reportDB, resolver, publisher)
	a.manager = manager

	var sms notify.SMSSender = notify.LogGateway{}
	if a.Config.SMSGatewayURL != "" {
		sms = notify.NewHTTPGateway(a.Config.SMSGatewayURL, a.Config.SMSGatewayKey, "sms-gateway")
	}
	var voice notify.VoiceCaller = notify.LogGateway{}
	if a.Config.VoiceGatewayURL != "" {
		voice = notify.NewHTTPGateway(a.Config.VoiceGatewayURL, a.Config.VoiceGatewayKey, "voice-gateway")
	}
	a.dispatcher = notify.NewDispatcher(confirmationDB, sms, voice, a.Config.ConfirmationWorkers, a.Config.ConfirmationMaxTries,
		notify.WithObserver(metrics.ObserveConfirmation))

	auth := api.NewMiddlewareDB(responderDB, a.Config.JWTSecret)

	notifier := reporterNotifier{confirmer: a.dispatcher, catalog: cat, baseURL: a.Config.BaseURL}
	a.services = Services{
		Auth:    auth,
		Metrics: metrics,
		Webhook: Webhook{
			SMS:      channels.NewSMS(manager, cat),
			USSD:     channels.NewUSSD(store, manager, cat, resolver),
			IVR:      channels.NewIVR(store, manager, cat, resolver, a.Config.OperatorNumber),
			Reports:  manager,
			Catalog:  cat,
			Limiter:  api.NewRateLimiter(a.Config.WebhookRatePerMinute),
			Metrics:  metrics,
			BaseURL:  a.Config.BaseURL,
			notifier: notifier,
		},
		Report: Report{
			Reports:  manager,
			Resolver: resolver,
			Catalog:  cat,
			Hub:      hub,
			Metrics:  metrics,
			notifier: notifier,
		},
	}

	a.Scheduler = scheduler.NewScheduler(manager, a.dispatcher,
		notify.NewEmailNotifier(a.Config.SendgridAPIKey, a.Config.EscalationEmail, a.Config.BaseURL),
		scheduler.NewRedisLocker(a.redis), a.Config.EscalateAfter, a.Config.EscalationPriority)
	a.Scheduler.OnEscalate = func(*models.EmergencyReport) { metrics.Escalations.Inc() }

	// initialize api router
	a.initializeRoutes()
	return nil
}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

// Close waits for queued confirmations and releases every connection
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.manager != nil {
		a.manager.Wait()
	}
	if a.dispatcher != nil {
		a.dispatcher.Wait()
	}
	if a.kafka != nil {
		errs = append(errs, a.kafka.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.client != nil {
		errs = append(errs, a.client.Disconnect(ctx))
	}
	return errors.Join(errs...)
}
