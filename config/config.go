package config

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config holds the project config values
type Config struct {
	URL          string
	DatabaseName string
	BaseURL      string
	Port         string
	Environment  string

	RedisURL   string
	SessionTTL time.Duration

	SMSGatewayURL   string
	SMSGatewayKey   string
	VoiceGatewayURL string
	VoiceGatewayKey string
	OperatorNumber  string
	GeocoderURL     string

	KafkaBrokers []string
	KafkaTopic   string

	SendgridAPIKey  string
	EscalationEmail string

	JWTSecret            string
	WebhookRatePerMinute int
	EscalateAfter        time.Duration
	EscalationPriority   float64
	ConfirmationMaxTries int
	ConfirmationWorkers  int64
}

// Defaults applied when the environment leaves a value unset
const (
	DefaultSessionTTL          = 5 * time.Minute
	DefaultEscalateAfter       = 15 * time.Minute
	DefaultEscalationPriority  = 100
	DefaultConfirmationTries   = 5
	DefaultConfirmationWorkers = 8
	DefaultWebhookRate         = 30
	DefaultGeocoderURL         = "https://api.bigdatacloud.net/data/reverse-geocode-client"
	DefaultOperatorNumber      = "+911234567890"
	DefaultKafkaTopic          = "emergency-reports"
)

// New sets up all config related services
func New() *Config {
	// a missing .env is fine, real deployments set the environment directly
	_ = godotenv.Load()

	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "" {
		env = "development"
	}

	//setup zap logger and replace default logger
	logger, err := setLogger(env)
	if err != nil {
		logger = zap.NewExample()
	}
	_ = zap.ReplaceGlobals(logger)

	c := &Config{
		URL:                  os.Getenv("DB_URI"),
		DatabaseName:         os.Getenv("DB_NAME"),
		BaseURL:              os.Getenv("BASE_URL"),
		Port:                 os.Getenv("PORT"),
		Environment:          env,
		RedisURL:             getEnv("REDIS_URL", "redis://localhost:6379/0"),
		SessionTTL:           getDuration("SESSION_TTL", DefaultSessionTTL),
		SMSGatewayURL:        os.Getenv("SMS_GATEWAY_URL"),
		SMSGatewayKey:        os.Getenv("SMS_GATEWAY_KEY"),
		VoiceGatewayURL:      os.Getenv("VOICE_GATEWAY_URL"),
		VoiceGatewayKey:      os.Getenv("VOICE_GATEWAY_KEY"),
		OperatorNumber:       getEnv("OPERATOR_NUMBER", DefaultOperatorNumber),
		GeocoderURL:          getEnv("GEOCODER_URL", DefaultGeocoderURL),
		KafkaTopic:           getEnv("KAFKA_TOPIC", DefaultKafkaTopic),
		SendgridAPIKey:       os.Getenv("SENDGRID_API_KEY"),
		EscalationEmail:      os.Getenv("ESCALATION_EMAIL"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		WebhookRatePerMinute: getInt("WEBHOOK_RATE_PER_MINUTE", DefaultWebhookRate),
		EscalateAfter:        getDuration("ESCALATE_AFTER", DefaultEscalateAfter),
		EscalationPriority:   float64(getInt("ESCALATION_PRIORITY", DefaultEscalationPriority)),
		ConfirmationMaxTries: getInt("CONFIRMATION_MAX_ATTEMPTS", DefaultConfirmationTries),
		ConfirmationWorkers:  int64(getInt("CONFIRMATION_WORKERS", DefaultConfirmationWorkers)),
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				c.KafkaBrokers = append(c.KafkaBrokers, b)
			}
		}
	}
	return c
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		zap.S().Warnw("invalid integer in environment, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		zap.S().Warnw("invalid duration in environment, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return d
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	zap.S().With(err).Error(message)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)
	w.Write([]byte(fmt.Sprintf(`{"Response":{"Message":%q,"Error":%q}}`, message, errString(err))))
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
