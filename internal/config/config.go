package config

import "time"

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	Database    Database

	Mpesa        Mpesa `envPrefix:"MPESA_"`
	Redis        Redis `envPrefix:"REDIS_"`
	Auth         Auth
	Notification Notification
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
	// requests per second allowed on the status polling route, per client IP
	StatusRateLimit float64 `env:"HTTP_STATUS_RATE_LIMIT" envDefault:"5"`
}

type Database struct {
	Driver string `env:"DB_DRIVER" envDefault:"sqlite"` // sqlite, mysql, postgres
	URL    string `env:"DATABASE_URL" envDefault:"checkout.db"`
}

const (
	MpesaSandboxURL    = "https://sandbox.safaricom.co.ke"
	MpesaProductionURL = "https://api.safaricom.co.ke"
)

type Mpesa struct {
	Environment    string        `env:"ENVIRONMENT" envDefault:"sandbox"` // sandbox, production
	BaseURL        string        `env:"BASE_URL"`                         // overrides Environment when set
	ConsumerKey    string        `env:"CONSUMER_KEY"`
	ConsumerSecret string        `env:"CONSUMER_SECRET"`
	ShortCode      string        `env:"SHORT_CODE"`
	Passkey        string        `env:"PASSKEY"`
	CallbackURL    string        `env:"CALLBACK_URL"`
	Timeout        time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

// APIBaseURL resolves the Daraja host for the configured environment.
func (m Mpesa) APIBaseURL() string {
	if m.BaseURL != "" {
		return m.BaseURL
	}
	if m.Environment == "production" {
		return MpesaProductionURL
	}
	return MpesaSandboxURL
}

type Redis struct {
	URL       string        `env:"URL"` // empty disables the gateway status cache
	StatusTTL time.Duration `env:"STATUS_TTL" envDefault:"10s"`
}

type Auth struct {
	JWTSecret string `env:"JWT_SECRET"`
}

type Notification struct {
	SMTPHost     string   `env:"SMTP_HOST"` // empty logs notifications instead of sending
	SMTPPort     int      `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string   `env:"SMTP_USERNAME"`
	SMTPPassword string   `env:"SMTP_PASSWORD"`
	From         string   `env:"MAIL_FROM" envDefault:"orders@localhost"`
	AdminEmails  []string `env:"ADMIN_EMAILS" envSeparator:","`
	OpsEmails    []string `env:"OPS_EMAILS" envSeparator:","`

	RelayWorkers      int           `env:"RELAY_WORKERS" envDefault:"2"`
	RelayBatchSize    int           `env:"RELAY_BATCH_SIZE" envDefault:"20"`
	RelayPollInterval time.Duration `env:"RELAY_POLL_INTERVAL" envDefault:"2s"`
	RelayMaxAttempts  int           `env:"RELAY_MAX_ATTEMPTS" envDefault:"5"`
}

// StaffRecipients is the deduplicated union of admin and operations recipients.
func (n Notification) StaffRecipients() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(n.AdminEmails)+len(n.OpsEmails))
	for _, list := range [][]string{n.AdminEmails, n.OpsEmails} {
		for _, addr := range list {
			if addr == "" {
				continue
			}
			if _, ok := seen[addr]; ok {
				continue
			}
			seen[addr] = struct{}{}
			out = append(out, addr)
		}
	}
	return out
}
