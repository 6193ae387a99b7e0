// Package config builds the engine configuration from environment variables
// so main stays lean. Every safety-relevant constant lives here: suspicion
// weights, rate-limit defaults, the encryption master seed, and backend
// endpoints. Nothing in the scoring or limiting paths is hard-coded.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the full configuration surface for the trust & safety engine.
type Config struct {
	Addr     string `envconfig:"AEGIS_ADDR" default:":8080"`
	LogLevel string `envconfig:"AEGIS_LOG_LEVEL" default:"info"`

	JWT    JWT
	Crypto Crypto
	Limits Limits
	Risk   Risk

	Verifier Verifier
	Redis    Redis
	Postgres Postgres
	Kafka    Kafka
}

// JWT configures access token signing for the login gate.
type JWT struct {
	SigningKey string        `envconfig:"AEGIS_JWT_SIGNING_KEY" default:"dev-secret-key-change-in-production"`
	Issuer     string        `envconfig:"AEGIS_JWT_ISSUER" default:"aegis"`
	TokenTTL   time.Duration `envconfig:"AEGIS_JWT_TOKEN_TTL" default:"1h"`
}

// Crypto configures the envelope encryption service.
type Crypto struct {
	// MasterSeed feeds the argon2id derivation that seals private keys at
	// rest. It must be overridden outside development.
	MasterSeed string `envconfig:"AEGIS_MASTER_SEED" default:"dev-master-seed-change-in-production"`
	// Workers bounds concurrent RSA/AES operations so CPU-heavy crypto never
	// starves request handling. Zero means GOMAXPROCS.
	Workers int `envconfig:"AEGIS_CRYPTO_WORKERS" default:"0"`
}

// Limits holds the rate-limit defaults from the product requirements.
type Limits struct {
	MaxLoginAttempts      int           `envconfig:"AEGIS_MAX_LOGIN_ATTEMPTS" default:"5"`
	LoginWindow           time.Duration `envconfig:"AEGIS_LOGIN_WINDOW" default:"15m"`
	LockoutDuration       time.Duration `envconfig:"AEGIS_LOCKOUT_DURATION" default:"15m"`
	MaxRegistrationsPerIP int           `envconfig:"AEGIS_MAX_REGISTRATIONS_PER_IP" default:"3"`
	RegistrationWindow    time.Duration `envconfig:"AEGIS_REGISTRATION_WINDOW" default:"1h"`
	MaxMessagesPerMinute  int           `envconfig:"AEGIS_MAX_MESSAGES_PER_MINUTE" default:"30"`
}

// Risk holds the suspicion weight table and lexicons for the content scorer.
// Weights are additive; the scorer flags a message when the total exceeds
// SuspicionThreshold.
type Risk struct {
	KeywordWeight      int      `envconfig:"AEGIS_RISK_KEYWORD_WEIGHT" default:"10"`
	GroomingWeight     int      `envconfig:"AEGIS_RISK_GROOMING_WEIGHT" default:"25"`
	ReadabilityWeight  int      `envconfig:"AEGIS_RISK_READABILITY_WEIGHT" default:"5"`
	ReadabilityEase    float64  `envconfig:"AEGIS_RISK_READABILITY_EASE" default:"90"`
	EmojiWeight        int      `envconfig:"AEGIS_RISK_EMOJI_WEIGHT" default:"15"`
	EmojiRatio         float64  `envconfig:"AEGIS_RISK_EMOJI_RATIO" default:"0.30"`
	PressureWeight     int      `envconfig:"AEGIS_RISK_PRESSURE_WEIGHT" default:"8"`
	SuspicionThreshold int      `envconfig:"AEGIS_RISK_SUSPICION_THRESHOLD" default:"20"`
	SuspiciousKeywords []string `envconfig:"AEGIS_RISK_SUSPICIOUS_KEYWORDS" default:"secret,don't tell,between us,special friend,mature for your age"`
	GroomingPhrases    []string `envconfig:"AEGIS_RISK_GROOMING_PHRASES" default:"our little secret,don't tell your parents,you can trust me,send me a photo,are you alone"`
	PressureWords      []string `envconfig:"AEGIS_RISK_PRESSURE_WORDS" default:"hurry,now or never,last chance,right now,before it's too late"`
}

// Verifier bounds calls to the external document verifier. A slow OCR or
// liveness backend must resolve to a rejected outcome, never a stuck record.
type Verifier struct {
	Timeout time.Duration `envconfig:"AEGIS_VERIFIER_TIMEOUT" default:"10s"`
}

// Redis configures the optional external rate-limit window store.
type Redis struct {
	URL          string        `envconfig:"AEGIS_REDIS_URL" default:""`
	PoolSize     int           `envconfig:"AEGIS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AEGIS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AEGIS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AEGIS_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"AEGIS_REDIS_WRITE_TIMEOUT" default:"3s"`
}

// Postgres configures the optional durable stores for audit events and
// verification records. Empty URL keeps the in-memory stores.
type Postgres struct {
	URL string `envconfig:"AEGIS_POSTGRES_URL" default:""`
}

// Kafka configures the optional SIEM fan-out of high-severity events.
type Kafka struct {
	Brokers []string `envconfig:"AEGIS_KAFKA_BROKERS" default:""`
	Topic   string   `envconfig:"AEGIS_KAFKA_TOPIC" default:"aegis.security-events"`
}

// Load populates a Config from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
