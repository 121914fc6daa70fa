package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// HSVRange is an inclusive hue/saturation/value band used by the uniform
// color classifier. Hue follows the OpenCV 0-180 convention.
type HSVRange struct {
	LowH, LowS, LowV    float64
	HighH, HighS, HighV float64
}

type Config struct {
	// Application
	Version     string
	Environment string
	WorkerID    string
	Port        int
	LogLevel    string

	// Logdy (lightweight web log viewer)
	LogdyEnabled bool
	LogdyHost    string
	LogdyPort    int

	// Models
	ModelsDir         string
	GeneralModelFile  string
	ApronCapModelFile string
	GlovesModelFile   string
	ModelInputSize    int

	// Detection
	ConfidenceThreshold float32
	NMSThreshold        float32
	FrameSkipRate       int

	// Compliance rules
	PhonePersistence    time.Duration
	PhoneMatchDistance  float64
	AlertCooldown       time.Duration
	CooldownSweepFactor int // evict cooldown entries older than N cooldowns
	CompliantRatioMin   float64
	TorsoTopFraction    float64
	TorsoBottomFrac     float64
	YellowBand          HSVRange
	BlackBand           HSVRange

	// Stream acquisition
	StreamOpenTimeout time.Duration
	StreamReadTimeout time.Duration
	ReconnectInterval time.Duration
	DefaultFPS        float64

	// Placeholder feed
	PlaceholderWidth    int
	PlaceholderHeight   int
	PlaceholderInterval time.Duration

	// NATS (notification channel)
	NatsURL            string
	NatsConnectTimeout time.Duration
	NatsReconnectWait  time.Duration
	NatsMaxReconnects  int
	AlertsSubject      string

	// Violation store (Postgres)
	DatabaseURL string

	// Evidence
	MediaDir     string
	MediaQuality int

	// Timezone used on persisted violation timestamps
	Timezone string

	// Graceful shutdown
	ShutdownTimeout time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file found, using environment variables and defaults")
	} else {
		log.Info().Msg("Loaded configuration from .env file")
	}

	return &Config{
		// Application
		Version:     getEnv("VERSION", "1.0.0"),
		Environment: getEnv("ENVIRONMENT", "development"),
		WorkerID:    getEnv("WORKER_ID", "kitchen-worker-1"),
		Port:        getEnvInt("PORT", 8000),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Logdy
		LogdyEnabled: getEnvBool("LOGDY_ENABLED", false),
		LogdyHost:    getEnv("LOGDY_HOST", "localhost"),
		LogdyPort:    getEnvInt("LOGDY_PORT", 8080),

		// Models
		ModelsDir:         getEnv("MODELS_DIR", "models"),
		GeneralModelFile:  getEnv("GENERAL_MODEL_FILE", "yolov8n.onnx"),
		ApronCapModelFile: getEnv("APRON_CAP_MODEL_FILE", "apron-cap.onnx"),
		GlovesModelFile:   getEnv("GLOVES_MODEL_FILE", "gloves.onnx"),
		ModelInputSize:    getEnvInt("MODEL_INPUT_SIZE", 640),

		// Detection
		ConfidenceThreshold: getEnvFloat32("CONFIDENCE_THRESHOLD", 0.50),
		NMSThreshold:        getEnvFloat32("NMS_THRESHOLD", 0.45),
		FrameSkipRate:       getEnvInt("FRAME_SKIP_RATE", 5),

		// Compliance rules
		PhonePersistence:    getEnvDuration("PHONE_PERSISTENCE", 3*time.Second),
		PhoneMatchDistance:  getEnvFloat("PHONE_MATCH_DISTANCE", 50),
		AlertCooldown:       getEnvDuration("ALERT_COOLDOWN", 60*time.Second),
		CooldownSweepFactor: getEnvInt("COOLDOWN_SWEEP_FACTOR", 10),
		CompliantRatioMin:   getEnvFloat("COMPLIANT_RATIO_MIN", 0.30),
		TorsoTopFraction:    getEnvFloat("TORSO_TOP_FRACTION", 0.1),
		TorsoBottomFrac:     getEnvFloat("TORSO_BOTTOM_FRACTION", 0.7),
		YellowBand:          HSVRange{18, 80, 80, 35, 255, 255},
		BlackBand:           HSVRange{0, 0, 0, 180, 255, 50},

		// Stream acquisition
		StreamOpenTimeout: getEnvDuration("STREAM_OPEN_TIMEOUT", 5*time.Second),
		StreamReadTimeout: getEnvDuration("STREAM_READ_TIMEOUT", 5*time.Second),
		ReconnectInterval: getEnvDuration("RECONNECT_INTERVAL", 5*time.Second),
		DefaultFPS:        getEnvFloat("DEFAULT_FPS", 30),

		// Placeholder feed
		PlaceholderWidth:    getEnvInt("PLACEHOLDER_WIDTH", 640),
		PlaceholderHeight:   getEnvInt("PLACEHOLDER_HEIGHT", 480),
		PlaceholderInterval: getEnvDuration("PLACEHOLDER_INTERVAL", 100*time.Millisecond),

		// NATS
		NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
		NatsConnectTimeout: getEnvDuration("NATS_CONNECT_TIMEOUT", 10*time.Second),
		NatsReconnectWait:  getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		NatsMaxReconnects:  getEnvInt("NATS_MAX_RECONNECTS", -1),
		AlertsSubject:      getEnv("ALERTS_SUBJECT", "alerts.kitchen"),

		// Violation store
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/kitchen?sslmode=disable"),

		// Evidence
		MediaDir:     getEnv("MEDIA_DIR", "media/kitchen"),
		MediaQuality: getEnvInt("MEDIA_QUALITY", 90),

		Timezone: getEnv("TIMEZONE", "Asia/Kolkata"),

		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat32(key string, defaultValue float32) float32 {
	return float32(getEnvFloat(key, float64(defaultValue)))
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
