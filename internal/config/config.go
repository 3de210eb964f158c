package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/nomance-app/nomance/internal/domain"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"
)

type Config struct {
	ServerPort string
	// Storage is "postgres" or "memory".
	Storage    string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	JWTSecret  string

	GuestUserID string

	APIURL      string
	RealtimeURL string
	CoachURL    string
	SessionFile string

	TypingQuietPeriod time.Duration
	LogLevel          string
}

// Load reads configuration from the environment, optionally preloaded from
// a .env file in the working directory.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		jww.DEBUG.Printf("config: loaded .env")
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	return &Config{
		ServerPort:        v.GetString("SERVER_PORT"),
		Storage:           v.GetString("STORAGE"),
		DBHost:            v.GetString("DB_HOST"),
		DBPort:            v.GetString("DB_PORT"),
		DBUser:            v.GetString("DB_USER"),
		DBPassword:        v.GetString("DB_PASSWORD"),
		DBName:            v.GetString("DB_NAME"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		GuestUserID:       v.GetString("GUEST_USER_ID"),
		APIURL:            v.GetString("API_URL"),
		RealtimeURL:       v.GetString("REALTIME_URL"),
		CoachURL:          v.GetString("COACH_URL"),
		SessionFile:       v.GetString("SESSION_FILE"),
		TypingQuietPeriod: v.GetDuration("TYPING_QUIET_PERIOD"),
		LogLevel:          v.GetString("LOG_LEVEL"),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("STORAGE", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "nomance")
	v.SetDefault("DB_PASSWORD", "nomance_dev_password")
	v.SetDefault("DB_NAME", "nomance")
	v.SetDefault("JWT_SECRET", "dev-secret-change-me")
	v.SetDefault("GUEST_USER_ID", domain.GuestID.String())
	v.SetDefault("API_URL", "http://localhost:8080")
	v.SetDefault("REALTIME_URL", "ws://localhost:8080/ws")
	v.SetDefault("COACH_URL", "http://localhost:8090/coach")
	v.SetDefault("SESSION_FILE", ".nomance-session")
	v.SetDefault("TYPING_QUIET_PERIOD", 2*time.Second)
	v.SetDefault("LOG_LEVEL", "info")
}
