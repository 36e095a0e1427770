package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Debug            bool
		TestMode         bool
		Env              string // dev (local; default), test, qa, prod
		Build            string
		AppName          string
		SecretKey        string
		DefaultFromEmail mail.Address
		FrontendBaseURL  string
		RollbarToken     string
		SendgridApiKey   string

		Server    ServerConfig
		Auth      AuthConfig
		Database  DatabaseConfig
		RateLimit RateLimitConfig
	}

	ServerConfig struct {
		Host            string
		DebugHost       string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
		CORSOrigins     []string
		BodyLimit       string
	}

	AuthConfig struct {
		JWTExpirationDelta time.Duration
		MaxLoginAttempts   int
		LockDuration       time.Duration
		PasswordHashCost   int
		AllowAdminSignup   bool
	}

	DatabaseConfig struct {
		Driver         string // mongo | memory
		URI            string
		Name           string
		ConnectTimeout time.Duration
	}

	RateLimitConfig struct {
		Enabled       bool
		Requests      int
		Window        time.Duration
		RedisAddr     string
		RedisPassword string
		RedisDB       int
	}
)

// Database drivers
const (
	DBDriverMongo  = "mongo"
	DBDriverMemory = "memory"
)

func (c *Config) IsProduction() bool { return c.Env == "prod" }

// NewConfig loads the app configuration from defaults, an optional `config/.env.<env>` file and
// SKY_ prefixed environment variables (`server.host` -> `SKY_SERVER_HOST`).
func NewConfig() *Config {
	env := strings.ToLower(os.Getenv("ENV"))
	if env == "" {
		env = "dev"
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+env)
	if dir := os.Getenv("SKY_CONFIG_DIR"); dir != "" {
		dotEnvPath = filepath.Join(dir, ".env."+env)
	}
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}

	v := viper.New()
	setDefaults(v, env)
	v.SetEnvPrefix("SKY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fromEmail, err := mail.ParseAddress(v.GetString("defaultFromEmail"))
	if err != nil {
		log.Fatalf("config.defaultFromEmail: %v", err)
	}

	return &Config{
		Debug:            v.GetBool("debug"),
		TestMode:         env == "test",
		Env:              env,
		Build:            v.GetString("build"),
		AppName:          v.GetString("appName"),
		SecretKey:        v.GetString("secretKey"),
		DefaultFromEmail: *fromEmail,
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			DebugHost:       v.GetString("server.debugHost"),
			ReadTimeout:     v.GetDuration("server.readTimeout"),
			WriteTimeout:    v.GetDuration("server.writeTimeout"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
			CORSOrigins:     v.GetStringSlice("server.corsOrigins"),
			BodyLimit:       v.GetString("server.bodyLimit"),
		},
		Auth: AuthConfig{
			JWTExpirationDelta: v.GetDuration("auth.jwtExpirationDelta"),
			MaxLoginAttempts:   v.GetInt("auth.maxLoginAttempts"),
			LockDuration:       v.GetDuration("auth.lockDuration"),
			PasswordHashCost:   v.GetInt("auth.passwordHashCost"),
			AllowAdminSignup:   v.GetBool("auth.allowAdminSignup"),
		},
		Database: DatabaseConfig{
			Driver:         v.GetString("database.driver"),
			URI:            v.GetString("database.uri"),
			Name:           v.GetString("database.name"),
			ConnectTimeout: v.GetDuration("database.connectTimeout"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       v.GetBool("rateLimit.enabled"),
			Requests:      v.GetInt("rateLimit.requests"),
			Window:        v.GetDuration("rateLimit.window"),
			RedisAddr:     v.GetString("rateLimit.redisAddr"),
			RedisPassword: v.GetString("rateLimit.redisPassword"),
			RedisDB:       v.GetInt("rateLimit.redisDB"),
		},
	}
}

func setDefaults(v *viper.Viper, env string) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", env == "dev" || env == "test")
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "SkyTraining")
	v.SetDefault("secretKey", "y7c!z0f$w2m@q9#vb1x^k3=l8p&n5t(r)e4u*s6j")
	v.SetDefault("defaultFromEmail", "SkyTraining <noreply@localhost>")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")

	v.SetDefault("server.host", "0.0.0.0:5000")
	v.SetDefault("server.debugHost", "0.0.0.0:4000")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 5*time.Second)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.corsOrigins", []string{"http://localhost:3000"})
	v.SetDefault("server.bodyLimit", "10M")

	v.SetDefault("auth.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("auth.maxLoginAttempts", 5)
	v.SetDefault("auth.lockDuration", 2*time.Hour)
	v.SetDefault("auth.passwordHashCost", 12)
	v.SetDefault("auth.allowAdminSignup", false)

	v.SetDefault("database.driver", DBDriverMongo)
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "skytraining")
	v.SetDefault("database.connectTimeout", 10*time.Second)

	v.SetDefault("rateLimit.enabled", true)
	v.SetDefault("rateLimit.requests", 100)
	v.SetDefault("rateLimit.window", 15*time.Minute)
	v.SetDefault("rateLimit.redisAddr", "")
	v.SetDefault("rateLimit.redisPassword", "")
	v.SetDefault("rateLimit.redisDB", 0)
}

// NewTestConfig returns a Config suited for tests: in-memory storage, fast hashing, no rate limiting.
func NewTestConfig() *Config {
	return &Config{
		Debug:            true,
		TestMode:         true,
		Env:              "test",
		Build:            "test",
		AppName:          "SkyTraining",
		SecretKey:        "test-secret",
		DefaultFromEmail: mail.Address{Name: "SkyTraining", Address: "noreply@test.local"},
		FrontendBaseURL:  "http://localhost:3000",
		Server: ServerConfig{
			Host:            "127.0.0.1:0",
			ShutdownTimeout: time.Second,
			BodyLimit:       "1M",
		},
		Auth: AuthConfig{
			JWTExpirationDelta: time.Hour,
			MaxLoginAttempts:   5,
			LockDuration:       2 * time.Hour,
			PasswordHashCost:   4, // bcrypt.MinCost
		},
		Database: DatabaseConfig{Driver: DBDriverMemory},
	}
}
