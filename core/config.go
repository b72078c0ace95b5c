package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		SecureCookies             bool
		CORSAllowedOrigins        []string
	}

	DatabaseConfig struct {
		Engine        string // postgres | sqlite
		Host          string
		Port          int
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Name          string
		DisableTLS    bool
	}

	MediaConfig struct {
		Root          string
		URL           string
		MaxUploadSize int64 // bytes
	}

	Config struct {
		AppName          string
		Build            string
		Debug            bool
		Env              string // DEV (local; default), TEST, QA, PROD
		TestMode         bool
		SecretKey        string
		DefaultFromEmail mail.Address
		FrontendBaseURL  string
		SendgridApiKey   string
		RollbarToken     string

		Server   ServerConfig
		Database DatabaseConfig
		Media    MediaConfig
	}
)

// Address returns the database "host:port".
func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, strconv.Itoa(db.Port))
}

// IsSQLite reports whether the embedded sqlite engine is configured.
func (db DatabaseConfig) IsSQLite() bool {
	return db.Engine == "sqlite"
}

// NewConfig loads the app configuration from defaults, an optional `config/.env.<env>` file and environment
// variables prefixed by the current env (e.g. DEV_DATABASE_NAME).
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("app_name", "Academia")
	v.SetDefault("build", "develop")
	v.SetDefault("secret_key", "k2l$9+wq!x4t-r%8hqz@0u^e7v(b3n5m*y1c&d6s=f_g#jp")
	v.SetDefault("default_from_email", "Academia <noreply@localhost>")
	v.SetDefault("frontend_base_url", "http://localhost:5173")
	v.SetDefault("sendgrid_api_key", "")
	v.SetDefault("rollbar_token", "")

	v.SetDefault("server_host", ":8000")
	v.SetDefault("server_debug_host", ":4000")
	v.SetDefault("server_shutdown_timeout", 5*time.Second)
	v.SetDefault("server_jwt_expiration_delta", time.Hour)
	v.SetDefault("server_jwt_refresh_expiration_delta", 7*24*time.Hour)
	v.SetDefault("server_secure_cookies", false)
	v.SetDefault("server_cors_allowed_origins", "http://localhost:5173,http://127.0.0.1:5173")

	v.SetDefault("database_engine", "postgres")
	v.SetDefault("database_host", "localhost")
	v.SetDefault("database_port", 5432)
	v.SetDefault("database_user", "academia")
	v.SetDefault("database_password", "academia")
	v.SetDefault("database_admin_user", "postgres")
	v.SetDefault("database_admin_password", "postgres")
	v.SetDefault("database_name", "academia")
	v.SetDefault("database_disable_tls", true)

	v.SetDefault("media_root", "media")
	v.SetDefault("media_url", "/media/")
	v.SetDefault("media_max_upload_size", 5*1024*1024)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("test_mode", true)
	} else {
		v.SetDefault("test_mode", false)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	fromEmail, err := mail.ParseAddress(v.GetString("default_from_email"))
	if err != nil {
		log.Fatalf("config.default_from_email: %v", err)
	}

	return &Config{
		AppName:          v.GetString("app_name"),
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		Env:              env,
		TestMode:         v.GetBool("test_mode"),
		SecretKey:        v.GetString("secret_key"),
		DefaultFromEmail: *fromEmail,
		FrontendBaseURL:  strings.TrimSuffix(v.GetString("frontend_base_url"), "/"),
		SendgridApiKey:   v.GetString("sendgrid_api_key"),
		RollbarToken:     v.GetString("rollbar_token"),
		Server: ServerConfig{
			Host:                      v.GetString("server_host"),
			DebugHost:                 v.GetString("server_debug_host"),
			ShutdownTimeout:           v.GetDuration("server_shutdown_timeout"),
			JWTExpirationDelta:        v.GetDuration("server_jwt_expiration_delta"),
			JWTRefreshExpirationDelta: v.GetDuration("server_jwt_refresh_expiration_delta"),
			SecureCookies:             v.GetBool("server_secure_cookies"),
			CORSAllowedOrigins:        splitList(v.GetString("server_cors_allowed_origins")),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database_engine"),
			Host:          v.GetString("database_host"),
			Port:          v.GetInt("database_port"),
			User:          v.GetString("database_user"),
			Password:      v.GetString("database_password"),
			AdminUser:     v.GetString("database_admin_user"),
			AdminPassword: v.GetString("database_admin_password"),
			Name:          v.GetString("database_name"),
			DisableTLS:    v.GetBool("database_disable_tls"),
		},
		Media: MediaConfig{
			Root:          v.GetString("media_root"),
			URL:           v.GetString("media_url"),
			MaxUploadSize: v.GetInt64("media_max_upload_size"),
		},
	}
}

func splitList(s string) []string {
	items := make([]string, 0)
	for _, item := range strings.Split(s, ",") {
		if item = CleanString(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
