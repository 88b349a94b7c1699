package config

import (
	"os"
	"strconv"
)

type Config struct {
	DB     DBConfig
	JWT    JWTConfig
	Server ServerConfig
	MinIO  MinIOConfig
	SSO    SSOConfig
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type JWTConfig struct {
	Secret                 string
	ExpirationHours        int
	RefreshExpirationHours int
}

type ServerConfig struct {
	Port        string
	FrontendURL string
}

type MinIOConfig struct {
	Endpoint       string
	PublicEndpoint string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
}

type OAuthClientConfig struct {
	Enabled      bool
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       string
}

type SSOConfig struct {
	Google   OAuthClientConfig
	Apple    OAuthClientConfig
	Facebook OAuthClientConfig
}

func Load() *Config {
	return &Config{
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "dailyflo"),
			Password: getEnv("DB_PASSWORD", "dailyflo_secret"),
			Name:     getEnv("DB_NAME", "dailyflo"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			Secret:                 getEnv("JWT_SECRET", "change-me-in-production"),
			ExpirationHours:        getEnvAsInt("JWT_EXPIRATION_HOURS", 24),
			RefreshExpirationHours: getEnvAsInt("JWT_REFRESH_EXPIRATION_HOURS", 24*30),
		},
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),
		},
		MinIO: MinIOConfig{
			Endpoint:       getEnv("MINIO_ENDPOINT", "localhost:9000"),
			PublicEndpoint: getEnv("MINIO_PUBLIC_ENDPOINT", getEnv("MINIO_ENDPOINT", "localhost:9000")),
			AccessKey:      getEnv("MINIO_ACCESS_KEY", "dailyflo"),
			SecretKey:      getEnv("MINIO_SECRET_KEY", "dailyflo_secret"),
			Bucket:         getEnv("MINIO_BUCKET", "dailyflo-avatars"),
			UseSSL:         getEnvAsBool("MINIO_USE_SSL", false),
		},
		SSO: SSOConfig{
			Google: OAuthClientConfig{
				Enabled:      getEnvAsBool("SSO_GOOGLE_ENABLED", false),
				ClientID:     getEnv("SSO_GOOGLE_CLIENT_ID", ""),
				ClientSecret: getEnv("SSO_GOOGLE_CLIENT_SECRET", ""),
				RedirectURL:  getEnv("SSO_GOOGLE_REDIRECT_URL", ""),
				Scopes:       getEnv("SSO_GOOGLE_SCOPES", "openid,email,profile"),
			},
			Apple: OAuthClientConfig{
				Enabled:      getEnvAsBool("SSO_APPLE_ENABLED", false),
				ClientID:     getEnv("SSO_APPLE_CLIENT_ID", ""),
				ClientSecret: getEnv("SSO_APPLE_CLIENT_SECRET", ""),
				RedirectURL:  getEnv("SSO_APPLE_REDIRECT_URL", ""),
				Scopes:       getEnv("SSO_APPLE_SCOPES", "name,email"),
			},
			Facebook: OAuthClientConfig{
				Enabled:      getEnvAsBool("SSO_FACEBOOK_ENABLED", false),
				ClientID:     getEnv("SSO_FACEBOOK_CLIENT_ID", ""),
				ClientSecret: getEnv("SSO_FACEBOOK_CLIENT_SECRET", ""),
				RedirectURL:  getEnv("SSO_FACEBOOK_REDIRECT_URL", ""),
				Scopes:       getEnv("SSO_FACEBOOK_SCOPES", "email,public_profile"),
			},
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
