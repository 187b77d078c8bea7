package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// KafkaConfig holds broker addresses and the consumer group prefix.
type KafkaConfig struct {
	Brokers     []string
	GroupPrefix string
}

// UpstreamConfig holds base URLs and credentials for external collaborators.
type UpstreamConfig struct {
	ModelServerURL      string
	NominatimBaseURL    string
	NominatimUserAgent  string
	CarbonIntensityURL  string
	WattTimeURL         string
	WattTimeCredentials string
	ElectricityMapsURL  string
	ElectricityMapsKey  string
	TomTomURL           string
	TomTomKey           string
	GoogleMapsURL       string
	GoogleMapsKey       string
	OpenMeteoURL        string
}

// ServiceConfig holds all configuration for the estimation service.
type ServiceConfig struct {
	Port           string
	AppEnv         string
	AllowedOrigins []string
	DBConfig       DatabaseConfig
	KafkaConfig    KafkaConfig
	Upstreams      UpstreamConfig
}

// Load reads configuration from the environment (and a .env file if one is
// present in the working directory).
func Load() (*ServiceConfig, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ESTIMATION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("SERVICE_PORT", ":8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "carbonsense")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_GROUP_PREFIX", "carbonsense-")

	v.SetDefault("MODEL_SERVER_URL", "http://localhost:8000")
	v.SetDefault("NOMINATIM_URL", "https://nominatim.openstreetmap.org")
	v.SetDefault("NOMINATIM_USER_AGENT", "CarbonSense/2.0 (estimation-service)")
	v.SetDefault("CARBON_INTENSITY_URL", "https://api.carbonintensity.org.uk")
	v.SetDefault("WATTTIME_URL", "https://api.watttime.org")
	v.SetDefault("ELECTRICITYMAPS_URL", "https://api.electricitymap.org")
	v.SetDefault("TOMTOM_URL", "https://api.tomtom.com")
	v.SetDefault("GOOGLE_MAPS_URL", "https://maps.googleapis.com")
	v.SetDefault("OPEN_METEO_URL", "https://api.open-meteo.com")

	port := v.GetString("SERVICE_PORT")
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	return &ServiceConfig{
		Port:           port,
		AppEnv:         v.GetString("APP_ENV"),
		AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS")),
		DBConfig: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		KafkaConfig: KafkaConfig{
			Brokers:     splitList(v.GetString("KAFKA_BROKERS")),
			GroupPrefix: v.GetString("KAFKA_GROUP_PREFIX"),
		},
		Upstreams: UpstreamConfig{
			ModelServerURL:      v.GetString("MODEL_SERVER_URL"),
			NominatimBaseURL:    v.GetString("NOMINATIM_URL"),
			NominatimUserAgent:  v.GetString("NOMINATIM_USER_AGENT"),
			CarbonIntensityURL:  v.GetString("CARBON_INTENSITY_URL"),
			WattTimeURL:         v.GetString("WATTTIME_URL"),
			WattTimeCredentials: v.GetString("WATTTIME_API_KEY"),
			ElectricityMapsURL:  v.GetString("ELECTRICITYMAPS_URL"),
			ElectricityMapsKey:  v.GetString("ELECTRICITYMAPS_API_KEY"),
			TomTomURL:           v.GetString("TOMTOM_URL"),
			TomTomKey:           v.GetString("TOMTOM_API_KEY"),
			GoogleMapsURL:       v.GetString("GOOGLE_MAPS_URL"),
			GoogleMapsKey:       v.GetString("GOOGLE_MAPS_API_KEY"),
			OpenMeteoURL:        v.GetString("OPEN_METEO_URL"),
		},
	}, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
