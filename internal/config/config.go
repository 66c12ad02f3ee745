package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Leader   LeaderConfig   `mapstructure:"leader"`
	Instance InstanceConfig `mapstructure:"instance"`
}

type ServerConfig struct {
	Host     string `mapstructure:"host"`
	RestPort int    `mapstructure:"rest_port"`
	WSPort   int    `mapstructure:"ws_port"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type EngineConfig struct {
	ExtensionWindow time.Duration `mapstructure:"extension_window"`
	EventBuffer     int           `mapstructure:"event_buffer"`
	PaddleLow       int           `mapstructure:"paddle_low"`
	PaddleHigh      int           `mapstructure:"paddle_high"`
}

type LeaderConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type InstanceConfig struct {
	ID string `mapstructure:"id"`
}

func Load() (*Config, error) {
	// Set default values
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.rest_port", 8080)
	viper.SetDefault("server.ws_port", 8081)
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("mysql.dsn", "bidding_user:bidding_pass@tcp(localhost:3306)/bidding_db?parseTime=true")
	viper.SetDefault("mysql.max_open_conns", 25)
	viper.SetDefault("mysql.max_idle_conns", 10)
	viper.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("engine.extension_window", 3*time.Minute)
	viper.SetDefault("engine.event_buffer", 1024)
	viper.SetDefault("engine.paddle_low", 100)
	viper.SetDefault("engine.paddle_high", 1000)
	viper.SetDefault("leader.ttl", 30*time.Second)
	viper.SetDefault("instance.id", "bidding-engine-1")

	// Configuration file settings
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/bidding-engine/")

	// Environment variable support
	viper.AutomaticEnv()

	viper.BindEnv("server.host", "SERVER_HOST")
	viper.BindEnv("server.rest_port", "SERVER_REST_PORT")
	viper.BindEnv("server.ws_port", "SERVER_WS_PORT")
	viper.BindEnv("redis.address", "REDIS_ADDRESS")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")
	viper.BindEnv("mysql.dsn", "MYSQL_DSN")
	viper.BindEnv("mysql.max_open_conns", "MYSQL_MAX_OPEN_CONNS")
	viper.BindEnv("mysql.max_idle_conns", "MYSQL_MAX_IDLE_CONNS")
	viper.BindEnv("mysql.conn_max_lifetime", "MYSQL_CONN_MAX_LIFETIME")
	viper.BindEnv("engine.extension_window", "ENGINE_EXTENSION_WINDOW")
	viper.BindEnv("engine.event_buffer", "ENGINE_EVENT_BUFFER")
	viper.BindEnv("engine.paddle_low", "ENGINE_PADDLE_LOW")
	viper.BindEnv("engine.paddle_high", "ENGINE_PADDLE_HIGH")
	viper.BindEnv("leader.ttl", "LEADER_TTL")
	viper.BindEnv("instance.id", "INSTANCE_ID")

	// Read configuration file (optional - will use defaults/env vars if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// GetConfigString returns a formatted string representation of the config
func (c *Config) GetConfigString() string {
	return fmt.Sprintf(
		"REST: %s:%d, WS: %s:%d, Redis: %s, MySQL: %s, Instance: %s",
		c.Server.Host,
		c.Server.RestPort,
		c.Server.Host,
		c.Server.WSPort,
		c.Redis.Address,
		c.MySQL.DSN,
		c.Instance.ID,
	)
}
