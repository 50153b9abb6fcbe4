package config

import (
	"fmt"
	"os"

	"github.com/go-yaml/yaml"
)

type Config struct {
	Server Server `yaml:"server"`
	Gate   Gate   `yaml:"gate"`
	Auth   Auth   `yaml:"auth"`
}

type Server struct {
	ListenAddr    string `yaml:"listenAddr"`
	PostgresDsn   string `yaml:"postgresDsn"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
}

// Gate configures the credential subsystem. Secrets are passed explicitly
// into the codec at process start; nothing reads the environment inside
// validation logic.
type Gate struct {
	CredentialSecret    string `yaml:"credentialSecret"`
	DeliveryExpiryHours int    `yaml:"deliveryExpiryHours"`
	VisitorExpiryHours  int    `yaml:"visitorExpiryHours"`
}

type Auth struct {
	AccessTokenSecret     string `yaml:"accessTokenSecret"`
	AccessTokenTTLMinutes int    `yaml:"accessTokenTTLMinutes"`
}

func Load(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, err
	}

	if config.Gate.CredentialSecret == "" {
		return Config{}, fmt.Errorf("gate.credentialSecret is required")
	}
	if config.Auth.AccessTokenSecret == "" {
		return Config{}, fmt.Errorf("auth.accessTokenSecret is required")
	}

	if config.Server.ListenAddr == "" {
		config.Server.ListenAddr = ":8000"
	}
	if config.Gate.DeliveryExpiryHours <= 0 {
		config.Gate.DeliveryExpiryHours = 24
	}
	if config.Gate.VisitorExpiryHours <= 0 {
		config.Gate.VisitorExpiryHours = 24
	}
	if config.Auth.AccessTokenTTLMinutes <= 0 {
		config.Auth.AccessTokenTTLMinutes = 15
	}

	return config, nil
}
