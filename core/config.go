package core

import (
	"fmt"
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
	Config struct {
		AppName      string
		Env          string // DEV (local; default), TEST, QA, PROD
		Build        string
		Debug        bool
		TestMode     bool
		WorkDir      string
		SecretKey    string
		LogLevel     string
		RollbarToken string

		Server     ServerConfig
		Database   DatabaseConfig
		Mail       MailConfig
		Redis      RedisConfig
		Settlement SettlementConfig
	}

	ServerConfig struct {
		Host               string
		Address            string
		DebugHost          string
		JWTExpirationDelta time.Duration
		ShutdownTimeout    time.Duration
		DisableReqLogs     bool
	}

	DatabaseConfig struct {
		Engine        string // postgres, sqlite or inmem
		Host          string
		Port          int
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Name          string
		DisableTLS    bool
		Path          string // sqlite only
		MaxOpenConns  int
		PingAttempts  int
	}

	MailConfig struct {
		DefaultFromEmail mail.Address
		SendgridAPIKey   string
	}

	RedisConfig struct {
		Addr     string // empty disables redis
		Password string
		DB       int
		LockTTL  time.Duration
	}

	SettlementConfig struct {
		AuditBuffer int
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("appName", "Lecturepay")
	conf.SetDefault("build", "dev")
	conf.SetDefault("debug", true)
	conf.SetDefault("testMode", false)
	conf.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	conf.SetDefault("logLevel", "info")
	conf.SetDefault("rollbarToken", "")

	conf.SetDefault("server.host", "localhost")
	conf.SetDefault("server.address", ":8000")
	conf.SetDefault("server.debugHost", ":4000")
	conf.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)
	conf.SetDefault("server.disableReqLogs", false)

	conf.SetDefault("database.engine", "postgres")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", 5432)
	conf.SetDefault("database.user", "lecturepay")
	conf.SetDefault("database.password", "lecturepay")
	conf.SetDefault("database.adminUser", "postgres")
	conf.SetDefault("database.adminPassword", "")
	conf.SetDefault("database.name", "lecturepay")
	conf.SetDefault("database.disableTLS", true)
	conf.SetDefault("database.path", "lecturepay.db")
	conf.SetDefault("database.maxOpenConns", 10)
	conf.SetDefault("database.pingAttempts", 30)

	conf.SetDefault("mail.defaultFromEmail", "Lecturepay <noreply@localhost>")
	conf.SetDefault("mail.sendgridApiKey", "")

	conf.SetDefault("redis.addr", "")
	conf.SetDefault("redis.password", "")
	conf.SetDefault("redis.db", 0)
	conf.SetDefault("redis.lockTTL", 30*time.Second)

	conf.SetDefault("settlement.auditBuffer", 256)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
	}
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	from, err := mail.ParseAddress(conf.GetString("mail.defaultFromEmail"))
	if err != nil {
		log.Fatalf("config: invalid mail.defaultFromEmail: %v", err)
	}

	return &Config{
		AppName:      conf.GetString("appName"),
		Env:          env,
		Build:        conf.GetString("build"),
		Debug:        conf.GetBool("debug"),
		TestMode:     conf.GetBool("testMode"),
		WorkDir:      wd,
		SecretKey:    conf.GetString("secretKey"),
		LogLevel:     conf.GetString("logLevel"),
		RollbarToken: conf.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:               conf.GetString("server.host"),
			Address:            conf.GetString("server.address"),
			DebugHost:          conf.GetString("server.debugHost"),
			JWTExpirationDelta: conf.GetDuration("server.jwtExpirationDelta"),
			ShutdownTimeout:    conf.GetDuration("server.shutdownTimeout"),
			DisableReqLogs:     conf.GetBool("server.disableReqLogs"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("database.engine"),
			Host:          conf.GetString("database.host"),
			Port:          conf.GetInt("database.port"),
			User:          conf.GetString("database.user"),
			Password:      conf.GetString("database.password"),
			AdminUser:     conf.GetString("database.adminUser"),
			AdminPassword: conf.GetString("database.adminPassword"),
			Name:          conf.GetString("database.name"),
			DisableTLS:    conf.GetBool("database.disableTLS"),
			Path:          conf.GetString("database.path"),
			MaxOpenConns:  conf.GetInt("database.maxOpenConns"),
			PingAttempts:  conf.GetInt("database.pingAttempts"),
		},
		Mail: MailConfig{
			DefaultFromEmail: *from,
			SendgridAPIKey:   conf.GetString("mail.sendgridApiKey"),
		},
		Redis: RedisConfig{
			Addr:     conf.GetString("redis.addr"),
			Password: conf.GetString("redis.password"),
			DB:       conf.GetInt("redis.db"),
			LockTTL:  conf.GetDuration("redis.lockTTL"),
		},
		Settlement: SettlementConfig{
			AuditBuffer: conf.GetInt("settlement.auditBuffer"),
		},
	}
}

// Getwd walks up from the working directory to the module root (the dir holding go.mod).
// go-test changes the working directory to the package being tested, so relative paths
// to config/ and assets/ would break without this.
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if _, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == string(os.PathSeparator) || newDir == currDir {
			return wd // not inside the module (e.g. installed binary)
		}
		currDir = newDir
	}
}

func (c *Config) String() string {
	return fmt.Sprintf("%s(env=%s build=%s db=%s)", c.AppName, c.Env, c.Build, c.Database.Engine)
}
