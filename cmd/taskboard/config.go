package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/agalitsyn/flagutils"
	"github.com/agalitsyn/secret"

	"github.com/taskboard-app/taskboard/internal/task"
	"github.com/taskboard-app/taskboard/version"
)

const EnvPrefix = "TASKBOARD"

type Config struct {
	Debug bool

	HTTPAddr string
	DBPath   string

	Log struct {
		Level string
	}

	JWTSecret         secret.String
	EmptyPermitPolicy task.EmptyPermitPolicy

	SMTP struct {
		Host     string
		Port     int
		From     string
		User     string
		Password secret.String
	}

	Telegram struct {
		Token  secret.String
		ChatID int64
	}
}

func (c Config) String() string {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stdout, err)
		os.Exit(0)
	}
	return string(b)
}

func ParseFlags() Config {
	var cfg Config

	printVersion := flag.Bool("version", false, "Show version.")
	logLevel := flag.String("log-level", "info", "Log level (debug | info).")
	httpAddr := flag.String("http-addr", ":8080", "HTTP listen address.")
	dbPath := flag.String("db-path", "taskboard.db", "Path to SQLite database file.")
	jwtSecret := flag.String("jwt-secret", "", "HMAC secret for verifying auth tokens.")
	emptyPermitPolicy := flag.String(
		"empty-permit-policy",
		string(task.EmptyPermitDeny),
		"What an unset permit group means (deny | allow).",
	)
	smtpHost := flag.String("smtp-host", "", "SMTP host for completion emails. Empty disables the email channel.")
	smtpPort := flag.Int("smtp-port", 587, "SMTP port.")
	smtpFrom := flag.String("smtp-from", "", "From address for completion emails.")
	smtpUser := flag.String("smtp-user", "", "SMTP username.")
	smtpPassword := flag.String("smtp-password", "", "SMTP password.")
	telegramToken := flag.String("telegram-token", "", "Telegram bot token. Empty disables the telegram channel.")
	telegramChatID := flag.Int64("telegram-chat-id", 0, "Telegram chat for completion messages.")

	flagutils.Prefix = EnvPrefix
	flagutils.Parse()
	flag.Parse()

	cfg.Log.Level = *logLevel
	if cfg.Log.Level == "debug" {
		cfg.Debug = true
	}

	cfg.HTTPAddr = *httpAddr
	cfg.DBPath = *dbPath
	cfg.JWTSecret = secret.NewString(*jwtSecret)
	cfg.EmptyPermitPolicy = task.EmptyPermitPolicy(*emptyPermitPolicy)

	cfg.SMTP.Host = *smtpHost
	cfg.SMTP.Port = *smtpPort
	cfg.SMTP.From = *smtpFrom
	cfg.SMTP.User = *smtpUser
	cfg.SMTP.Password = secret.NewString(*smtpPassword)

	cfg.Telegram.Token = secret.NewString(*telegramToken)
	cfg.Telegram.ChatID = *telegramChatID

	if *printVersion {
		fmt.Fprintln(os.Stdout, version.String())
		os.Exit(0)
	}

	return cfg
}
