package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/router-for-me/banlist/internal/app"
	"github.com/router-for-me/banlist/internal/config"
	"github.com/router-for-me/banlist/internal/security"
	log "github.com/sirupsen/logrus"
)

const usage = `usage: banlist <command> [flags]

commands:
  serve            run the HTTP API
  migrate          create or update database tables
  create-account   add a login account
  create-key       issue an API key
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.WithError(err).Error("banlist failed")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, args []string) error {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	var cfg config.AppConfig
	fs.StringVar(&cfg.ConfigPath, "config", "", "config file path (default $BANLIST_CONFIG or config.yaml)")

	switch command {
	case "serve":
		if err := fs.Parse(args); err != nil {
			return err
		}
		return app.RunServer(ctx, cfg)

	case "migrate":
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := app.Migrate(ctx, cfg); err != nil {
			return err
		}
		log.Info("migration complete")
		return nil

	case "create-account":
		var params app.CreateAccountParams
		fs.StringVar(&params.Username, "username", "", "account username")
		fs.StringVar(&params.Password, "password", "", "account password")
		fs.BoolVar(&params.Admin, "admin", false, "grant ban management")
		if err := fs.Parse(args); err != nil {
			return err
		}
		account, err := app.CreateAccount(ctx, cfg, params)
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{"id": account.ID, "username": account.Username, "admin": account.IsAdmin}).Info("account created")
		return nil

	case "create-key":
		var params app.CreateAPIKeyParams
		fs.StringVar(&params.Name, "name", "", "key display name")
		fs.BoolVar(&params.Admin, "admin", false, "grant ban management")
		fs.DurationVar(&params.ExpiresIn, "expires-in", 0, "key lifetime, 0 for no expiry")
		if err := fs.Parse(args); err != nil {
			return err
		}
		key, err := app.CreateAPIKey(ctx, cfg, params)
		if err != nil {
			return err
		}
		expires := "never"
		if key.ExpiresAt != nil {
			expires = key.ExpiresAt.Format(time.RFC3339)
		}
		log.WithFields(log.Fields{"id": key.ID, "name": key.Name, "key": security.MaskAPIKey(key.APIKey), "admin": key.IsAdmin, "expires": expires}).Info("api key created")
		// The key is shown once.
		fmt.Println(key.APIKey)
		return nil

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}
