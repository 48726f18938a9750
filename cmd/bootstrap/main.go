package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/bytesecuritas/sensi-back/internal/config"
	"github.com/bytesecuritas/sensi-back/internal/database"
	"github.com/bytesecuritas/sensi-back/internal/errs"
	"github.com/bytesecuritas/sensi-back/internal/log"
	"github.com/bytesecuritas/sensi-back/internal/models"
	"github.com/bytesecuritas/sensi-back/internal/repository"
	"github.com/bytesecuritas/sensi-back/internal/security"
	"github.com/bytesecuritas/sensi-back/internal/service"
)

func main() {
	var (
		email    = flag.String("email", os.Getenv("SENSI_BOOTSTRAP_EMAIL"), "superadmin email")
		password = flag.String("password", os.Getenv("SENSI_BOOTSTRAP_PASSWORD"), "superadmin password (min 8 characters)")
		nom      = flag.String("nom", "Super", "family name")
		prenom   = flag.String("prenom", "Admin", "given name")
	)
	flag.Parse()

	command := "create"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := log.New(cfg.Environment, "bootstrap")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer pool.Close()

	if _, err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}
	store := repository.NewStore(pool)

	switch command {
	case "check":
		admins, err := store.ListUsersByRole(ctx, models.UserRoleSuperAdmin)
		if err != nil {
			logger.Fatal().Err(err).Msg("list superadmins failed")
		}
		if len(admins) == 0 {
			fmt.Println("no superadmin found")
			return
		}
		for _, u := range admins {
			fmt.Printf("%s\t%s\t%s %s\n", u.ID, u.Email, u.Prenom, u.Nom)
		}

	case "create":
		// Tokens are never issued here; the secrets only satisfy the issuer.
		tokens, err := security.NewTokenIssuer("bootstrap-access", "bootstrap-refresh")
		if err != nil {
			logger.Fatal().Err(err).Msg("token issuer")
		}
		auth := service.NewAuthService(store, store, tokens, nil, nil, logger)

		user, err := auth.BootstrapSuperadmin(ctx, service.RegisterInput{
			Email:    *email,
			Password: *password,
			Nom:      *nom,
			Prenom:   *prenom,
		})
		switch {
		case errors.Is(err, errs.ErrConflict):
			fmt.Fprintln(os.Stderr, "a superadmin already exists; nothing to do")
			os.Exit(1)
		case errors.Is(err, errs.ErrBadRequest):
			fmt.Fprintf(os.Stderr, "invalid input: %v\n", err)
			os.Exit(2)
		case err != nil:
			logger.Fatal().Err(err).Msg("create superadmin failed")
		}
		logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("superadmin created")

	default:
		fmt.Fprintf(os.Stderr, "usage: bootstrap [-email e -password p] [create|check]\n")
		os.Exit(2)
	}
}
