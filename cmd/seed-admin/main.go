package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jlynch25/kaizen_api/internal/app"
	"github.com/jlynch25/kaizen_api/internal/config"
	"github.com/jlynch25/kaizen_api/internal/lib/apperr"
	"github.com/jlynch25/kaizen_api/internal/lib/logger"
	"github.com/jlynch25/kaizen_api/internal/services/auth"
	model "github.com/jlynch25/kaizen_api/models"
)

type registrar interface {
	Register(ctx context.Context, username, email, password string) (model.User, error)
}

// seed registers the account unless the email is already taken.
func seed(ctx context.Context, r registrar, username, email, password string) (bool, error) {
	if _, err := r.Register(ctx, username, email, password); err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func main() {
	var username, email, password string
	flag.StringVar(&username, "username", "admin", "admin username")
	flag.StringVar(&email, "email", "admin@gmail.com", "admin email")
	flag.StringVar(&password, "password", "admin", "admin password")
	flag.Parse()

	cfg := config.MustLoad()
	log := logger.New(cfg.Env)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := app.OpenStore(ctx, log, cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to open storage")
	}
	defer func() { _ = store.Close(context.Background()) }()

	a := auth.New(log, store, store, cfg.JWTSecret, cfg.TokenTTL, nil)

	created, err := seed(ctx, a, username, email, password)
	if err != nil {
		log.WithError(err).Error("failed to create admin user")
		os.Exit(1)
	}

	if created {
		fmt.Println("admin user created")
	} else {
		fmt.Println("admin user already exists")
	}
	fmt.Printf("email: %s\n", email)
}
