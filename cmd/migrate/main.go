package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/putevi/briefing-api/internal/models"
	"github.com/putevi/briefing-api/internal/repository"
	"github.com/putevi/briefing-api/internal/service"
	"github.com/putevi/briefing-api/pkg/config"
	"github.com/putevi/briefing-api/pkg/database"
)

func main() {
	var (
		migrationsDir = flag.String("dir", "migrations", "directory containing migration files")
		email         = flag.String("email", "", "operator email for create-admin")
		password      = flag.String("password", "", "operator password for create-admin")
		fullName      = flag.String("name", "Administrator", "operator name for create-admin")
	)
	flag.Parse()

	action := "up"
	if flag.NArg() > 0 {
		action = flag.Arg(0)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if action == "create-admin" {
		if err := createAdmin(cfg, *email, *password, *fullName); err != nil {
			log.Fatalf("create-admin failed: %v", err)
		}
		log.Printf("operator %s created", *email)
		return
	}

	if err := runMigration(action, *migrationsDir, cfg.Database.URL()); err != nil {
		log.Fatalf("migration %s failed: %v", action, err)
	}
	log.Printf("migration %s completed", action)
}

func runMigration(action, dir, dsn string) error {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve path for %s: %w", dir, err)
	}
	absDir = filepath.ToSlash(absDir)

	m, err := migrate.New(fmt.Sprintf("file://%s", absDir), dsn)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	switch action {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
		return nil
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
		return nil
	case "drop":
		return m.Drop()
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			if errors.Is(err, migrate.ErrNilVersion) {
				log.Printf("no migration applied")
				return nil
			}
			return err
		}
		log.Printf("version=%d dirty=%t", version, dirty)
		return nil
	default:
		return fmt.Errorf("unsupported action %q", action)
	}
}

// createAdmin seeds the first operator so the API can be logged into.
func createAdmin(cfg *config.Config, email, password, fullName string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	users := service.NewUserService(repository.NewUserRepository(db), nil, nil)
	_, err = users.Create(ctx, service.CreateUserRequest{
		Email:    email,
		FullName: fullName,
		Role:     models.RoleAdmin,
		Password: password,
	}, "cli")
	return err
}
