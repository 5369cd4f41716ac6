package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"hashvest.io/internal/auth"
	"hashvest.io/internal/ids"
	"hashvest.io/internal/migrate"
)

func main() {
	log.SetFlags(0)
	var (
		dsn            = flag.String("dsn", os.Getenv("HASHVEST_PG_DSN"), "PostgreSQL DSN")
		migrationsPath = flag.String("migrations", "migrations/postgres", "Path to SQL migrations")
		seedsPath      = flag.String("seeds", "migrations/seeds", "Path to SQL seeds")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or HASHVEST_PG_DSN")
	}
	if len(flag.Args()) == 0 {
		log.Fatal("usage: migrate [up|down|seed|status|bootstrap]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	mgr := migrate.NewManager(db, *migrationsPath, *seedsPath)

	switch flag.Arg(0) {
	case "up":
		var applied []string
		applied, err = mgr.Up(ctx)
		if err == nil {
			if len(applied) == 0 {
				log.Print("database is up to date")
			}
			for _, name := range applied {
				log.Printf("applied %s", name)
			}
		}
	case "down":
		var rolled string
		rolled, err = mgr.Down(ctx)
		if err == nil {
			log.Printf("rolled back %s", rolled)
		}
	case "seed":
		var applied []string
		applied, err = mgr.Seed(ctx)
		if err == nil {
			for _, name := range applied {
				log.Printf("seeded %s", name)
			}
		}
	case "status":
		var history []migrate.Record
		history, err = mgr.Status(ctx)
		if err == nil {
			for _, rec := range history {
				fmt.Printf("%s\t%s\n", rec.Name, rec.AppliedAt.UTC().Format(time.RFC3339))
			}
		}
	case "bootstrap":
		err = bootstrapSuperAdmin(ctx, db)
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", flag.Arg(0), err)
	}
}

// bootstrapSuperAdmin creates the initial SUPER_ADMIN account. The credential
// digest has to be produced here; SQL seeds cannot run bcrypt.
func bootstrapSuperAdmin(ctx context.Context, db *sql.DB) error {
	email := os.Getenv("HASHVEST_ADMIN_EMAIL")
	password := os.Getenv("HASHVEST_ADMIN_PASSWORD")
	if email == "" || password == "" {
		return fmt.Errorf("HASHVEST_ADMIN_EMAIL and HASHVEST_ADMIN_PASSWORD are required")
	}
	if report := auth.ScorePassword(password); !report.Valid {
		return fmt.Errorf("bootstrap password rejected: %v", report.Violations)
	}
	hash, err := auth.HashPassword(password, auth.MinBcryptCost)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx,
		`insert into users(id, email, username, password_hash, role, active, verified)
		 values($1,$2,$3,$4,'SUPER_ADMIN',true,true)
		 on conflict (email) do nothing`,
		ids.New(), email, "root", hash)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		log.Printf("account %s already exists, nothing to do", email)
		return nil
	}
	log.Printf("created SUPER_ADMIN %s", email)
	return nil
}
