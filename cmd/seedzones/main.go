// Command seedzones writes the default Guarujá zone list, with derived fields
// computed, to a zone file or SQLite database. It refuses to overwrite
// existing data unless -force is given.
//
// Usage:
//
//	go run ./cmd/seedzones -out zones.json
//	go run ./cmd/seedzones -backend sqlite -out zones.db -force
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/couchcryptid/flood-watch/internal/adapter/jsonfile"
	"github.com/couchcryptid/flood-watch/internal/adapter/sqlite"
	"github.com/couchcryptid/flood-watch/internal/config"
	"github.com/couchcryptid/flood-watch/internal/domain"
	"github.com/couchcryptid/flood-watch/internal/zones"
)

func main() {
	backend := flag.String("backend", config.BackendFile, "target backend: file or sqlite")
	out := flag.String("out", "zones.json", "output path")
	force := flag.Bool("force", false, "overwrite existing zones")
	flag.Parse()

	if err := run(context.Background(), *backend, *out, *force); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, backend, out string, force bool) error {
	var repo zones.Repository
	switch backend {
	case config.BackendFile:
		repo = jsonfile.NewRepository(out)
	case config.BackendSQLite:
		db, err := sqlite.Open(ctx, out)
		if err != nil {
			return err
		}
		defer db.Close()
		repo = db
	default:
		return fmt.Errorf("unsupported backend %q (want file or sqlite)", backend)
	}

	existing, err := repo.Load(ctx)
	if err != nil && !force {
		return fmt.Errorf("read existing zones: %w", err)
	}
	if len(existing) > 0 && !force {
		return errors.New(out + " already holds zones; use -force to overwrite")
	}

	engine := domain.NewRiskEngine(domain.DefaultThresholds())
	seed := zones.DefaultZones()
	for i := range seed {
		seed[i] = seed[i].Assess(engine)
	}
	if err := repo.Save(ctx, seed); err != nil {
		return fmt.Errorf("write zones: %w", err)
	}

	log.Printf("wrote %d zones to %s (%s)", len(seed), out, backend)
	return nil
}

