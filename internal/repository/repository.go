// Package repository loads the product catalog from its data sources: the
// bundled JSON file or a SQL database (sqlite or postgres) whose schema and
// seed data ship as embedded migrations.
package repository

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/fjod/storefront/internal/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsTable = "catalog_schema_migrations"

// Driver names accepted by Open. They double as database/sql driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var ErrUnsupportedDriver = errors.New("unsupported catalog driver")

// ProductSource is anything that can produce the full catalog once at startup.
type ProductSource interface {
	GetAllProducts(ctx context.Context) ([]domain.Product, error)
}

type Repository struct {
	db     *sql.DB
	driver string
}

// Open connects to the catalog database. For sqlite the pool is limited to a
// single connection so in-memory databases behave as one database.
func Open(ctx context.Context, driver, dsn string) (*Repository, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, errors.Wrapf(ErrUnsupportedDriver, "%q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	return &Repository{db: db, driver: driver}, nil
}

// RunMigrations applies the embedded schema and seed migrations.
func (r *Repository) RunMigrations() error {
	var (
		dbDriver database.Driver
		err      error
	)
	switch r.driver {
	case DriverSQLite:
		dbDriver, err = sqlite.WithInstance(r.db, &sqlite.Config{MigrationsTable: migrationsTable})
	case DriverPostgres:
		dbDriver, err = postgres.WithInstance(r.db, &postgres.Config{MigrationsTable: migrationsTable})
	}
	if err != nil {
		return errors.Wrap(err, "could not create migration driver")
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return errors.Wrap(err, "could not open embedded migrations")
	}

	// m.Close would also close r.db, which the repository still owns.
	m, err := migrate.NewWithInstance("iofs", src, r.driver, dbDriver)
	if err != nil {
		return errors.Wrap(err, "could not create migrate instance")
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "could not run migrations")
	}

	return nil
}

func (r *Repository) GetAllProducts(ctx context.Context) ([]domain.Product, error) {
	query := `
		SELECT id, slug, name, brand, price, compare_at_price, sku, stock,
		       description, images, tags, specs
		FROM products
		ORDER BY position, id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query products")
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var (
			p                   domain.Product
			compareAt           sql.NullFloat64
			images, tags, specs string
		)
		err := rows.Scan(
			&p.ID,
			&p.Slug,
			&p.Name,
			&p.Brand,
			&p.Price,
			&compareAt,
			&p.SKU,
			&p.Stock,
			&p.Description,
			&images,
			&tags,
			&specs,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan product")
		}

		if compareAt.Valid {
			v := compareAt.Float64
			p.CompareAtPrice = &v
		}
		if err := decodeColumns(&p, images, tags, specs); err != nil {
			return nil, errors.Wrapf(err, "product %s", p.ID)
		}

		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}

	return products, nil
}

func decodeColumns(p *domain.Product, images, tags, specs string) error {
	if err := json.Unmarshal([]byte(images), &p.Images); err != nil {
		return errors.Wrap(err, "decode images")
	}
	if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
		return errors.Wrap(err, "decode tags")
	}
	if err := json.Unmarshal([]byte(specs), &p.Specs); err != nil {
		return errors.Wrap(err, "decode specs")
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
