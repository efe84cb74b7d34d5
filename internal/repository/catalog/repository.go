// Package catalog is the Postgres-backed product catalog.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
	"github.com/kailas-cloud/catalogsearch/migrations"
)

const productColumns = `id, name, COALESCE(description, ''), COALESCE(category, ''), stock`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Repository reads and writes products.
type Repository struct {
	pool *pgxpool.Pool
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Repository{pool: pool}, nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Close releases the pool.
func (r *Repository) Close() {
	r.pool.Close()
}

// Ping checks connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// RunMigrations applies the embedded schema migrations.
func RunMigrations(dsn string) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.Stock)
	return p, err
}

// FindAll returns every product ordered by id.
func (r *Repository) FindAll(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Product, error) {
		return scanProduct(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan products: %w", err)
	}
	return products, nil
}

// FindByID returns one product or domain.ErrProductNotFound.
func (r *Repository) FindByID(ctx context.Context, id int64) (domain.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("product %d: %w", id, domain.ErrProductNotFound)
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("query product %d: %w", id, err)
	}
	return p, nil
}

// SearchTextContains returns up to limit products whose name or description
// contains term, case-insensitively, in id order. Total counts every match.
func (r *Repository) SearchTextContains(ctx context.Context, term string, limit int) (domain.Page, error) {
	if strings.TrimSpace(term) == "" || limit <= 0 {
		return domain.Page{}, nil
	}
	pattern := "%" + likeEscaper.Replace(term) + "%"

	rows, err := r.pool.Query(ctx, `
		SELECT `+productColumns+`, count(*) OVER() AS total
		FROM products
		WHERE name ILIKE $1 ESCAPE '\' OR description ILIKE $1 ESCAPE '\'
		ORDER BY id
		LIMIT $2`, pattern, limit)
	if err != nil {
		return domain.Page{}, fmt.Errorf("search products: %w", err)
	}
	defer rows.Close()

	var page domain.Page
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.Stock, &page.Total); err != nil {
			return domain.Page{}, fmt.Errorf("scan product: %w", err)
		}
		page.Products = append(page.Products, p)
	}
	if err := rows.Err(); err != nil {
		return domain.Page{}, fmt.Errorf("iterate products: %w", err)
	}
	return page, nil
}

// Upsert inserts p, or updates it when p.ID already exists. A zero ID lets
// the database assign one. The stored product is returned.
func (r *Repository) Upsert(ctx context.Context, p domain.Product) (domain.Product, error) {
	var row pgx.Row
	if p.ID == 0 {
		row = r.pool.QueryRow(ctx, `
			INSERT INTO products (name, description, category, stock)
			VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4)
			RETURNING `+productColumns,
			p.Name, p.Description, p.Category, p.Stock)
	} else {
		row = r.pool.QueryRow(ctx, `
			INSERT INTO products (id, name, description, category, stock)
			VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				description = EXCLUDED.description,
				category = EXCLUDED.category,
				stock = EXCLUDED.stock,
				updated_at = now()
			RETURNING `+productColumns,
			p.ID, p.Name, p.Description, p.Category, p.Stock)
	}

	stored, err := scanProduct(row)
	if err != nil {
		return domain.Product{}, fmt.Errorf("upsert product %q: %w", p.Name, err)
	}
	if p.ID != 0 {
		if _, err := r.pool.Exec(ctx, `
			SELECT setval(pg_get_serial_sequence('products', 'id'),
				GREATEST((SELECT max(id) FROM products), 1))`); err != nil {
			return domain.Product{}, fmt.Errorf("advance product id sequence: %w", err)
		}
	}
	return stored, nil
}
