package product

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"pkstore/internal/domain"
)

// ChangeChannel is the NOTIFY channel raised by the products table trigger.
const ChangeChannel = "products_changed"

const selectColumns = `id, title, price::text, original_price::text, description, image, delivery, category, rating, seller_name, created_at`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger zerolog.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logger}
}

func (r *postgresRepo) FetchAll(ctx context.Context) ([]domain.Product, error) {
	q := `SELECT ` + selectColumns + ` FROM products ORDER BY created_at DESC, id`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		r.logger.Error().Err(err).Msg("product repo: list")
		return nil, err
	}
	defer rows.Close()

	var result []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("product repo: list rows")
		return nil, err
	}
	r.logger.Debug().Int("count", len(result)).Msg("product repo: list")
	return result, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	q := `SELECT ` + selectColumns + ` FROM products WHERE id = $1`
	p, err := scanProduct(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("id", id).Msg("product repo: get not found")
			return nil, domain.ErrNotFound
		}
		r.logger.Error().Err(err).Str("id", id).Msg("product repo: get")
		return nil, err
	}
	return &p, nil
}

func (r *postgresRepo) Create(ctx context.Context, in domain.NewProduct) (*domain.Product, error) {
	const q = `
INSERT INTO products (title, price, original_price, description, image, delivery, category, rating, seller_name)
VALUES ($1, $2::numeric, $3::numeric, $4, $5, $6, $7, $8, $9)
RETURNING id, created_at
`
	res := in.WithID("")
	err := r.pool.QueryRow(ctx, q,
		in.Title,
		in.Price.String(),
		decimalArg(in.OriginalPrice),
		in.Description,
		in.Image,
		string(in.Delivery),
		in.Category,
		in.Rating,
		in.SellerName,
	).Scan(&res.ID, &res.CreatedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("title", in.Title).Msg("product repo: create")
		return nil, err
	}
	r.logger.Info().Str("id", res.ID).Str("title", res.Title).Msg("product repo: created")
	return &res, nil
}

func (r *postgresRepo) Upsert(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if p.ID == "" {
		return nil, fmt.Errorf("product repo: upsert requires an id")
	}
	const q = `
INSERT INTO products (id, title, price, original_price, description, image, delivery, category, rating, seller_name)
VALUES ($1, $2, $3::numeric, $4::numeric, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE SET
    title = EXCLUDED.title,
    price = EXCLUDED.price,
    original_price = EXCLUDED.original_price,
    description = EXCLUDED.description,
    image = EXCLUDED.image,
    delivery = EXCLUDED.delivery,
    category = EXCLUDED.category,
    rating = EXCLUDED.rating,
    seller_name = EXCLUDED.seller_name
RETURNING created_at
`
	res := p.Clone()
	err := r.pool.QueryRow(ctx, q,
		p.ID,
		p.Title,
		p.Price.String(),
		decimalArg(p.OriginalPrice),
		p.Description,
		p.Image,
		string(p.Delivery),
		p.Category,
		p.Rating,
		p.SellerName,
	).Scan(&res.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23514" {
			return nil, fmt.Errorf("product repo: upsert id=%s violates constraint %s: %w", p.ID, pgErr.ConstraintName, err)
		}
		r.logger.Error().Err(err).Str("id", p.ID).Msg("product repo: upsert")
		return nil, err
	}
	r.logger.Info().Str("id", res.ID).Msg("product repo: upserted")
	return &res, nil
}

func (r *postgresRepo) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		r.logger.Error().Err(err).Str("id", id).Msg("product repo: delete")
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	r.logger.Info().Str("id", id).Msg("product repo: deleted")
	return nil
}

// Subscribe holds a dedicated connection that LISTENs on ChangeChannel. The full list is pushed
// once on start and re-read after every notification.
func (r *postgresRepo) Subscribe(ctx context.Context, onPush func(Snapshot), onError func(error)) (CancelFunc, error) {
	pooled, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen conn: %w", err)
	}
	conn := pooled.Hijack()
	if _, err := conn.Exec(ctx, "LISTEN "+ChangeChannel); err != nil {
		_ = conn.Close(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("listen %s: %w", ChangeChannel, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer conn.Close(context.WithoutCancel(subCtx))
		r.listen(subCtx, conn, onPush, onError)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

func (r *postgresRepo) listen(ctx context.Context, conn *pgx.Conn, onPush func(Snapshot), onError func(error)) {
	var seq uint64
	for {
		products, err := r.FetchAll(ctx)
		if err != nil {
			if ctx.Err() == nil {
				onError(fmt.Errorf("fetch products: %w", err))
			}
			return
		}
		seq++
		onPush(Snapshot{Seq: seq, Products: products})

		if _, err := conn.WaitForNotification(ctx); err != nil {
			if ctx.Err() == nil {
				r.logger.Warn().Err(err).Msg("product repo: listen")
				onError(fmt.Errorf("wait for %s: %w", ChangeChannel, err))
			}
			return
		}
	}
}

func scanProduct(row pgx.Row) (domain.Product, error) {
	var (
		p        domain.Product
		price    string
		original *string
		delivery string
	)
	if err := row.Scan(&p.ID, &p.Title, &price, &original, &p.Description, &p.Image, &delivery, &p.Category, &p.Rating, &p.SellerName, &p.CreatedAt); err != nil {
		return domain.Product{}, err
	}
	var err error
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return domain.Product{}, fmt.Errorf("product %s price: %w", p.ID, err)
	}
	if original != nil {
		d, err := decimal.NewFromString(*original)
		if err != nil {
			return domain.Product{}, fmt.Errorf("product %s original price: %w", p.ID, err)
		}
		p.OriginalPrice = &d
	}
	p.Delivery = domain.Delivery(delivery)
	return p, nil
}

func decimalArg(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
