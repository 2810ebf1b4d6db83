package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cambosugarscan/apiserver/types"
	"github.com/google/uuid"
)

// Product columns accepted by ProductRepository.CountGroups.
const (
	ProductGroupSugarLevel = "sugar_level"
	ProductGroupConfidence = "confidence"
)

const productColumns = `id, barcode, name_kh, name_en, brand, sugar_per_100g, sugar_level, confidence,
		source, last_verified_at, default_serving_size_g, notes, created_at, updated_at`

var productSearchColumns = []string{"barcode", "name_kh", "name_en", "brand", "confidence"}

// ProductRepository handles persistence for products.
type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// List returns products matching q (case-insensitive, any searchable column),
// newest first, together with the total number of matches.
func (r *ProductRepository) List(ctx context.Context, q string, offset, limit int) ([]types.Product, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	where := searchClause(q, productSearchColumns...)
	args := []any{}
	if where != "" {
		args = append(args, containsPattern(q))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := `SELECT ` + productColumns + ` FROM products` + where +
		` ORDER BY created_at DESC, id OFFSET $` + itoa(len(args)+1) + ` LIMIT $` + itoa(len(args)+2)
	rows, err := r.db.QueryContext(ctx, listQuery, append(args, offset, limit)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	products := make([]types.Product, 0, limit)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

func (r *ProductRepository) Get(ctx context.Context, id string) (types.Product, error) {
	if !validID(id) {
		return types.Product{}, ErrNotFound
	}
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *ProductRepository) GetByBarcode(ctx context.Context, barcode string) (types.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE barcode = $1`
	return r.getOne(ctx, query, barcode)
}

func (r *ProductRepository) Create(ctx context.Context, product types.Product) (types.Product, error) {
	now := time.Now().UTC()
	product.ID = uuid.NewString()
	product.CreatedAt = now
	product.UpdatedAt = now

	const query = `
		INSERT INTO products (id, barcode, name_kh, name_en, brand, sugar_per_100g, sugar_level, confidence,
			source, last_verified_at, default_serving_size_g, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Barcode,
		product.NameKh,
		product.NameEn,
		product.Brand,
		product.SugarPer100g,
		product.SugarLevel,
		product.Confidence,
		product.Source,
		product.LastVerifiedAt,
		product.DefaultServingSizeG,
		product.Notes,
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		return types.Product{}, translateError(err)
	}
	return product, nil
}

func (r *ProductRepository) Update(ctx context.Context, product types.Product) (types.Product, error) {
	if !validID(product.ID) {
		return types.Product{}, ErrNotFound
	}
	product.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE products
		SET barcode = $1,
			name_kh = $2,
			name_en = $3,
			brand = $4,
			sugar_per_100g = $5,
			sugar_level = $6,
			confidence = $7,
			source = $8,
			last_verified_at = $9,
			default_serving_size_g = $10,
			notes = $11,
			updated_at = $12
		WHERE id = $13`
	result, err := r.db.ExecContext(
		ctx,
		query,
		product.Barcode,
		product.NameKh,
		product.NameEn,
		product.Brand,
		product.SugarPer100g,
		product.SugarLevel,
		product.Confidence,
		product.Source,
		product.LastVerifiedAt,
		product.DefaultServingSizeG,
		product.Notes,
		product.UpdatedAt,
		product.ID,
	)
	if err != nil {
		return types.Product{}, translateError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Product{}, err
	}
	if affected == 0 {
		return types.Product{}, ErrNotFound
	}
	return product, nil
}

func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	const query = `DELETE FROM products WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ProductRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM products`).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// CountGroups counts products per value of column, one of the ProductGroup constants.
func (r *ProductRepository) CountGroups(ctx context.Context, column string) (map[string]int, error) {
	switch column {
	case ProductGroupSugarLevel, ProductGroupConfidence:
	default:
		return nil, errors.New("unsupported product group column")
	}
	return countGroups(ctx, r.db, "products", column)
}

func (r *ProductRepository) getOne(ctx context.Context, query string, arg any) (types.Product, error) {
	product, err := scanProduct(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Product{}, ErrNotFound
		}
		return types.Product{}, err
	}
	return product, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (types.Product, error) {
	var product types.Product
	var verifiedAt sql.NullTime
	err := row.Scan(
		&product.ID,
		&product.Barcode,
		&product.NameKh,
		&product.NameEn,
		&product.Brand,
		&product.SugarPer100g,
		&product.SugarLevel,
		&product.Confidence,
		&product.Source,
		&verifiedAt,
		&product.DefaultServingSizeG,
		&product.Notes,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return types.Product{}, err
	}
	product.LastVerifiedAt = nullTimePtr(verifiedAt)
	return product, nil
}
