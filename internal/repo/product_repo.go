// Package repo implements the data persistence layer for the product
// catalog. This file provides repository functions for the Product model.
//
// The repository follows a "thin" approach: persistence and simple query
// composition only. Catalog order is the insertion order recorded in the
// autoincrement Seq column, and every read returns rows in that order.
//
// Functions:
//
//   - ListProducts(ctx, db) -> []domain.Product, error
//   - CountProducts(ctx, db) -> int64, error
//   - GetProductByBarcode(ctx, db, barcode) -> *domain.Product, error
//   - ReplaceProducts(ctx, db, products) -> int, error
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-proofed-catalog/internal/domain"
)

// ErrNotFound is returned when a product does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

// replaceBatchSize bounds the number of rows per INSERT statement.
const replaceBatchSize = 500

// ListProducts returns the full catalog in insertion order.
func ListProducts(ctx context.Context, db *gorm.DB) ([]domain.Product, error) {
	var out []domain.Product
	if err := db.WithContext(ctx).Order("seq ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// CountProducts returns the number of stored products.
func CountProducts(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Product{}).Count(&n).Error
	return n, err
}

// GetProductByBarcode returns the first product (in catalog order) whose
// barcode matches exactly, or ErrNotFound.
func GetProductByBarcode(ctx context.Context, db *gorm.DB, barcode string) (*domain.Product, error) {
	var p domain.Product
	err := db.WithContext(ctx).
		Where("barcode = ?", barcode).
		Order("seq ASC").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ReplaceProducts atomically swaps the stored catalog for products,
// preserving their order. It returns the number of rows written.
func ReplaceProducts(ctx context.Context, db *gorm.DB, products []domain.Product) (int, error) {
	rows := make([]domain.Product, len(products))
	for i, p := range products {
		p.Seq = 0 // let SQLite assign insertion order
		rows[i] = p
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&domain.Product{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, replaceBatchSize).Error
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}
