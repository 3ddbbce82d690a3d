// Package domain defines the catalog models shared by the search index,
// the catalog sources, and the SQLite persistence layer.
package domain

import (
	"encoding/json"
	"strings"
)

// Product is an immutable catalog entry identified by its barcode.
//
// Fields:
//   - Seq: insertion order in the products table (never serialized).
//   - Barcode: unique identifier as printed on the package (EAN/UPC text).
//   - Brand: may be empty.
//   - ProductName: display name.
//   - Quantity: free-form display text such as "500 g".
//   - ImageURL: may be empty.
type Product struct {
	Seq         uint   `json:"-"            gorm:"primaryKey;autoIncrement"`
	Barcode     string `json:"barcode"      gorm:"type:varchar(64);not null;index:idx_products_barcode"`
	Brand       string `json:"brand"        gorm:"type:varchar(255);not null;default:''"`
	ProductName string `json:"product_name" gorm:"type:varchar(512);not null;default:''"`
	Quantity    string `json:"quantity"     gorm:"type:varchar(128);not null;default:''"`
	ImageURL    string `json:"image_url"    gorm:"type:text;not null;default:''"`
}

// TableName returns the database table name for Product.
func (Product) TableName() string { return "products" }

// productWire accepts both spellings found in generated catalogs.
type productWire struct {
	Barcode        string `json:"barcode"`
	Brand          string `json:"brand"`
	ProductName    string `json:"product_name"`
	ProductNameAlt string `json:"productName"`
	Quantity       string `json:"quantity"`
	ImageURL       string `json:"image_url"`
	ImageURLAlt    string `json:"imageUrl"`
}

// UnmarshalJSON decodes a catalog record. snake_case keys take precedence
// over their camelCase counterparts when both are present.
func (p *Product) UnmarshalJSON(b []byte) error {
	var w productWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*p = Product{
		Barcode:     w.Barcode,
		Brand:       w.Brand,
		ProductName: firstSet(w.ProductName, w.ProductNameAlt),
		Quantity:    w.Quantity,
		ImageURL:    firstSet(w.ImageURL, w.ImageURLAlt),
	}
	return nil
}

// SearchText is the lowercased "brand name" text used for indexing and scoring.
func (p Product) SearchText() string {
	return strings.ToLower(p.Brand + " " + p.ProductName)
}

func firstSet(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
