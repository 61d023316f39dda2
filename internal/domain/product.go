package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Цена хранится как NUMERIC(12,2): не больше двух знаков после точки.
const priceScale = 2

var maxProductPrice = decimal.New(1, 12-priceScale)

// Product описывает товар каталога вместе с его складским остатком.
type Product struct {
	ID            string
	Name          string
	Price         decimal.Decimal
	StockQuantity int
	// Category и Description необязательны: nil означает «не задано».
	Category    *string
	Description *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewProduct — входные данные для создания товара.
type NewProduct struct {
	Name          string
	Price         decimal.Decimal
	StockQuantity int
	Category      *string
	Description   *string
}

// ProductUpdate — частичное обновление товара; nil-поля не меняются.
type ProductUpdate struct {
	Name          *string
	Price         *decimal.Decimal
	StockQuantity *int
	Category      *string
	Description   *string
}

// Validate проверяет инварианты товара.
func (p *Product) Validate() []error {
	var errs []error

	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, ErrProductNameRequired)
	}
	switch {
	case !p.Price.IsPositive():
		errs = append(errs, ErrProductPriceInvalid)
	case !p.Price.Equal(p.Price.Truncate(priceScale)):
		errs = append(errs, ErrProductPriceScale)
	case p.Price.GreaterThanOrEqual(maxProductPrice):
		errs = append(errs, ErrProductPriceTooLarge)
	}
	if p.StockQuantity < 0 {
		errs = append(errs, ErrProductStockNegative)
	}

	return errs
}

// Apply применяет частичное обновление к копии товара.
func (u ProductUpdate) Apply(p Product) Product {
	if u.Name != nil {
		p.Name = strings.TrimSpace(*u.Name)
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.StockQuantity != nil {
		p.StockQuantity = *u.StockQuantity
	}
	if u.Category != nil {
		p.Category = cloneString(u.Category)
	}
	if u.Description != nil {
		p.Description = cloneString(u.Description)
	}
	return p
}

// NormalizeProductName приводит имя к виду, в котором сравнивается уникальность.
func NormalizeProductName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Clone возвращает копию товара без общих указателей.
func (p Product) Clone() Product {
	p.Category = cloneString(p.Category)
	p.Description = cloneString(p.Description)
	return p
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
