package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/oskarlind/groceryledger-backend/internal/ledger"
	pkgerrors "github.com/oskarlind/groceryledger-backend/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const monthKeyLayout = "2006-01"

// MonthlySpend is the receipt total aggregated over one calendar month of
// purchase dates.
type MonthlySpend struct {
	Month string          `json:"month"`
	Total decimal.Decimal `json:"total"`
}

// PricePoint is one observation in a product's price-over-time series.
type PricePoint struct {
	Datetime  time.Time       `json:"datetime"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	StoreName string          `json:"store_name"`
}

// PriceAt pairs an extreme unit price with the datetime it first occurred.
type PriceAt struct {
	Price    decimal.Decimal `json:"price"`
	Datetime time.Time       `json:"datetime"`
}

// ProductStats aggregates a product's full purchase history.
type ProductStats struct {
	TimesPurchased          int             `json:"times_purchased"`
	FirstPurchased          *time.Time      `json:"first_purchased,omitempty"`
	LastPurchased           *time.Time      `json:"last_purchased,omitempty"`
	TotalSpent              decimal.Decimal `json:"total_spent"`
	AmountPurchased         decimal.Decimal `json:"amount_purchased"`
	AveragePrice            decimal.Decimal `json:"average_price"`
	LowestPrice             *PriceAt        `json:"lowest_price,omitempty"`
	HighestPrice            *PriceAt        `json:"highest_price,omitempty"`
	DifferenceLowestHighest decimal.Decimal `json:"difference_lowest_highest"`
	Stores                  []string        `json:"stores"`
}

// Service derives spend analytics from the ledger. Everything here is a pure
// read; results are deterministic functions of current ledger state.
type Service interface {
	MonthlySpending(ctx context.Context) ([]MonthlySpend, error)
	PriceSeries(ctx context.Context, productID uuid.UUID) ([]PricePoint, error)
	ProductStats(ctx context.Context, productID uuid.UUID) (*ProductStats, error)
}

type service struct {
	repo ledger.Repository
}

// NewService builds the analytics service over the ledger repository.
func NewService(repo ledger.Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

// MonthlySpending groups receipts by the UTC calendar month of their purchase
// date and sums totals, ascending by month.
func (s *service) MonthlySpending(ctx context.Context) ([]MonthlySpend, error) {
	receipts, err := s.repo.ListReceipts(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing receipts")
	}

	byMonth := make(map[string]decimal.Decimal)
	for _, receipt := range receipts {
		key := receipt.PurchaseDate.UTC().Format(monthKeyLayout)
		byMonth[key] = byMonth[key].Add(receipt.Total)
	}

	months := make([]string, 0, len(byMonth))
	for month := range byMonth {
		months = append(months, month)
	}
	sort.Strings(months)

	series := make([]MonthlySpend, 0, len(months))
	for _, month := range months {
		series = append(series, MonthlySpend{Month: month, Total: byMonth[month]})
	}
	return series, nil
}

// PriceSeries returns the product's purchases as (datetime, unitPrice, store)
// observations in purchase order.
func (s *service) PriceSeries(ctx context.Context, productID uuid.UUID) ([]PricePoint, error) {
	rows, err := s.productRows(ctx, productID)
	if err != nil {
		return nil, err
	}

	series := make([]PricePoint, 0, len(rows))
	for _, row := range rows {
		series = append(series, PricePoint{
			Datetime:  row.Datetime,
			UnitPrice: row.UnitPrice,
			StoreName: row.StoreName,
		})
	}
	return series, nil
}

// ProductStats scans the product's purchases once and derives the full stat
// block. Extremes use strict comparisons, so ties keep the first occurrence
// in purchase order.
func (s *service) ProductStats(ctx context.Context, productID uuid.UUID) (*ProductStats, error) {
	rows, err := s.productRows(ctx, productID)
	if err != nil {
		return nil, err
	}

	stats := &ProductStats{
		TimesPurchased: len(rows),
		Stores:         []string{},
	}
	if len(rows) == 0 {
		return stats, nil
	}

	first := rows[0].Datetime
	last := rows[len(rows)-1].Datetime
	stats.FirstPurchased = &first
	stats.LastPurchased = &last

	seenStores := make(map[string]struct{})
	var lowest, highest *PriceAt
	for _, row := range rows {
		stats.TotalSpent = stats.TotalSpent.Add(row.TotalPrice)
		stats.AmountPurchased = stats.AmountPurchased.Add(row.Quantity)

		if lowest == nil || row.UnitPrice.LessThan(lowest.Price) {
			lowest = &PriceAt{Price: row.UnitPrice, Datetime: row.Datetime}
		}
		if highest == nil || row.UnitPrice.GreaterThan(highest.Price) {
			highest = &PriceAt{Price: row.UnitPrice, Datetime: row.Datetime}
		}

		if _, seen := seenStores[row.StoreName]; !seen {
			seenStores[row.StoreName] = struct{}{}
			stats.Stores = append(stats.Stores, row.StoreName)
		}
	}

	stats.LowestPrice = lowest
	stats.HighestPrice = highest
	stats.DifferenceLowestHighest = highest.Price.Sub(lowest.Price)
	if !stats.AmountPurchased.IsZero() {
		stats.AveragePrice = stats.TotalSpent.DivRound(stats.AmountPurchased, 4)
	}
	return stats, nil
}

func (s *service) productRows(ctx context.Context, productID uuid.UUID) ([]ledger.ProductPurchaseRow, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if _, err := s.repo.FindProductByID(ctx, productID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fetching product")
	}

	rows, err := s.repo.ListProductPurchaseRows(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing product purchases")
	}
	return rows, nil
}
