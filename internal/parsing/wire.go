package parsing

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// wireImport is the JSON shape the external parser scripts emit. Field names
// follow the scripts' output and are part of the parser contract.
type wireImport struct {
	ID       string          `json:"id"`
	Datetime string          `json:"datetime"`
	Store    string          `json:"store"`
	Total    decimal.Decimal `json:"total"`
	Products []wireLineItem  `json:"products"`
}

type wireLineItem struct {
	Name       string          `json:"name"`
	SKU        *string         `json:"sku,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Unit       string          `json:"unit"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

var wireTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func decodeWire(data []byte) (*NormalizedImport, error) {
	var wire wireImport
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, Fatal(err, "decoding normalized import")
	}

	dt, err := parseWireTime(wire.Datetime)
	if err != nil {
		return nil, Fatal(err, "decoding purchase datetime")
	}

	imp := &NormalizedImport{
		ExternalReceiptID: wire.ID,
		StoreName:         wire.Store,
		PurchaseDateTime:  dt,
		Total:             wire.Total,
		LineItems:         make([]LineItem, 0, len(wire.Products)),
	}
	for _, p := range wire.Products {
		imp.LineItems = append(imp.LineItems, LineItem{
			ProductName: p.Name,
			SKU:         p.SKU,
			Quantity:    p.Amount,
			Unit:        p.Unit,
			UnitPrice:   p.UnitPrice,
			LineTotal:   p.TotalPrice,
		})
	}
	return imp, nil
}

func parseWireTime(value string) (time.Time, error) {
	for _, layout := range wireTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized datetime %q", value)
}
