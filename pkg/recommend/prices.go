package recommend

import (
	"context"

	"github.com/findly-app/findly/pkg/currency"
)

// PriceConverter converts a price label into an amount in another currency.
type PriceConverter interface {
	ConvertLabel(ctx context.Context, label, to string) (float64, error)
}

// WithDisplayPrices returns a copy of products with DisplayPrice set to the
// price in code. Labels that cannot be converted keep their raw text, as do
// all products when conv is nil or code is empty.
func WithDisplayPrices(ctx context.Context, products []Product, conv PriceConverter, code string) []Product {
	code = currency.NormalizeCode(code)
	out := make([]Product, len(products))
	for i, p := range products {
		p.DisplayPrice = p.Price
		if conv != nil && code != "" {
			if v, err := conv.ConvertLabel(ctx, p.Price, code); err == nil && v > 0 {
				p.DisplayPrice = currency.FormatAmount(v, code)
			}
		}
		out[i] = p
	}
	return out
}
