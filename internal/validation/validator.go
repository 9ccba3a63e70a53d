package validation

import (
	"fmt"

	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns a configured validator with custom struct-level validation
// registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// A product may appear at most once per order; duplicates are rejected at
	// the edge rather than silently merged.
	v.RegisterStructValidation(placeOrderStructValidation, PlaceOrderRequest{})

	return v
}

func placeOrderStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(PlaceOrderRequest)

	seen := make(map[string]bool, len(req.Items))
	for _, it := range req.Items {
		if seen[it.ProductID] {
			sl.ReportError(req.Items, "items", "Items", "unique_products",
				fmt.Sprintf("product %s appears more than once", it.ProductID))
			return
		}
		seen[it.ProductID] = true
	}
}
