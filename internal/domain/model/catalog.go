package model

// ProductRef is one catalog listing entry. The slice form (instead of a
// name->id map) keeps menu keyboard order stable across turns.
type ProductRef struct {
	ID   string
	Name string
}

type ProductDetail struct {
	ID          string
	Name        string
	Description string
	SKU         string
	// MainImagePath is the relative relationship link to the product's main
	// image; it still needs the two-step file resolution to become a URL.
	MainImagePath string
}

// PriceEntry links a price book row to a product via its SKU.
type PriceEntry struct {
	SKU      string
	USDCents int
}

// CartLine is a cart row as reported by the commerce backend. Prices arrive
// pre-formatted (tax inclusive) and are shown as-is, never recomputed.
type CartLine struct {
	ID          string
	Name        string
	Description string
	Quantity    int
	UnitPrice   string
	LineTotal   string
}
