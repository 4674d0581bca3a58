package shopping

import (
	"math"
	"sort"
	"strings"
)

// DefaultCategory is used for items the upstream answer left uncategorized.
const DefaultCategory = "other"

// categoryPrices is the fallback price of one pack per category.
var categoryPrices = map[string]float64{
	"produce":   2.50,
	"meat":      8.00,
	"seafood":   10.00,
	"dairy":     3.00,
	"eggs":      3.50,
	"grains":    2.00,
	"bakery":    3.00,
	"pantry":    3.00,
	"spices":    2.50,
	"frozen":    4.00,
	"beverages": 2.50,
	"snacks":    3.00,
	"other":     3.00,
}

// EstimatePrice prices a line from the category table. Weight and volume
// units are bought in packs of 500 g or 500 ml.
func EstimatePrice(category string, quantity float64, unit string) float64 {
	base, ok := categoryPrices[NormalizeCategory(category)]
	if !ok {
		base = categoryPrices[DefaultCategory]
	}

	packs := 1.0
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "g", "gram", "grams", "ml":
		packs = math.Ceil(quantity / 500)
	case "kg", "l", "liter", "litre", "liters", "litres":
		packs = math.Ceil(quantity * 2)
	}
	if packs < 1 {
		packs = 1
	}
	return roundCents(base * packs)
}

// NormalizeCategory lower-cases a category and maps blanks to DefaultCategory.
func NormalizeCategory(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	if c == "" {
		return DefaultCategory
	}
	return c
}

// Normalize produces a list holding both shapes whatever the upstream answer
// returned. Items win over categories when both are present. Missing prices
// are estimated and flagged.
func Normalize(raw List) List {
	var items []Item
	if len(raw.Items) > 0 {
		items = append(items, raw.Items...)
	} else {
		keys := make([]string, 0, len(raw.Categories))
		for k := range raw.Categories {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			for _, it := range raw.Categories[k] {
				if strings.TrimSpace(it.Category) == "" {
					it.Category = k
				}
				items = append(items, it)
			}
		}
	}

	out := List{
		Items:      make([]Item, 0, len(items)),
		Categories: make(map[string][]Item),
		Budget:     raw.Budget,
		Store:      raw.Store,
	}

	for _, it := range items {
		it.Name = strings.TrimSpace(it.Name)
		if it.Name == "" {
			continue
		}
		it.Category = NormalizeCategory(it.Category)
		if it.EstimatedPrice <= 0 || math.IsNaN(it.EstimatedPrice) || math.IsInf(it.EstimatedPrice, 0) {
			it.EstimatedPrice = EstimatePrice(it.Category, it.Quantity, it.Unit)
			it.PriceEstimated = true
		}
		out.Items = append(out.Items, it)
	}

	sort.SliceStable(out.Items, func(i, j int) bool {
		if out.Items[i].Category != out.Items[j].Category {
			return out.Items[i].Category < out.Items[j].Category
		}
		return out.Items[i].Name < out.Items[j].Name
	})

	total := 0.0
	for _, it := range out.Items {
		out.Categories[it.Category] = append(out.Categories[it.Category], it)
		total += it.EstimatedPrice
	}
	out.TotalEstimatedCost = roundCents(total)
	out.OverBudget = out.Budget > 0 && out.TotalEstimatedCost > out.Budget

	return out
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
