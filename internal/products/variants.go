package products

import (
	"fmt"
	"strings"
)

// GenerateVariants expands a product's option axes into every sellable
// combination. The expansion is deterministic: options are walked in
// the order given, values likewise, and each combination's SKU is the
// base SKU suffixed with the chosen values.
//
// Options with no values are skipped; with no usable options the base
// product is the only variant.
func GenerateVariants(baseSKU string, options []VariantOption) []VariantCombination {
	axes := make([]VariantOption, 0, len(options))
	for _, opt := range options {
		if len(opt.Values) > 0 {
			axes = append(axes, opt)
		}
	}

	if len(axes) == 0 {
		return []VariantCombination{{SKU: baseSKU, Selection: map[string]string{}}}
	}

	combos := []VariantCombination{{SKU: baseSKU, Selection: map[string]string{}}}
	for _, axis := range axes {
		next := make([]VariantCombination, 0, len(combos)*len(axis.Values))
		for _, combo := range combos {
			for _, value := range axis.Values {
				selection := make(map[string]string, len(combo.Selection)+1)
				for k, v := range combo.Selection {
					selection[k] = v
				}
				selection[axis.Name] = value
				next = append(next, VariantCombination{
					SKU:       fmt.Sprintf("%s-%s", combo.SKU, skuFragment(value)),
					Selection: selection,
				})
			}
		}
		combos = next
	}
	return combos
}

// skuFragment normalizes an option value for use inside a SKU.
func skuFragment(value string) string {
	fragment := strings.ToUpper(strings.TrimSpace(value))
	fragment = strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, fragment)
	return strings.Trim(fragment, "-")
}
