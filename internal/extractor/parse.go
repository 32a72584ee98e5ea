package extractor

import (
	"github.com/Veraticus/billsplit/internal/llm"
	"github.com/Veraticus/billsplit/internal/model"
)

// parseBillItems converts the decoded model reply into bill items. Special
// charges and a positive tax become items of their own.
func parseBillItems(data map[string]any) []model.BillItem {
	var items []model.BillItem

	raw, _ := llm.AsSlice(data["items"])
	for _, entry := range raw {
		fields, ok := llm.AsMap(entry)
		if !ok {
			continue
		}

		item := model.BillItem{Name: "Unknown Item", Quantity: 1}
		if name, ok := llm.AsString(fields["name"]); ok && name != "" {
			item.Name = name
		}
		if price, ok := llm.AsFloat(fields["price"]); ok {
			item.Price = price
		}
		if qty, ok := llm.AsInt(fields["quantity"]); ok {
			item.Quantity = qty
		}
		if total, ok := llm.AsFloat(fields["total"]); ok {
			item.Total = total
		}
		items = append(items, item)
	}

	charges, _ := llm.AsSlice(data["special_charges"])
	for _, entry := range charges {
		fields, ok := llm.AsMap(entry)
		if !ok {
			continue
		}
		name := "Special Charge"
		if n, ok := llm.AsString(fields["name"]); ok && n != "" {
			name = n
		}
		amount, _ := llm.AsFloat(fields["amount"])
		items = append(items, model.BillItem{Name: name, Price: amount, Quantity: 1, Total: amount})
	}

	if tax := taxAmount(data); tax > 0 {
		items = append(items, model.BillItem{Name: "Tax", Price: tax, Quantity: 1, Total: tax})
	}

	return items
}

func taxAmount(data map[string]any) float64 {
	if tax, ok := llm.AsFloat(data["tax"]); ok {
		return tax
	}
	if meta, ok := llm.AsMap(data["metadata"]); ok {
		if tax, ok := llm.AsFloat(meta["tax"]); ok {
			return tax
		}
	}
	return 0
}

// summarizeMetadata keeps the bill facts downstream consumers read.
func summarizeMetadata(data map[string]any) map[string]any {
	out := map[string]any{}
	meta, _ := llm.AsMap(data["metadata"])

	lookup := func(keys ...string) (any, bool) {
		for _, src := range []map[string]any{data, meta} {
			if src == nil {
				continue
			}
			for _, k := range keys {
				if v, ok := src[k]; ok && v != nil {
					return v, true
				}
			}
		}
		return nil, false
	}

	if v, ok := lookup("establishment", "establishment_name"); ok {
		out["establishment"] = v
	}
	if v, ok := lookup("date"); ok {
		out["date"] = v
	}
	if v, ok := lookup("subtotal"); ok {
		if f, ok := llm.AsFloat(v); ok {
			out["original_subtotal"] = f
		}
	}
	if v, ok := lookup("tax_rate"); ok {
		if f, ok := llm.AsFloat(v); ok {
			out["tax_rate"] = f
		}
	}
	return out
}
