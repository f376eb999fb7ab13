package domain

// ItemsTotal sums unit amount × quantity over items and counts the units.
func ItemsTotal(items []OrderItemRequest) (total, units int64) {
	for _, item := range items {
		total += item.UnitAmount * int64(item.Quantity)
		units += int64(item.Quantity)
	}
	return total, units
}

// SubtotalMatches reports whether declared is an acceptable charge for
// items. Unit prices and the subtotal are rounded separately, so they may
// drift by up to half a rupee per unit plus half a rupee overall.
func SubtotalMatches(declared int64, items []OrderItemRequest) bool {
	total, units := ItemsTotal(items)
	diff := declared - total
	if diff < 0 {
		diff = -diff
	}
	return 2*diff <= units+1
}
