package inventory

import "strings"

// LowStockThreshold is the unit count below which an alert is raised.
const LowStockThreshold = 5

// LowStock returns the records whose units fall strictly below the
// threshold. Pure function, no side effects.
func LowStock(records []Record) []Record {
	var low []Record
	for _, rec := range records {
		if rec.Units < LowStockThreshold {
			low = append(low, rec)
		}
	}
	return low
}

// LowStockMessage summarises all low records in a single alert message so a
// multi-type update produces one notification instead of a storm.
func LowStockMessage(low []Record) string {
	types := make([]string, 0, len(low))
	for _, rec := range low {
		types = append(types, rec.BloodType)
	}
	return "Low blood stock alert: " + strings.Join(types, ", ")
}
