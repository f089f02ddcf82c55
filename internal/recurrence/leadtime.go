package recurrence

import "time"

// DefaultOrderLeadTime is the fixed offset between creating an order and its
// expected delivery. Two days matches the fulfilment SLA; deployments
// override it via configuration.
const DefaultOrderLeadTime = 48 * time.Hour

// OrderCreationDateFor derives when the order must be created so it arrives
// on the delivery date. Subtracting an absolute duration keeps the instant
// correct across DST boundaries for zone-aware times.
func OrderCreationDateFor(delivery time.Time, lead time.Duration) time.Time {
	return delivery.Add(-lead)
}

// DeliveryDateFor is the inverse of OrderCreationDateFor.
func DeliveryDateFor(creation time.Time, lead time.Duration) time.Time {
	return creation.Add(lead)
}
