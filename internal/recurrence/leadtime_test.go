package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderCreationDateFor(t *testing.T) {
	delivery := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	creation := OrderCreationDateFor(delivery, DefaultOrderLeadTime)
	assert.Equal(t, delivery.AddDate(0, 0, -2), creation)

	creation = OrderCreationDateFor(delivery, 6*time.Hour)
	assert.Equal(t, delivery.Add(-6*time.Hour), creation)
}

func TestLeadTimeRoundTrip(t *testing.T) {
	leads := []time.Duration{0, time.Hour, 48 * time.Hour, 7 * 24 * time.Hour}
	deliveries := []time.Time{
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 30, 23, 59, 59, 0, time.UTC),
		time.Date(2025, 12, 25, 8, 30, 0, 0, time.UTC),
	}
	for _, lead := range leads {
		for _, delivery := range deliveries {
			creation := OrderCreationDateFor(delivery, lead)
			assert.Equal(t, delivery, DeliveryDateFor(creation, lead))
		}
	}
}

func TestLeadTimeAcrossDSTBoundary(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 2024-03-10 is the US spring-forward date; the wall-clock offset shifts
	// but the instant stays exactly 48h apart.
	delivery := time.Date(2024, 3, 11, 12, 0, 0, 0, loc)
	creation := OrderCreationDateFor(delivery, 48*time.Hour)

	assert.Equal(t, 48*time.Hour, delivery.Sub(creation))
	assert.Equal(t, delivery, DeliveryDateFor(creation, 48*time.Hour))
}
