package kafka

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/nyc-pickups-dashboard/internal/domain"
)

func TestToMessage(t *testing.T) {
	now := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(now))
	t.Cleanup(func() { domain.SetClock(nil) })

	trip := domain.Trip{
		PickupTime: time.Date(2014, time.September, 1, 17, 3, 0, 0, time.UTC),
		Lat:        40.7316,
		Lon:        -73.9873,
		Base:       "B02512",
	}
	event, err := domain.SerializeTrip(trip)
	require.NoError(t, err)

	msg := toMessage(event)

	assert.Equal(t, []byte(domain.TripID(trip)), msg.Key)
	assert.Contains(t, string(msg.Value), `"pickup_hour":17`)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "pickup_hour", msg.Headers[0].Key)
	assert.Equal(t, []byte("17"), msg.Headers[0].Value)
	assert.Equal(t, "processed_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)
}

func TestToMessage_NoHeaders(t *testing.T) {
	msg := toMessage(domain.OutputEvent{Key: []byte("k"), Value: []byte("{}")})
	assert.Empty(t, msg.Headers)
	assert.Equal(t, []byte("k"), msg.Key)
}
