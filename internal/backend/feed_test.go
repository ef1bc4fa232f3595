package backend

import (
	"testing"
	"time"

	"github.com/ecocampus/ecocampus-server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func receive(t *testing.T, sub *Subscription) domain.ChangeEvent {
	t.Helper()
	select {
	case evt, ok := <-sub.C:
		require.True(t, ok, "subscription closed")
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
		return domain.ChangeEvent{}
	}
}

func assertNothing(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case evt := <-sub.C:
		t.Fatalf("unexpected event: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFeed_FiltersByTableAndColumn(t *testing.T) {
	feed := NewFeed(nil)
	defer feed.Close()

	mine, err := feed.Subscribe("orders", "user_id", "usr-1")
	require.NoError(t, err)
	defer mine.Close()

	feed.Publish(domain.ChangeEvent{Event: domain.ChangeUpdate, Table: "orders", New: map[string]any{"user_id": "usr-2"}})
	feed.Publish(domain.ChangeEvent{Event: domain.ChangeUpdate, Table: "bookings", New: map[string]any{"user_id": "usr-1"}})
	feed.Publish(domain.ChangeEvent{Event: domain.ChangeUpdate, Table: "orders", New: map[string]any{"user_id": "usr-1", "status": "confirmed"}})

	evt := receive(t, mine)
	assert.Equal(t, "confirmed", evt.New["status"])
	assertNothing(t, mine)
}

func TestFeed_DeleteMatchesOldRow(t *testing.T) {
	feed := NewFeed(nil)
	defer feed.Close()

	sub, err := feed.Subscribe("team_members", "team_id", "team-1")
	require.NoError(t, err)
	defer sub.Close()

	feed.Publish(domain.ChangeEvent{Event: domain.ChangeDelete, Table: "team_members", Old: map[string]any{"team_id": "team-1"}})

	evt := receive(t, sub)
	assert.Equal(t, domain.ChangeDelete, evt.Event)
}

func TestFeed_SlowConsumerKeepsOrder(t *testing.T) {
	feed := NewFeed(nil)
	defer feed.Close()

	sub, err := feed.Subscribe("matches", "", "")
	require.NoError(t, err)
	defer sub.Close()

	for i := range 50 {
		feed.Publish(domain.ChangeEvent{Table: "matches", New: map[string]any{"seq": i}})
	}
	for i := range 50 {
		assert.Equal(t, i, receive(t, sub).New["seq"])
	}
}

func TestFeed_CloseSubscription(t *testing.T) {
	feed := NewFeed(nil)
	defer feed.Close()

	sub, err := feed.Subscribe("users", "id", "usr-1")
	require.NoError(t, err)
	assert.Equal(t, 1, feed.SubscriberCount())

	sub.Close()
	sub.Close()

	assert.Equal(t, 0, feed.SubscriberCount())
	_, ok := <-sub.C
	assert.False(t, ok)
}

func TestFeed_CloseEndsSubscriptions(t *testing.T) {
	feed := NewFeed(nil)

	sub, err := feed.Subscribe("users", "", "")
	require.NoError(t, err)

	feed.Close()
	_, ok := <-sub.C
	assert.False(t, ok)

	_, err = feed.Subscribe("users", "", "")
	assert.Error(t, err)
}
