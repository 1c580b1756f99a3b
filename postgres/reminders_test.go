package postgres_test

import (
	"context"
	"testing"
	"ticketing/entity"
	"ticketing/postgres"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addReminder(t *testing.T, user entity.User, event entity.Event, fireAt time.Time) entity.Reminder {
	t.Helper()

	r, err := postgres.NewReminderRepo(db).Add(context.Background(), entity.Reminder{
		ID:      uuid.NewString(),
		UserID:  user.ID,
		EventID: event.ID,
		FireAt:  fireAt,
		Type:    entity.ReminderTypeUserCustom,
	})
	require.NoError(t, err)

	return r
}

func TestReminderRepo_ClaimAndMarkSent(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewReminderRepo(db)
	creator := addUser(t, entity.RoleCreator)
	user := addUser(t, entity.RoleEventee)
	event := addEvent(t, creator.ID)
	reminder := addReminder(t, user, event, time.Now().Add(-time.Minute))

	assert.False(t, reminder.Sent)

	claimed, err := repo.Claim(ctx, reminder.ID, time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = repo.Claim(ctx, reminder.ID, time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed, "lease is held")

	require.NoError(t, repo.Release(ctx, reminder.ID))

	claimed, err = repo.Claim(ctx, reminder.ID, time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed, "released lease can be claimed again")

	changed, err := repo.MarkSent(ctx, reminder.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.MarkSent(ctx, reminder.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	claimed, err = repo.Claim(ctx, reminder.ID, time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed, "sent reminders cannot be claimed")

	stored, err := repo.Get(ctx, reminder.ID)
	require.NoError(t, err)
	assert.True(t, stored.Sent)
	assert.NotNil(t, stored.SentAt)
	assert.Equal(t, 2, stored.Attempts)
}

func TestReminderRepo_MarkSent_Unknown(t *testing.T) {
	_, err := postgres.NewReminderRepo(db).MarkSent(context.Background(), uuid.NewString())
	assert.Equal(t, entity.KindNotFound, entity.KindOf(err))
}

func TestReminderRepo_Due(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewReminderRepo(db)
	creator := addUser(t, entity.RoleCreator)
	user := addUser(t, entity.RoleEventee)
	event := addEvent(t, creator.ID)

	due := addReminder(t, user, event, time.Now().Add(-time.Minute))
	future := addReminder(t, user, event, time.Now().Add(time.Hour))
	claimed := addReminder(t, user, event, time.Now().Add(-time.Minute))
	_, err := repo.Claim(ctx, claimed.ID, time.Hour)
	require.NoError(t, err)

	reminders, err := repo.Due(ctx, 10000)
	require.NoError(t, err)

	ids := map[string]bool{}
	for _, r := range reminders {
		ids[r.ID] = true
	}
	assert.True(t, ids[due.ID])
	assert.False(t, ids[future.ID])
	assert.False(t, ids[claimed.ID])
}

func TestReminderRepo_AddDefault_OncePerUserAndEvent(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewReminderRepo(db)
	creator := addUser(t, entity.RoleCreator)
	user := addUser(t, entity.RoleEventee)
	event := addEvent(t, creator.ID)

	r := entity.Reminder{UserID: user.ID, EventID: event.ID, FireAt: event.StartsAt.Add(-24 * time.Hour)}

	r.ID = uuid.NewString()
	added, ok, err := repo.AddDefault(ctx, r)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, entity.ReminderTypeCreatorDefault, added.Type)

	r.ID = uuid.NewString()
	_, ok, err = repo.AddDefault(ctx, r)
	require.NoError(t, err)
	assert.False(t, ok)

	reminders, err := repo.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, reminders, 1)
}

func TestReminderRepo_ListByUser_OrderedByFireTime(t *testing.T) {
	ctx := context.Background()
	creator := addUser(t, entity.RoleCreator)
	user := addUser(t, entity.RoleEventee)
	event := addEvent(t, creator.ID)

	later := addReminder(t, user, event, time.Now().Add(2*time.Hour))
	sooner := addReminder(t, user, event, time.Now().Add(time.Hour))

	reminders, err := postgres.NewReminderRepo(db).ListByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, reminders, 2)
	assert.Equal(t, sooner.ID, reminders[0].ID)
	assert.Equal(t, later.ID, reminders[1].ID)
}
