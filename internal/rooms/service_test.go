package rooms

import (
	"context"
	"testing"

	"staybook/internal/shared/constants"
	"staybook/pkg/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var admin = GrantAdmin("ops-1")

func sampleRoom(id string, typ RoomType, price float64, capacity int) Room {
	return Room{
		ID:           id,
		Name:         "Room " + id,
		Type:         typ,
		NightlyPrice: price,
		Capacity:     capacity,
		Description:  "test room",
		Amenities:    pq.StringArray{"WiFi", "TV"},
		Images:       pq.StringArray{"https://img.example/" + id + ".jpg"},
		Active:       true,
	}
}

func seed(t *testing.T, svc Service, rooms ...Room) {
	t.Helper()
	for _, r := range rooms {
		_, err := svc.UpsertRoom(context.Background(), admin, r)
		require.NoError(t, err)
	}
}

func ptr[T any](v T) *T { return &v }

func TestUpsertThenGetRoundTrips(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	in := sampleRoom("R1", RoomTypeDouble, 100, 2)

	saved, err := svc.UpsertRoom(context.Background(), admin, in)
	require.NoError(t, err)

	got, err := svc.GetRoom(context.Background(), "R1")
	require.NoError(t, err)
	assert.Equal(t, saved, got)

	// Every attribute the caller supplied survives unchanged
	assert.Equal(t, in.Name, got.Name)
	assert.Equal(t, in.Type, got.Type)
	assert.Equal(t, in.NightlyPrice, got.NightlyPrice)
	assert.Equal(t, in.Capacity, got.Capacity)
	assert.Equal(t, in.Amenities, got.Amenities)
	assert.Equal(t, in.Images, got.Images)
	assert.Equal(t, in.Active, got.Active)
}

func TestUpsertReplacesAndKeepsCreatedAt(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	first, err := svc.UpsertRoom(context.Background(), admin, sampleRoom("R1", RoomTypeDouble, 100, 2))
	require.NoError(t, err)

	edit := sampleRoom("R1", RoomTypeSuite, 250, 4)
	edit.Active = false
	second, err := svc.UpsertRoom(context.Background(), admin, edit)
	require.NoError(t, err)

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, RoomTypeSuite, second.Type)
	assert.False(t, second.Active)

	got, err := svc.GetRoom(context.Background(), "R1")
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestUpsertRequiresCapability(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	_, err := svc.UpsertRoom(context.Background(), AdminCapability{}, sampleRoom("R1", RoomTypeDouble, 100, 2))
	assert.ErrorIs(t, err, ErrNotAuthorized)

	_, err = svc.GetRoom(context.Background(), "R1")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestUpsertValidates(t *testing.T) {
	svc := NewService(NewMemoryRepository())

	cases := map[string]func(r *Room){
		"missing id":     func(r *Room) { r.ID = "" },
		"missing name":   func(r *Room) { r.Name = "" },
		"unknown type":   func(r *Room) { r.Type = "penthouse" },
		"zero price":     func(r *Room) { r.NightlyPrice = 0 },
		"negative price": func(r *Room) { r.NightlyPrice = -5 },
		"zero capacity":  func(r *Room) { r.Capacity = 0 },
		"blank amenity":  func(r *Room) { r.Amenities = pq.StringArray{""} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			r := sampleRoom("R1", RoomTypeDouble, 100, 2)
			mutate(&r)
			_, err := svc.UpsertRoom(context.Background(), admin, r)
			assert.ErrorIs(t, err, ErrInvalidRoom)
		})
	}
}

func TestUpsertAcceptsAnyPositiveCapacity(t *testing.T) {
	svc := NewService(NewMemoryRepository())

	hall, err := svc.UpsertRoom(context.Background(), admin, sampleRoom("H1", RoomTypeSuite, 1200, 120))
	require.NoError(t, err)
	assert.Equal(t, 120, hall.Capacity)

	got, err := svc.ListRooms(context.Background(), Filter{MinCapacity: ptr(100)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "H1", got[0].ID)
}

func TestListRoomsFilters(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	seed(t, svc,
		sampleRoom("4", RoomTypeSingle, 149, 1),
		sampleRoom("3", RoomTypeDouble, 199, 2),
		sampleRoom("1", RoomTypeDeluxe, 299, 2),
		sampleRoom("2", RoomTypeSuite, 499, 4),
		sampleRoom("5", RoomTypeDouble, 199, 3),
	)

	ids := func(rs []Room) []string {
		out := make([]string, len(rs))
		for i, r := range rs {
			out[i] = r.ID
		}
		return out
	}

	cases := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"no filter orders by price then id", Filter{}, []string{"4", "3", "5", "1", "2"}},
		{"type exact", Filter{Type: ptr(RoomTypeDouble)}, []string{"3", "5"}},
		{"inclusive price range", Filter{MinPrice: ptr(199.0), MaxPrice: ptr(299.0)}, []string{"3", "5", "1"}},
		{"capacity lower bound", Filter{MinCapacity: ptr(3)}, []string{"5", "2"}},
		{"combined", Filter{Type: ptr(RoomTypeDouble), MinCapacity: ptr(3)}, []string{"5"}},
		{"nothing matches", Filter{MinPrice: ptr(1000.0)}, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rooms, err := svc.ListRooms(context.Background(), tc.filter)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ids(rooms))
		})
	}
}

func TestListRoomsRejectsBadFilter(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	_, err := svc.ListRooms(context.Background(), Filter{MinPrice: ptr(300.0), MaxPrice: ptr(100.0)})
	assert.ErrorIs(t, err, ErrInvalidFilter)

	_, err = svc.ListRooms(context.Background(), Filter{Type: ptr(RoomType("castle"))})
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestGetRoomReadsThroughCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	svc := NewService(NewMemoryRepository())
	svc.SetCacheService(cache.NewService(client))
	seed(t, svc, sampleRoom("R1", RoomTypeDouble, 100, 2))

	key := constants.BuildRoomDetailKey("R1")
	assert.False(t, mr.Exists(key), "upsert leaves the detail key cold")

	first, err := svc.GetRoom(context.Background(), "R1")
	require.NoError(t, err)
	assert.True(t, mr.Exists(key))

	second, err := svc.GetRoom(context.Background(), "R1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// An edit invalidates the cached copy
	edit := sampleRoom("R1", RoomTypeDouble, 120, 2)
	_, err = svc.UpsertRoom(context.Background(), admin, edit)
	require.NoError(t, err)
	assert.False(t, mr.Exists(key))

	third, err := svc.GetRoom(context.Background(), "R1")
	require.NoError(t, err)
	assert.Equal(t, 120.0, third.NightlyPrice)
}

func TestListRoomsCacheInvalidatedOnUpsert(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	svc := NewService(NewMemoryRepository())
	svc.SetCacheService(cache.NewService(client))
	seed(t, svc, sampleRoom("R1", RoomTypeDouble, 100, 2))

	rooms, err := svc.ListRooms(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, rooms, 1)

	seed(t, svc, sampleRoom("R2", RoomTypeSuite, 300, 4))

	rooms, err = svc.ListRooms(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Len(t, rooms, 2)
}

func TestCacheFailureDoesNotFailRequests(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()

	svc := NewService(NewMemoryRepository())
	svc.SetCacheService(cache.NewService(client))
	seed(t, svc, sampleRoom("R1", RoomTypeDouble, 100, 2))

	mr.Close()

	room, err := svc.GetRoom(context.Background(), "R1")
	require.NoError(t, err)
	assert.Equal(t, "R1", room.ID)

	_, err = svc.UpsertRoom(context.Background(), admin, sampleRoom("R2", RoomTypeDouble, 100, 2))
	require.NoError(t, err)
}

func TestUpsertIssuesInvalidations(t *testing.T) {
	db, mock := redismock.NewClientMock()

	svc := NewService(NewMemoryRepository())
	svc.SetCacheService(cache.NewService(db))

	mock.ExpectDel(constants.BuildRoomDetailKey("R9")).SetVal(0)
	mock.ExpectScan(0, constants.PATTERN_INVALIDATE_ROOM_LISTS, 100).SetVal([]string{}, 0)

	_, err := svc.UpsertRoom(context.Background(), admin, sampleRoom("R9", RoomTypeSingle, 80, 1))
	require.NoError(t, err)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}
