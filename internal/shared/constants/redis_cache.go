package constants

import (
	"fmt"
	"time"
)

// Redis keys follow staybook:{module}:{operation}:{identifier}

const (
	CACHE_PREFIX = "staybook"
)

// ================== ROOMS MODULE ==================

const (
	CACHE_KEY_ROOM_DETAIL = CACHE_PREFIX + ":rooms:detail:" // + room-id
	CACHE_KEY_ROOMS_LIST  = CACHE_PREFIX + ":rooms:list:"   // + filter signature
)

const (
	TTL_ROOM_DETAIL = 10 * time.Minute
	TTL_ROOMS_LIST  = 2 * time.Minute
)

// ================== RATE LIMITING ==================

const (
	RATE_LIMIT_PREFIX = CACHE_PREFIX + ":ratelimit:"
)

// ================== INVALIDATION PATTERNS ==================

const (
	PATTERN_INVALIDATE_ROOM_LISTS = CACHE_KEY_ROOMS_LIST + "*"
)

// ================== HELPER FUNCTIONS ==================

func BuildRoomDetailKey(roomID string) string {
	return CACHE_KEY_ROOM_DETAIL + roomID
}

// BuildRoomListKey builds a list key from the normalised filter options
// Example: staybook:rooms:list:type:suite:min:100:max:-:cap:2
func BuildRoomListKey(roomType string, minPrice, maxPrice *float64, minCapacity *int) string {
	orDash := func(f *float64) string {
		if f == nil {
			return "-"
		}
		return fmt.Sprintf("%g", *f)
	}
	capacity := "-"
	if minCapacity != nil {
		capacity = fmt.Sprintf("%d", *minCapacity)
	}
	if roomType == "" {
		roomType = "-"
	}
	return CACHE_KEY_ROOMS_LIST + "type:" + roomType + ":min:" + orDash(minPrice) + ":max:" + orDash(maxPrice) + ":cap:" + capacity
}
