package utils

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

type RedisStatusStore struct {
	inner     *redis.Client
	keyParser RedisKeyParser
}

const (
	// Redis only has string type, there is no boolean or int, so we use "1" to represent true
	RedisTrue  = "1"
	RedisFalse = "0"

	// A hydration flag left behind by a crashed cycle expires on its own so the
	// feed never gets stuck unhydratable.
	hydrationFlagTTL = 2 * time.Minute
)

var ctx = context.Background()

func GetRedisStatusStore() (*RedisStatusStore, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT")),
		Password: os.Getenv("REDIS_PASSWD"),
		DB:       0, // use default DB
	})
	_, err := redisClient.Ping(ctx).Result()
	if err != nil {
		return nil, err
	}
	return &RedisStatusStore{
		inner:     redisClient,
		keyParser: RedisKeyParser{delimiter: "__"},
	}, nil
}

type RedisKeyParser struct {
	delimiter string
}

func (r RedisKeyParser) DecodeReelKey(key string) (string, string, error) {
	splits := strings.Split(key, r.delimiter)
	if (len(splits)) != 2 {
		return "", "", fmt.Errorf("invalid key: %s", key)
	}
	return splits[0], splits[1], nil
}

func (r RedisKeyParser) ValidateId(id string) bool {
	return !strings.Contains(id, r.delimiter)
}

func (r RedisKeyParser) EncodeReelKey(userId string, reelId string) (string, error) {
	if !r.ValidateId(userId) || !r.ValidateId(reelId) {
		return "", fmt.Errorf("invalid userId or reelId")
	}
	return fmt.Sprintf("%s%s%s", userId, r.delimiter, reelId), nil
}

func (r RedisKeyParser) MustEncodeReelKey(userId string, reelId string) string {
	if !r.ValidateId(userId) || !r.ValidateId(reelId) {
		panic(fmt.Errorf("invalid userId or reelId with delimiter: %s, %s, %s", userId, reelId, r.delimiter))
	}
	return fmt.Sprintf("%s%s%s", userId, r.delimiter, reelId)
}

func (r RedisKeyParser) EncodeHydrationKey(feedId string) string {
	return "hydrating" + r.delimiter + feedId
}

// GetItemsWatchedStatus returns, for each reel id, whether the user already
// watched it. Missing keys read as unwatched.
func (r *RedisStatusStore) GetItemsWatchedStatus(reelIds []string, userId string) ([]bool, error) {
	if len(reelIds) == 0 {
		return []bool{}, nil
	}

	reelKeys := []string{}

	for _, rid := range reelIds {
		reelKeys = append(reelKeys, r.keyParser.MustEncodeReelKey(userId, rid))
	}

	res, err := r.inner.MGet(ctx, reelKeys...).Result()
	status := []bool{}
	for _, v := range res {
		if v == nil {
			status = append(status, false)
			continue
		}

		if v == RedisTrue {
			status = append(status, true)
			continue
		}
		status = append(status, false)
	}
	return status, err
}

func (r RedisStatusStore) SetItemsWatchedStatus(reelIds []string, userId string, watched bool) error {
	if watched {
		keyValues := []interface{}{}
		for _, rid := range reelIds {
			keyValues = append(keyValues, r.keyParser.MustEncodeReelKey(userId, rid))
			keyValues = append(keyValues, RedisTrue)
		}
		return r.inner.MSetNX(ctx, keyValues...).Err()
	}

	keyValues := []string{}
	for _, rid := range reelIds {
		keyValues = append(keyValues, r.keyParser.MustEncodeReelKey(userId, rid))
	}
	return r.inner.Del(ctx, keyValues...).Err()
}

// TryBeginHydration atomically claims the per-feed in-flight flag. Returns
// false when another fetch cycle already holds it, so two near-simultaneous
// "end of feed" signals can never launch two overlapping cycles.
func (r *RedisStatusStore) TryBeginHydration(feedId string) (bool, error) {
	return r.inner.SetNX(ctx, r.keyParser.EncodeHydrationKey(feedId), RedisTrue, hydrationFlagTTL).Result()
}

// EndHydration releases the per-feed in-flight flag. Safe to call when the
// flag already expired.
func (r *RedisStatusStore) EndHydration(feedId string) error {
	return r.inner.Del(ctx, r.keyParser.EncodeHydrationKey(feedId)).Err()
}
