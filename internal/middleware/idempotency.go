package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	idempotencyPrefix    = "votewise:idempotency:v1:"
	idempotencyPending   = "pending"
	maxIdempotencyKeyLen = 128
	idempotencyIOTimeout = 2 * time.Second
)

// replay is what gets stored for a completed request.
type replay struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// Idempotency replays the first completed response for a repeated
// Idempotency-Key on unsafe methods. Requests without the header pass
// through. Keys are scoped to the authenticated caller and the path, so one
// voter can never receive another's receipt. Without Redis it is a no-op.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cache == nil || isSafeMethod(c.Method()) {
			return c.Next()
		}
		key := strings.TrimSpace(c.Get(idempotencyKeyHeader))
		if key == "" {
			return c.Next()
		}
		if len(key) > maxIdempotencyKeyLen {
			return fiber.NewError(fiber.StatusBadRequest, "Idempotency-Key too long")
		}

		scope := "anonymous"
		if ident, ok := CurrentIdentity(c); ok {
			scope = ident.UserID
		}
		cacheKey := idempotencyPrefix + scope + ":" + c.Path() + ":" + key
		log := logger.With(slog.String("idempotency_key", key), slog.String("scope", scope))

		reserved, err := reserve(c.UserContext(), cache, cacheKey, ttl)
		if err != nil {
			log.Error("idempotency reservation failed", slog.Any("error", err))
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency store failure")
		}
		if !reserved {
			return replayStored(c, cache, cacheKey, log)
		}

		if err := c.Next(); err != nil {
			release(cache, cacheKey)
			return err
		}

		rec := replay{
			Status:      c.Response().StatusCode(),
			ContentType: string(c.Response().Header.ContentType()),
			Body:        append([]byte(nil), c.Response().Body()...),
		}
		if err := persist(c.UserContext(), cache, cacheKey, rec, ttl); err != nil {
			log.Error("idempotency persist failed", slog.Any("error", err))
			release(cache, cacheKey)
		}
		return nil
	}
}

func isSafeMethod(method string) bool {
	switch strings.ToUpper(method) {
	case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
		return true
	}
	return false
}

// reserve claims cacheKey. It reports false when another request already
// holds or completed the key.
func reserve(ctx context.Context, cache *redis.Client, cacheKey string, ttl time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, idempotencyIOTimeout)
	defer cancel()
	return cache.SetNX(ctx, cacheKey, idempotencyPending, ttl).Result()
}

func replayStored(c *fiber.Ctx, cache *redis.Client, cacheKey string, log *slog.Logger) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), idempotencyIOTimeout)
	defer cancel()

	raw, err := cache.Get(ctx, cacheKey).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		// Released between SETNX and GET; the first attempt failed.
		return fiber.NewError(fiber.StatusConflict, "duplicate request, retry")
	case err != nil:
		log.Error("idempotency lookup failed", slog.Any("error", err))
		return fiber.NewError(fiber.StatusInternalServerError, "idempotency store failure")
	case string(raw) == idempotencyPending:
		return fiber.NewError(fiber.StatusConflict, "duplicate request currently processing")
	}

	var rec replay
	if err := json.Unmarshal(raw, &rec); err != nil {
		log.Warn("stored idempotent response unreadable", slog.Any("error", err))
		return fiber.NewError(fiber.StatusConflict, "duplicate request")
	}
	if rec.ContentType != "" {
		c.Set(fiber.HeaderContentType, rec.ContentType)
	}
	c.Set("Idempotent-Replay", "true")
	return c.Status(rec.Status).Send(rec.Body)
}

func persist(ctx context.Context, cache *redis.Client, cacheKey string, rec replay, ttl time.Duration) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, idempotencyIOTimeout)
	defer cancel()
	return cache.Set(ctx, cacheKey, payload, ttl).Err()
}

// release drops a reservation so the client can retry after a failure.
func release(cache *redis.Client, cacheKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), idempotencyIOTimeout)
	defer cancel()
	cache.Del(ctx, cacheKey)
}
