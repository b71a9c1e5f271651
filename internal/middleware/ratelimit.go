package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Limit is a fixed-window request budget for one named action.
type Limit struct {
	Name   string
	Max    int
	Window time.Duration
	// FailClosed answers 503 while Redis is unreachable instead of letting
	// the request through.
	FailClosed bool
}

// Budgets for the write-heavy and search endpoints.
var (
	SearchLimit          = Limit{Name: "search", Max: 30, Window: time.Minute}
	CreatePostLimit      = Limit{Name: "create_post", Max: 5, Window: 5 * time.Minute}
	VoteLimit            = Limit{Name: "vote", Max: 60, Window: time.Minute}
	ReportLimit          = Limit{Name: "report", Max: 10, Window: 10 * time.Minute}
	CreateCommunityLimit = Limit{Name: "create_community", Max: 3, Window: time.Hour}
)

var errNoLimiterStore = errors.New("rate limit store unavailable")

// Decision is the outcome of consuming one request from a Limit.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

// rateLimitBypassed reports whether APP_ENV turns limiting off.
func rateLimitBypassed() bool {
	switch os.Getenv("APP_ENV") {
	case "", "test", "development", "stress":
		return true
	}
	return false
}

// Consume counts one request by subject against l.
func (l Limit) Consume(ctx context.Context, rdb *redis.Client, subject string) (Decision, error) {
	if rateLimitBypassed() {
		return Decision{Allowed: true, Remaining: l.Max, ResetIn: l.Window}, nil
	}
	if rdb == nil {
		return Decision{}, errNoLimiterStore
	}

	key := fmt.Sprintf("ratelimit:%s:%s", l.Name, subject)
	count, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return Decision{}, err
	}
	if count == 1 {
		if err := rdb.Expire(ctx, key, l.Window).Err(); err != nil {
			return Decision{}, err
		}
	}
	resetIn, err := rdb.PTTL(ctx, key).Result()
	if err != nil || resetIn < 0 {
		resetIn = l.Window
	}

	return Decision{
		Allowed:   count <= int64(l.Max),
		Remaining: max(l.Max-int(count), 0),
		ResetIn:   resetIn,
	}, nil
}

func rateLimitSubject(c *fiber.Ctx) string {
	if uid, ok := c.Locals("userID").(uint); ok && uid != 0 {
		return "user:" + strconv.FormatUint(uint64(uid), 10)
	}
	return "ip:" + c.IP()
}

// RateLimit enforces l per authenticated user, or per client IP for
// anonymous callers.
func RateLimit(rdb *redis.Client, l Limit) fiber.Handler {
	return func(c *fiber.Ctx) error {
		decision, err := l.Consume(c.UserContext(), rdb, rateLimitSubject(c))
		if err != nil {
			RedisErrors.WithLabelValues("ratelimit").Inc()
			if l.FailClosed {
				Logger.WarnContext(c.UserContext(), "rate limit store unavailable, failing closed",
					slog.String("limit", l.Name), slog.String("error", err.Error()))
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"error": "rate limit unavailable",
				})
			}
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(l.Max))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		if !decision.Allowed {
			retryAfter := int(decision.ResetIn.Round(time.Second) / time.Second)
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(max(retryAfter, 1)))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
			})
		}
		return c.Next()
	}
}
