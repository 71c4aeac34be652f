package redislock

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"enrollment-app/internal/payments"
)

// lockTTL bounds how long a crashed holder can block an enrollment.
// Generously above the per-operation processor timeout.
const lockTTL = 2 * time.Minute

// Locker is the redis-backed payments.Locker: SETNX with a TTL per
// enrollment, released only by the holder (token check) so an expired
// lock grabbed by someone else is never deleted by the late releaser.
type Locker struct {
	client *redis.Client
}

var _ payments.Locker = (*Locker)(nil)

func New(redisURL string) (*Locker, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Locker{client: client}, nil
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func (l *Locker) Acquire(ctx context.Context, enrollmentID uint) (func(), error) {
	key := fmt.Sprintf("enrollment-lock:%d", enrollmentID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, lockTTL).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, payments.ErrEnrollmentBusy
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			log.Printf("event=lock_release_failed key=%s err=%v", key, err)
		}
	}, nil
}

func (l *Locker) Close() error {
	return l.client.Close()
}
