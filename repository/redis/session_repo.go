package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/portal/domain"
	"github.com/fastygo/portal/repository"
)

const defaultRedirectTTL = 15 * time.Minute

type sessionRepository struct {
	client      redislib.UniversalClient
	prefix      string
	ttl         time.Duration
	redirectTTL time.Duration
}

// NewSessionRepository creates a Redis-backed session repository. Each client's record
// lives in one hash so that replace and clear are single atomic units.
func NewSessionRepository(client redislib.UniversalClient, ttl time.Duration) repository.SessionRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &sessionRepository{
		client:      client,
		prefix:      "portal:",
		ttl:         ttl,
		redirectTTL: defaultRedirectTTL,
	}
}

func (r *sessionRepository) Load(ctx context.Context, clientID string) (domain.Record, error) {
	values, err := r.client.HGetAll(ctx, r.sessionKey(clientID)).Result()
	if err != nil {
		return nil, err
	}
	return domain.Record(values), nil
}

func (r *sessionRepository) Replace(ctx context.Context, clientID string, record domain.Record) error {
	if clientID == "" || !record.Complete() {
		return domain.ErrInvalidPayload
	}
	key := r.sessionKey(clientID)
	fields := make(map[string]interface{}, len(record))
	for k, v := range record {
		fields[k] = v
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redislib.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	return err
}

func (r *sessionRepository) Clear(ctx context.Context, clientID string) error {
	return r.client.Del(ctx, r.sessionKey(clientID)).Err()
}

// setFlagScript writes a field only into a live session hash, so a flag update racing
// a Clear can never leave a token-less hash behind.
var setFlagScript = redislib.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[2], ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return 1
`)

func (r *sessionRepository) SetFlag(ctx context.Context, clientID, field, value string) error {
	keys := []string{r.sessionKey(clientID)}
	written, err := setFlagScript.Run(ctx, r.client, keys, domain.KeyAuthToken, field, value, r.ttl.Milliseconds()).Int()
	if err != nil {
		return err
	}
	if written == 0 {
		return domain.ErrNoSession
	}
	return nil
}

func (r *sessionRepository) SetRedirect(ctx context.Context, clientID, target string) error {
	return r.client.Set(ctx, r.redirectKey(clientID), target, r.redirectTTL).Err()
}

func (r *sessionRepository) TakeRedirect(ctx context.Context, clientID string) (string, error) {
	target, err := r.client.GetDel(ctx, r.redirectKey(clientID)).Result()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return "", nil
		}
		return "", err
	}
	return target, nil
}

func (r *sessionRepository) sessionKey(clientID string) string {
	return fmt.Sprintf("%ssession:%s", r.prefix, clientID)
}

func (r *sessionRepository) redirectKey(clientID string) string {
	return fmt.Sprintf("%sredirect:%s", r.prefix, clientID)
}
