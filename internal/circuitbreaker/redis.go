package circuitbreaker

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/felipepmaragno/solmate-api/internal/domain"
)

// Each script returns {previous_state, new_state} so transitions can be
// reported by whichever instance caused them.

// Keys: [state, last_failure, successes]  Args: [cooldown_seconds]
var allowScript = redis.NewScript(`
local state = redis.call('GET', KEYS[1]) or 'closed'
if state ~= 'open' then
    return {state, state}
end

local lastFailure = tonumber(redis.call('GET', KEYS[2]) or '0')
local now = tonumber(redis.call('TIME')[1])
if (now - lastFailure) >= tonumber(ARGV[1]) then
    redis.call('SET', KEYS[1], 'half-open')
    redis.call('SET', KEYS[3], '0')
    return {state, 'half-open'}
end
return {state, state}
`)

// Keys: [state, failures, successes]  Args: [success_threshold]
var recordSuccessScript = redis.NewScript(`
local state = redis.call('GET', KEYS[1]) or 'closed'
if state == 'closed' then
    redis.call('SET', KEYS[2], '0')
    return {state, state}
end
if state == 'half-open' then
    local successes = redis.call('INCR', KEYS[3])
    if successes >= tonumber(ARGV[1]) then
        redis.call('SET', KEYS[1], 'closed')
        redis.call('SET', KEYS[2], '0')
        redis.call('SET', KEYS[3], '0')
        return {state, 'closed'}
    end
end
return {state, state}
`)

// Keys: [state, failures, last_failure, successes]  Args: [failure_threshold]
var recordFailureScript = redis.NewScript(`
local state = redis.call('GET', KEYS[1]) or 'closed'
redis.call('SET', KEYS[3], redis.call('TIME')[1])

if state == 'closed' then
    local failures = redis.call('INCR', KEYS[2])
    if failures >= tonumber(ARGV[1]) then
        redis.call('SET', KEYS[1], 'open')
        return {state, 'open'}
    end
elseif state == 'half-open' then
    redis.call('SET', KEYS[1], 'open')
    redis.call('SET', KEYS[4], '0')
    return {state, 'open'}
end
return {state, state}
`)

// RedisCircuitBreaker keeps one breaker's state in Redis. Redis errors never
// block a call: Allow fails open and the record calls are best effort.
type RedisCircuitBreaker struct {
	client    *redis.Client
	name      string
	config    Config
	keyPrefix string
	onChange  StateChangeFunc
}

func NewRedisWithClient(client *redis.Client, name string, cfg Config, onChange StateChangeFunc) *RedisCircuitBreaker {
	return &RedisCircuitBreaker{
		client:    client,
		name:      name,
		config:    cfg,
		keyPrefix: "solmate:cb:" + name + ":",
		onChange:  onChange,
	}
}

func (cb *RedisCircuitBreaker) key(field string) string {
	return cb.keyPrefix + field
}

func (cb *RedisCircuitBreaker) Allow(ctx context.Context) error {
	to, ok := cb.run(ctx, allowScript,
		[]string{cb.key("state"), cb.key("last_failure"), cb.key("successes")},
		int(cb.config.Timeout.Seconds()))
	if ok && to == StateOpen {
		return domain.ErrCircuitBreakerOpen
	}
	return nil
}

func (cb *RedisCircuitBreaker) RecordSuccess(ctx context.Context) {
	cb.run(ctx, recordSuccessScript,
		[]string{cb.key("state"), cb.key("failures"), cb.key("successes")},
		cb.config.SuccessThreshold)
}

func (cb *RedisCircuitBreaker) RecordFailure(ctx context.Context) {
	cb.run(ctx, recordFailureScript,
		[]string{cb.key("state"), cb.key("failures"), cb.key("last_failure"), cb.key("successes")},
		cb.config.FailureThreshold)
}

func (cb *RedisCircuitBreaker) State(ctx context.Context) State {
	result, err := cb.client.Get(ctx, cb.key("state")).Result()
	if err != nil {
		return StateClosed
	}
	return parseState(result)
}

// Reset forces the circuit closed.
func (cb *RedisCircuitBreaker) Reset(ctx context.Context) error {
	pipe := cb.client.Pipeline()
	pipe.Set(ctx, cb.key("state"), "closed", 0)
	pipe.Set(ctx, cb.key("failures"), "0", 0)
	pipe.Set(ctx, cb.key("successes"), "0", 0)
	pipe.Del(ctx, cb.key("last_failure"))
	_, err := pipe.Exec(ctx)
	return err
}

func (cb *RedisCircuitBreaker) run(ctx context.Context, script *redis.Script, keys []string, args ...any) (State, bool) {
	res, err := script.Run(ctx, cb.client, keys, args...).StringSlice()
	if err != nil || len(res) != 2 {
		slog.WarnContext(ctx, "circuit breaker redis call failed", "breaker", cb.name, "error", err)
		return StateClosed, false
	}

	from, to := parseState(res[0]), parseState(res[1])
	if from != to && cb.onChange != nil {
		cb.onChange(cb.name, from, to)
	}
	return to, true
}
