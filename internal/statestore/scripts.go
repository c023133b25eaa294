package statestore

import "github.com/go-redis/redis/v8"

// 所有写入都经由脚本完成，保证：
//   - 控制权 ID/Name 成对写入
//   - stop_epoch 只增不减
//   - 只有控制权持有者可以发布公告
//   - 每次提交 rev 加一

var mergeScript = redis.NewScript(`
local key = KEYS[1]
local out = {}
for i = 1, #ARGV, 2 do
  local field = ARGV[i]
  local value = ARGV[i + 1]
  if field == 'stop_bump' then
    local cur = tonumber(redis.call('HGET', key, 'stop_epoch') or '0') or 0
    if tonumber(value) > cur then
      redis.call('HSET', key, 'stop_epoch', value)
      out[#out + 1] = 'stop_epoch'
      out[#out + 1] = value
    else
      out[#out + 1] = 'stop_epoch'
      out[#out + 1] = redis.call('HINCRBY', key, 'stop_epoch', 1)
    end
  elseif field == 'stop_epoch' then
    local cur = tonumber(redis.call('HGET', key, 'stop_epoch') or '0') or 0
    if tonumber(value) > cur then
      redis.call('HSET', key, field, value)
      out[#out + 1] = field
      out[#out + 1] = value
    end
  elseif redis.call('HGET', key, field) ~= value then
    redis.call('HSET', key, field, value)
    out[#out + 1] = field
    out[#out + 1] = value
  end
end
if #out == 0 then
  return {}
end
table.insert(out, 1, redis.call('HINCRBY', key, 'rev', 1))
return out
`)

var acquireScript = redis.NewScript(`
local key = KEYS[1]
local holder = redis.call('HGET', key, 'active_controller_id')
if holder and holder ~= '' and holder ~= ARGV[1] then
  local ttl = tonumber(ARGV[4])
  local at = tonumber(redis.call('HGET', key, 'controller_acquired_at') or '0') or 0
  if ttl <= 0 or tonumber(ARGV[3]) - at < ttl then
    return {0, holder, redis.call('HGET', key, 'active_controller_name') or '', at}
  end
end
redis.call('HSET', key, 'active_controller_id', ARGV[1], 'active_controller_name', ARGV[2], 'controller_acquired_at', ARGV[3])
local rev = redis.call('HINCRBY', key, 'rev', 1)
return {1, rev, holder or ''}
`)

var releaseScript = redis.NewScript(`
local key = KEYS[1]
if redis.call('HGET', key, 'active_controller_id') ~= ARGV[1] then
  return 0
end
redis.call('HSET', key, 'active_controller_id', '', 'active_controller_name', '', 'controller_acquired_at', '0')
return redis.call('HINCRBY', key, 'rev', 1)
`)

var announceScript = redis.NewScript(`
local key = KEYS[1]
if redis.call('HGET', key, 'active_controller_id') ~= ARGV[1] then
  return {0}
end
local seq = redis.call('HINCRBY', key, 'announcement_seq', 1)
redis.call('HSET', key, 'announcement_url', ARGV[2])
local rev = redis.call('HINCRBY', key, 'rev', 1)
return {1, rev, seq}
`)
