package sqlinline

const QInsertUsageEvent = `--sql 63f21d8a-b794-4e05-a1c6-8d30f5e29c74
insert into usage_events (id, user_id, event, properties, created_at)
values (gen_random_uuid(), $1::uuid, $2, $3::jsonb, now());
`
