package sqlinline

const QInsertFeedback = `--sql 9e16d7c4-82f5-4a03-b9d8-c3502e8f1a67
insert into feedback (id, user_id, category, message, rating, exercise_id, created_at)
values ($1::uuid, $2::uuid, $3, $4, $5, nullif($6, '')::uuid, now())
returning id, created_at;
`

const QSelectRecentFeedback = `--sql 24c8a0f9-e5d1-4b76-83a2-f61d09c75e38
select id, user_id, category, message, rating, coalesce(exercise_id::text, ''), created_at
from feedback
order by created_at desc
limit $1;
`
