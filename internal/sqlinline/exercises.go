package sqlinline

const QInsertExercise = `--sql 8b54c1f0-d273-4e96-a08b-5f12d7c4e839
insert into exercises (id, topic_id, user_id, title, status, created_at, updated_at)
values ($1::uuid, nullif($2, '')::uuid, $3::uuid, $4, 'pending', now(), now())
returning id, created_at;
`

const QSelectExerciseByID = `--sql 1d82f6a5-39c0-4b74-95de-c6071a2f48e3
select id, topic_id, user_id, title, status, segments, summary, questions, created_at, updated_at
from exercises
where id = $1::uuid
limit 1;
`
