package sqlinline

const QInsertGenerationJob = `--sql f3a81c52-6e07-4d98-b245-09c7d1e5a36f
insert into generation_jobs (id, user_id, kind, target_id, document_id, status, request_json, created_at, updated_at)
values ($1::uuid, $2::uuid, $3, $4::uuid, $5::uuid, 'QUEUED', $6::jsonb, now(), now())
returning id, created_at;
`

const QSelectGenerationJobByID = `--sql ba72e4d9-15c8-4f30-a6b1-d0835c2f97ea
select id, user_id, kind, target_id, document_id, status, request_json,
       coalesce(stages_json, '[]'::jsonb), coalesce(error_message, ''), created_at, updated_at
from generation_jobs
where id = $1::uuid
limit 1;
`
