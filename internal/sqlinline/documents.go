package sqlinline

const QInsertDocument = `--sql 6a7e5d21-0fb3-4c48-9a4e-8d2b6f71c3e5
insert into documents (id, user_id, filename, kind, size_bytes, storage_key, created_at)
values ($1::uuid, $2::uuid, $3, $4, $5, $6, now())
returning id, created_at;
`

const QSelectDocumentsByUser = `--sql e2b8c90f-4d16-4a7b-b5c3-9f07a1d482e6
select id, user_id, filename, kind, size_bytes, storage_key, created_at
from documents
where user_id = $1::uuid
order by created_at desc
limit 100;
`

const QSelectDocumentByID = `--sql 58d0f4ab-72c9-4e31-8b6a-c41e9d253f07
select id, user_id, filename, kind, size_bytes, storage_key, created_at
from documents
where id = $1::uuid
limit 1;
`
