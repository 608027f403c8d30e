package sqlinline

const QSelectIntegrationToken = `--sql 3b90e7d1-5c24-4f86-a9d3-f012c8e64a75
select token
from integration_tokens
where provider = $1::text
limit 1;
`

const QUpsertIntegrationToken = `--sql ce284f60-17db-4a95-b3e8-6d01f5c92a34
insert into integration_tokens (id, provider, token, properties, created_at, updated_at)
values (gen_random_uuid(), $1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb), now(), now())
on conflict (provider) do update set
    token = excluded.token,
    properties = excluded.properties,
    updated_at = now();
`
