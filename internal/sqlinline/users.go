// Package sqlinline holds every handler-facing SQL statement as a named
// constant. Each statement starts with a `--sql <uuid>` marker line that the
// runner checks before execution, so ad-hoc query strings cannot sneak in.
package sqlinline

const QUpsertGoogleUser = `--sql 7c1f4b7a-9a0e-4c4b-8f13-2f6d9f1a5e21
insert into users (id, google_sub, email, name, avatar_url, locale, plan, properties, created_at, updated_at)
values (gen_random_uuid(), $1, $2, $3, $4, $5, 'free',
        jsonb_build_object('quota_daily', 3, 'preferred_locale', $5::text), now(), now())
on conflict (google_sub) do update set
    email = excluded.email,
    name = excluded.name,
    avatar_url = excluded.avatar_url,
    locale = excluded.locale,
    updated_at = now()
returning id, google_sub, email, name, avatar_url, locale, plan, properties, created_at, updated_at;
`

const QSelectUserByID = `--sql 0d3c51fa-61f2-4de0-9b9d-7a54cf20ce68
select id, google_sub, email, name, avatar_url, locale, plan, properties, created_at, updated_at
from users
where id = $1::uuid
limit 1;
`

const QSelectDailyGenerationUsage = `--sql b9e4a7d2-5c1a-43bf-a0d8-11f3e8c26d94
select (select count(*)
        from generation_jobs j
        where j.user_id = u.id
          and j.created_at::date = current_date),
       coalesce(nullif(u.properties->>'quota_daily', '')::int, 0)
from users u
where u.id = $1::uuid;
`

const QSelectUserIDByEmail = `--sql 5a2d9c4e-7b31-4f08-9e6a-c84d1f72b3a5
select id
from users
where lower(email) = lower($1)
limit 1;
`

const QUpdateUserPlan = `--sql 3f8f2ce1-84a9-4f92-bd6a-60cf5b17a2d3
update users
set plan = $2,
    properties = jsonb_set(properties, '{quota_daily}', to_jsonb($3::int), true),
    updated_at = now()
where id = $1::uuid
returning id, plan;
`
