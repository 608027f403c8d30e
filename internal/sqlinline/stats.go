package sqlinline

const QSelectStatsSummary = `--sql 85d9c4e1-3b07-4f68-92ad-06c1f8e57b24
select
    coalesce(sum(exercises_created), 0),
    coalesce(sum(courses_created), 0),
    coalesce(sum(generation_success), 0),
    coalesce(sum(generation_failed), 0),
    coalesce(sum(completion_calls), 0)
from analytics_daily
where day >= current_date - interval '30 days';
`
