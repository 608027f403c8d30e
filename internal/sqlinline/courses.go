package sqlinline

const QInsertCourse = `--sql 91c3e8f7-2a5d-4b60-ae19-7f84d2c05b3a
insert into courses (id, user_id, name, description, status, created_at, updated_at)
values ($1::uuid, $2::uuid, $3, $4, 'pending', now(), now())
returning id, created_at;
`

const QSelectCoursesByUser = `--sql 4e92b1d8-7c30-4f5a-9d26-e81a5f47c0b9
select id, user_id, name, description, status, created_at, updated_at
from courses
where user_id = $1::uuid
order by created_at desc;
`

const QSelectCourseByID = `--sql ad65f203-1e94-4c7b-82d5-36b0c9e14f78
select id, user_id, name, description, status, created_at, updated_at
from courses
where id = $1::uuid
limit 1;
`

const QSelectTopicsByCourse = `--sql c8417a96-5fd2-4e08-b3a1-90d6e25c84fb
select id, course_id, name, position, created_at
from topics
where course_id = $1::uuid
order by position asc;
`

const QDeleteCourse = `--sql 2f90d5c4-8b17-4a63-9e08-d54c1b7f2a86
delete from courses
where id = $1::uuid
  and user_id = $2::uuid;
`

const QSelectExercisesByCourse = `--sql 760b2e9d-43af-4c15-8d72-1a95f60c3be4
select e.id, e.topic_id, e.user_id, e.title, e.status, e.segments, e.summary, e.questions, e.created_at, e.updated_at
from exercises e
join topics t on t.id = e.topic_id
where t.course_id = $1::uuid
order by t.position asc, e.created_at asc;
`
