package sqlinline

const QListTodos = `--sql e7b3bf3e-d3d3-4493-bb6d-d70758d3f6b6
select id, user_id, title, description, is_complete, created_at
from todos
where user_id = $1::uuid
order by created_at desc, id desc;
`

const QInsertTodo = `--sql 443532bf-a9be-40b6-8214-c73ea6684e7f
insert into todos(id, user_id, title, description, is_complete, created_at)
values (gen_random_uuid(), $1::uuid, $2::text, $3::text, false, now())
returning id, user_id, title, description, is_complete, created_at;
`

const QUpdateTodo = `--sql c4eb6139-57a2-4bec-9240-c63a94e6f0b3
update todos
set
  title = coalesce($3::text, title),
  description = coalesce($4::text, description),
  is_complete = coalesce($5::boolean, is_complete)
where id = $2::uuid
  and user_id = $1::uuid
returning id, user_id, title, description, is_complete, created_at;
`

const QDeleteTodo = `--sql 099d7dd7-2aa4-48d4-918d-c7e178d2781c
delete from todos
where id = $2::uuid
  and user_id = $1::uuid;
`
