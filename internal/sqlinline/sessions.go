package sqlinline

const QSelectClientSession = `--sql 29e3c9b8-5b9a-4305-b01a-906361bdf8c9
select client_id, user_id, email, access_token, refresh_token, expires_at
from client_sessions
where client_id = $1::uuid
limit 1;
`

const QUpsertClientSession = `--sql eafb5051-dac6-485f-94fd-b5001da091ac
insert into client_sessions(client_id, user_id, email, access_token, refresh_token, expires_at, updated_at)
values ($1::uuid, $2::uuid, $3::text, $4::text, $5::text, $6::timestamptz, now())
on conflict (client_id) do update set
  user_id = excluded.user_id,
  email = excluded.email,
  access_token = excluded.access_token,
  refresh_token = excluded.refresh_token,
  expires_at = excluded.expires_at,
  updated_at = now();
`

const QDeleteClientSession = `--sql 5d36160d-51a9-4462-ac54-addbc9e1ea6a
delete from client_sessions
where client_id = $1::uuid;
`
