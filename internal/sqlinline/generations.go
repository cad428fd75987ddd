package sqlinline

const QInsertGeneration = `--sql f9ba51c6-d93d-4b76-8db1-3de435261266
insert into generations (
  id, user_id, model_id, kind, request_id, status, prompt,
  request_json, result_json, error_code, error_message, created_at, updated_at
) values (
  $1::uuid, $2::text, $3::text, $4::text, $5::text, $6::text, $7::text,
  $8::jsonb, $9::jsonb, $10::text, $11::text, $12::timestamptz, $12::timestamptz
);
`

// QUpdateGeneration applies a patch. Null arguments keep the stored value.
const QUpdateGeneration = `--sql 3de0d793-7007-4f06-b512-d0671fec6485
update generations set
  request_id = coalesce($2::text, request_id),
  status = coalesce($3::text, status),
  result_json = coalesce($4::jsonb, result_json),
  error_code = coalesce($5::text, error_code),
  error_message = coalesce($6::text, error_message),
  updated_at = now()
where id = $1::uuid;
`

// QUpdateInFlightGeneration applies a patch only while the job is still in
// flight. Zero rows affected means another writer already settled it.
const QUpdateInFlightGeneration = `--sql 8a41c2d6-5e0b-4f7a-9c13-6b2e7d90f4a8
update generations set
  request_id = coalesce($2::text, request_id),
  status = coalesce($3::text, status),
  result_json = coalesce($4::jsonb, result_json),
  error_code = coalesce($5::text, error_code),
  error_message = coalesce($6::text, error_message),
  updated_at = now()
where id = $1::uuid
  and status in ('in_queue', 'in_progress');
`

const QSelectGenerationByID = `--sql ed88c8fa-7b77-40a9-9c4b-fd60e387d3fa
select id::text, user_id, model_id, kind, request_id, status, prompt,
  request_json, result_json, error_code, error_message, created_at, updated_at
from generations
where id = $1::uuid
limit 1;
`

const QListInFlightGenerations = `--sql 2179d785-d125-494f-bec0-ce4d92320fe7
select id::text, user_id, model_id, kind, request_id, status, prompt,
  request_json, result_json, error_code, error_message, created_at, updated_at
from generations
where status in ('in_queue', 'in_progress')
  and request_id <> ''
  and updated_at < $1::timestamptz
order by updated_at asc
limit $2::int;
`
