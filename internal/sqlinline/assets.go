package sqlinline

const QInsertGenerationAsset = `--sql ec5427ae-4e43-4d71-bbb3-647370e8d1b0
insert into generation_assets (
  id, generation_id, user_id, kind, source_ref, content_type, bytes, width, height, created_at
) values (
  $1::uuid, $2::uuid, $3::text, $4::text, $5::text, $6::text, $7::bigint, $8::int, $9::int, $10::timestamptz
);
`

const QListAssetsByGeneration = `--sql 45dab818-a6b8-479d-be14-a1bcd2ddb99f
select id::text, generation_id::text, user_id, kind, source_ref, content_type, bytes, width, height, created_at
from generation_assets
where generation_id = $1::uuid
order by seq asc;
`
