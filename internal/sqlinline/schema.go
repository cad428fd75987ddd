package sqlinline

// Schema lists the bootstrap DDL statements in apply order.
var Schema = []string{
	QCreateGenerationsTable,
	QCreateGenerationsInFlightIndex,
	QCreateAssetsTable,
	QCreateIntegrationTokensTable,
}

const QCreateGenerationsTable = `--sql 4f00736e-7405-4fef-8b9d-28508c520621
create table if not exists generations (
  id uuid primary key,
  user_id text not null default '',
  model_id text not null,
  kind text not null default '',
  request_id text not null default '',
  status text not null,
  prompt text not null default '',
  request_json jsonb,
  result_json jsonb,
  error_code text not null default '',
  error_message text not null default '',
  created_at timestamptz not null default now(),
  updated_at timestamptz not null default now()
);
`

const QCreateGenerationsInFlightIndex = `--sql 0501d653-72f0-48e3-83d0-2c0837cd1694
create index if not exists generations_in_flight_idx
  on generations (updated_at)
  where status in ('in_queue', 'in_progress') and request_id <> '';
`

const QCreateAssetsTable = `--sql 0a55d7bd-721f-4228-a03d-7e8bb43a321e
create table if not exists generation_assets (
  id uuid primary key,
  seq bigserial,
  generation_id uuid not null references generations(id) on delete cascade,
  user_id text not null default '',
  kind text not null,
  source_ref text not null,
  content_type text not null default '',
  bytes bigint not null default 0,
  width int not null default 0,
  height int not null default 0,
  created_at timestamptz not null default now()
);
`

const QCreateIntegrationTokensTable = `--sql 9106f509-22ed-4abc-a938-1f33e24fbd83
create table if not exists integration_tokens (
  id uuid primary key default gen_random_uuid(),
  provider text not null unique,
  token text not null,
  properties jsonb not null default '{}'::jsonb,
  created_at timestamptz not null default now(),
  updated_at timestamptz not null default now()
);
`
