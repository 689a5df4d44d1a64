package sqlinline

const QCreateGenerationJobsTable = `--sql 5fbb64b5-c562-48de-8bd5-9dcc22b54974
create table if not exists generation_jobs (
    id uuid primary key,
    provider_task_id text unique,
    owner_id text,
    prompt_original text not null,
    prompt_effective text not null,
    model text not null default '',
    aspect_ratio text not null default '',
    duration_seconds integer not null default 0,
    audio_enabled boolean not null default false,
    state text not null,
    progress_percent integer,
    result_url text,
    error_code text,
    error_message text,
    cancel_requested_at timestamptz,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now(),
    constraint generation_jobs_state_check
        check (state in ('PENDING', 'RUNNING', 'SUCCEEDED', 'FAILED', 'CANCELLED')),
    constraint generation_jobs_progress_check
        check (progress_percent is null or progress_percent between 0 and 100)
);
alter table generation_jobs
    add column if not exists last_checked_at timestamptz;
drop index if exists generation_jobs_active_idx;
create index if not exists generation_jobs_active_check_idx
    on generation_jobs ((coalesce(last_checked_at, updated_at)))
    where state = 'RUNNING';
`

const QInsertGenerationJob = `--sql de71badf-3f16-49a2-bfb6-a8b074ba5010
insert into generation_jobs (
    id, provider_task_id, owner_id, prompt_original, prompt_effective,
    model, aspect_ratio, duration_seconds, audio_enabled, state,
    progress_percent, created_at, updated_at
)
values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13);
`

const generationJobColumns = `id::text, provider_task_id, owner_id, prompt_original, prompt_effective,
    model, aspect_ratio, duration_seconds, audio_enabled, state,
    progress_percent, result_url, error_code, error_message,
    cancel_requested_at, created_at, updated_at`

const QSelectGenerationJobByID = `--sql ebaee5c7-dae2-45e9-a66c-bdc68ba25d4d
select ` + generationJobColumns + `
from generation_jobs
where id = $1::uuid;
`

const QSelectGenerationJobByTaskID = `--sql 8a6fe9a3-cde5-4c33-b24d-25b4e03595c6
select ` + generationJobColumns + `
from generation_jobs
where provider_task_id = $1;
`

const QMarkGenerationJobSubmitted = `--sql fe576e8e-de4e-4736-b55b-f09b1f5bcb98
update generation_jobs
set provider_task_id = $2,
    state = 'RUNNING',
    updated_at = $3
where id = $1::uuid
  and state = 'PENDING'
  and provider_task_id is null;
`

const QUpdateGenerationJobProgress = `--sql 218e558b-3e04-4d80-9211-1d40de9e5838
update generation_jobs
set progress_percent = greatest(coalesce(progress_percent, 0), $2),
    updated_at = $3
where id = $1::uuid
  and state = 'RUNNING'
  and (progress_percent is null or progress_percent < $2);
`

const QUpdateGenerationJobTerminal = `--sql f6f2bb4d-1394-42bb-80ef-facadc321b17
update generation_jobs
set state = $2,
    result_url = $3,
    error_code = $4,
    error_message = $5,
    updated_at = $6
where id = $1::uuid
  and state not in ('SUCCEEDED', 'FAILED', 'CANCELLED');
`

const QMarkGenerationJobCancelRequested = `--sql 9fa0bb17-d645-481a-999a-9967560b6ee2
update generation_jobs
set cancel_requested_at = coalesce(cancel_requested_at, $2)
where id = $1::uuid;
`

const QSelectActiveGenerationJobs = `--sql e8c9ced1-e23d-4cba-b325-f9d8664e95b8
select ` + generationJobColumns + `
from generation_jobs
where state = 'RUNNING'
  and coalesce(last_checked_at, updated_at) < $1
order by coalesce(last_checked_at, updated_at) asc, id
limit $2;
`

const QMarkGenerationJobChecked = `--sql 3c1f7a52-8e4b-4d19-a0c6-5b2e9d71f4a8
update generation_jobs
set last_checked_at = $2
where id = $1::uuid
  and state = 'RUNNING';
`

const QPingGenerationJobs = `--sql 81b65798-90f2-4054-a764-a7f084387982
select 1;
`
