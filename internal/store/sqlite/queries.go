package sqlite

const querySchema = `
CREATE TABLE IF NOT EXISTS jobs (
	name            TEXT PRIMARY KEY,
	cron_expression TEXT NOT NULL,
	source_type     TEXT NOT NULL,
	location        TEXT NOT NULL,
	format          TEXT NOT NULL DEFAULT '',
	transform       TEXT NOT NULL,
	recipients      TEXT NOT NULL,
	created_at      TEXT NOT NULL,
	last_run        TEXT
);
`

const queryInsertJob = `
INSERT INTO jobs (name, cron_expression, source_type, location, format, transform, recipients, created_at, last_run)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const queryUpdateJob = `
UPDATE jobs
SET cron_expression = ?, source_type = ?, location = ?, format = ?, transform = ?, recipients = ?, last_run = ?
WHERE name = ?
`

const querySetLastRun = `
UPDATE jobs SET last_run = ? WHERE name = ?
`

const queryGetJob = `
SELECT name, cron_expression, source_type, location, format, transform, recipients, created_at, last_run
FROM jobs
WHERE name = ?
`

const queryListJobs = `
SELECT name, cron_expression, source_type, location, format, transform, recipients, created_at, last_run
FROM jobs
ORDER BY name
`

const queryDeleteJob = `
DELETE FROM jobs WHERE name = ?
`
