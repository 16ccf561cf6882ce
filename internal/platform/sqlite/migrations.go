package sqlite

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations are applied in order, each in its own transaction. Versions
// must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS notification (
	id                TEXT PRIMARY KEY,
	recipient_user_id TEXT NOT NULL,
	title             TEXT NOT NULL,
	message           TEXT NOT NULL DEFAULT '',
	category          TEXT NOT NULL,
	is_read           INTEGER NOT NULL DEFAULT 0,
	created_at        TEXT NOT NULL,
	payload           TEXT
);

CREATE INDEX IF NOT EXISTS idx_notification_recipient
	ON notification(recipient_user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_notification_unread
	ON notification(recipient_user_id) WHERE is_read = 0;
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS reminder_schedule (
	id              TEXT PRIMARY KEY,
	patient_id      TEXT NOT NULL,
	prescription_id TEXT,
	medication_name TEXT NOT NULL,
	dosage          TEXT NOT NULL DEFAULT '',
	frequency       TEXT NOT NULL,
	start_date      TEXT NOT NULL,
	end_date        TEXT,
	time_of_day     TEXT NOT NULL DEFAULT '[]',
	days_of_week    TEXT NOT NULL DEFAULT '[]',
	is_active       INTEGER NOT NULL DEFAULT 1,
	instructions    TEXT NOT NULL DEFAULT '',
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reminder_schedule_patient
	ON reminder_schedule(patient_id);
CREATE INDEX IF NOT EXISTS idx_reminder_schedule_active
	ON reminder_schedule(is_active, start_date);
`,
	},
	{
		version: 3,
		sql: `
CREATE TABLE IF NOT EXISTS app_user (
	id    TEXT PRIMARY KEY,
	email TEXT
);

CREATE TABLE IF NOT EXISTS patient (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	first_name TEXT NOT NULL DEFAULT '',
	last_name  TEXT NOT NULL DEFAULT '',
	email      TEXT
);

CREATE TABLE IF NOT EXISTS doctor (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	first_name TEXT NOT NULL DEFAULT '',
	last_name  TEXT NOT NULL DEFAULT '',
	email      TEXT
);

CREATE TABLE IF NOT EXISTS appointment (
	id           TEXT PRIMARY KEY,
	patient_id   TEXT NOT NULL REFERENCES patient(id),
	doctor_id    TEXT NOT NULL REFERENCES doctor(id),
	scheduled_at TEXT NOT NULL,
	status       TEXT NOT NULL,
	reason       TEXT
);

CREATE TABLE IF NOT EXISTS prescription (
	id         TEXT PRIMARY KEY,
	patient_id TEXT NOT NULL REFERENCES patient(id),
	doctor_id  TEXT REFERENCES doctor(id),
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS prescription_item (
	prescription_id TEXT NOT NULL REFERENCES prescription(id) ON DELETE CASCADE,
	position        INTEGER NOT NULL,
	medication_name TEXT NOT NULL,
	dosage          TEXT NOT NULL DEFAULT '',
	frequency       TEXT NOT NULL DEFAULT '',
	time_of_day     TEXT NOT NULL DEFAULT '[]',
	days_of_week    TEXT NOT NULL DEFAULT '[]',
	start_date      TEXT NOT NULL,
	end_date        TEXT,
	instructions    TEXT,
	PRIMARY KEY (prescription_id, position)
);
`,
	},
}
