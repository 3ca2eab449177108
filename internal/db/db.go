package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Open opens the SQLite database at path. ":memory:" is fine for tests because
// the pool is pinned to one connection.
func Open(path string) (*sqlx.DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	// pragmas are per connection; the pool never holds more than this one
	if _, err := sqlDB.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return sqlx.NewDb(sqlDB, "sqlite"), nil
}

// Now is the clock every store writes with: UTC, whole seconds.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

// Migrate creates missing tables and seeds lookup data. It is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, s := range schema {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	for _, c := range seedCities {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO cities(name, district, region)
			 SELECT ?, '', '' WHERE NOT EXISTS (SELECT 1 FROM cities WHERE name = ?)`, c, c); err != nil {
			return fmt.Errorf("seed city %s: %w", c, err)
		}
	}
	return nil
}

var seedCities = []string{
	"Bratislava", "Košice", "Prešov", "Žilina", "Nitra",
	"Trnava", "Banská Bystrica", "Trenčín", "Martin", "Poprad",
}

var schema = []string{
	`PRAGMA foreign_keys = ON;`,
	`CREATE TABLE IF NOT EXISTS users(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		instrument TEXT NOT NULL DEFAULT '',
		secondary_instrument TEXT NOT NULL DEFAULT '',
		bio TEXT NOT NULL DEFAULT '',
		town TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		active BOOLEAN NOT NULL DEFAULT 1,
		profile_photo TEXT NOT NULL DEFAULT '',
		plan TEXT NOT NULL DEFAULT 'free',
		account_type TEXT NOT NULL DEFAULT 'individual',
		organization_name TEXT NOT NULL DEFAULT '',
		searchable BOOLEAN NOT NULL DEFAULT 0,
		is_admin BOOLEAN NOT NULL DEFAULT 0,
		is_moderator BOOLEAN NOT NULL DEFAULT 0,
		is_vip BOOLEAN NOT NULL DEFAULT 0,
		billing_exempt BOOLEAN NOT NULL DEFAULT 0,
		is_deleted BOOLEAN NOT NULL DEFAULT 0,
		strikes_count INTEGER NOT NULL DEFAULT 0,
		banned_until DATETIME,
		banned_reason TEXT NOT NULL DEFAULT '',
		public_account BOOLEAN NOT NULL DEFAULT 1,
		allow_rating BOOLEAN NOT NULL DEFAULT 1,
		theme TEXT NOT NULL DEFAULT 'system',
		follow_mode TEXT NOT NULL DEFAULT 'all',
		follow_genres TEXT NOT NULL DEFAULT '',
		follow_entities TEXT NOT NULL DEFAULT '',
		rating_count INTEGER,
		rating_sum INTEGER NOT NULL DEFAULT 0,
		rating_avg REAL NOT NULL DEFAULT 0,
		rating_bayes REAL NOT NULL DEFAULT 0,
		erase_token TEXT NOT NULL DEFAULT '',
		erase_requested_at DATETIME,
		erase_deadline_at DATETIME,
		erase_feedback TEXT NOT NULL DEFAULT ''
	);`,
	`CREATE TABLE IF NOT EXISTS sessions(
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		expires_at DATETIME NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS cities(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		district TEXT NOT NULL DEFAULT '',
		region TEXT NOT NULL DEFAULT ''
	);`,
	`CREATE TABLE IF NOT EXISTS classifieds(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		city_id INTEGER REFERENCES cities(id) ON DELETE SET NULL,
		transport TEXT NOT NULL DEFAULT '',
		price REAL NOT NULL DEFAULT 0,
		description TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS classified_photos(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_name TEXT NOT NULL,
		classified_id INTEGER NOT NULL REFERENCES classifieds(id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS requests(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		event_type TEXT NOT NULL DEFAULT '',
		place TEXT NOT NULL DEFAULT '',
		event_date TEXT NOT NULL DEFAULT '',
		time_from TEXT NOT NULL DEFAULT '',
		time_to TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		budget REAL,
		user_id INTEGER REFERENCES users(id) ON DELETE SET NULL,
		active BOOLEAN NOT NULL DEFAULT 1,
		deleted_at DATETIME,
		created_at DATETIME NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS groups(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		genre TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		web TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		photo TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		founder_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS group_members(
		group_id INTEGER NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		PRIMARY KEY(group_id, user_id)
	);`,
	`CREATE TABLE IF NOT EXISTS group_invites(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		token TEXT UNIQUE NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at DATETIME NOT NULL,
		expires_at DATETIME,
		group_id INTEGER NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
		invitee_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		inviter_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS user_photos(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_name TEXT NOT NULL,
		owner_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS user_videos(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		youtube_url TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		owner_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS group_photos(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_name TEXT NOT NULL,
		owner_id INTEGER NOT NULL REFERENCES groups(id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS group_videos(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		youtube_url TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		owner_id INTEGER NOT NULL REFERENCES groups(id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS calendar_events(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		event_date TEXT NOT NULL,
		time_from TEXT NOT NULL DEFAULT '',
		time_to TEXT NOT NULL DEFAULT '',
		place TEXT NOT NULL DEFAULT '',
		note TEXT NOT NULL DEFAULT '',
		all_day BOOLEAN NOT NULL DEFAULT 0,
		user_id INTEGER REFERENCES users(id) ON DELETE CASCADE,
		group_id INTEGER REFERENCES groups(id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS messages(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		body TEXT NOT NULL,
		from_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		to_id INTEGER REFERENCES users(id) ON DELETE CASCADE,
		to_email TEXT NOT NULL DEFAULT '',
		classified_id INTEGER REFERENCES classifieds(id) ON DELETE SET NULL,
		request_id INTEGER REFERENCES requests(id) ON DELETE SET NULL,
		created_at DATETIME NOT NULL,
		is_read BOOLEAN NOT NULL DEFAULT 0,
		deleted_by_recipient BOOLEAN NOT NULL DEFAULT 0,
		held BOOLEAN NOT NULL DEFAULT 0
	);`,
	`CREATE TABLE IF NOT EXISTS forum_categories(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS forum_topics(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		author_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		category_id INTEGER NOT NULL REFERENCES forum_categories(id),
		created_at DATETIME NOT NULL,
		activity_at DATETIME NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS forum_posts(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		body TEXT NOT NULL,
		author_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		topic_id INTEGER NOT NULL REFERENCES forum_topics(id) ON DELETE CASCADE,
		created_at DATETIME NOT NULL,
		is_answer BOOLEAN NOT NULL DEFAULT 0
	);`,
	`CREATE TABLE IF NOT EXISTS topic_watches(
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		topic_id INTEGER NOT NULL REFERENCES forum_topics(id) ON DELETE CASCADE,
		PRIMARY KEY(user_id, topic_id)
	);`,
	`CREATE TABLE IF NOT EXISTS forum_notifications(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		topic_id INTEGER NOT NULL REFERENCES forum_topics(id) ON DELETE CASCADE,
		post_id INTEGER NOT NULL REFERENCES forum_posts(id) ON DELETE CASCADE,
		reason TEXT NOT NULL DEFAULT 'reply',
		created_at DATETIME NOT NULL,
		read_at DATETIME
	);`,
	`CREATE INDEX IF NOT EXISTS ix_forum_notifications_user ON forum_notifications(user_id, read_at);`,
	`CREATE TABLE IF NOT EXISTS quick_requests(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		text TEXT NOT NULL,
		city_id INTEGER REFERENCES cities(id) ON DELETE SET NULL,
		author_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at DATETIME NOT NULL,
		valid_until DATETIME NOT NULL,
		active BOOLEAN NOT NULL DEFAULT 1,
		archived_at DATETIME
	);`,
	`CREATE TABLE IF NOT EXISTS reports(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		reporter_id INTEGER REFERENCES users(id) ON DELETE SET NULL,
		entity_type TEXT NOT NULL,
		entity_id INTEGER NOT NULL,
		reason TEXT NOT NULL DEFAULT 'ine',
		details TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'open',
		created_at DATETIME NOT NULL,
		resolved_at DATETIME,
		resolved_by INTEGER REFERENCES users(id) ON DELETE SET NULL,
		resolution_note TEXT NOT NULL DEFAULT ''
	);`,
	`CREATE TABLE IF NOT EXISTS moderation_logs(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		actor_id INTEGER NOT NULL,
		action TEXT NOT NULL,
		target_type TEXT NOT NULL,
		target_id INTEGER NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS ads(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		text TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		start_at DATETIME NOT NULL,
		end_at DATETIME,
		is_top BOOLEAN NOT NULL DEFAULT 0,
		photo TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS ad_reports(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ad_id INTEGER NOT NULL REFERENCES ads(id) ON DELETE CASCADE,
		reporter_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		reason TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		handled BOOLEAN NOT NULL DEFAULT 0,
		handled_by INTEGER,
		handled_at DATETIME,
		action TEXT NOT NULL DEFAULT ''
	);`,
	`CREATE TABLE IF NOT EXISTS events(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		organizer TEXT NOT NULL DEFAULT '',
		place TEXT NOT NULL DEFAULT '',
		start_at DATETIME NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		photo TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS user_ratings(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ratee_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		rater_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		recommend BOOLEAN NOT NULL DEFAULT 0,
		stars INTEGER CHECK(stars IS NULL OR stars BETWEEN 1 AND 5),
		category_key TEXT NOT NULL DEFAULT '',
		note TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active' CHECK(status IN ('active','removed')),
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE(rater_id, ratee_id)
	);`,
	`CREATE INDEX IF NOT EXISTS ix_user_ratings_ratee ON user_ratings(ratee_id, status);`,
	`INSERT OR IGNORE INTO forum_categories(id, name) VALUES
		(1,'Všeobecné'),(2,'Nástroje a technika'),(3,'Hľadám kapelu'),(4,'Koncerty');`,
}
