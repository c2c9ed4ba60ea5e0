package db

// Schema is the DDL for the tables read by the discovery stores.
// Writes to these tables happen in the CRUD service and the geo backfill job.
const Schema = `
CREATE EXTENSION IF NOT EXISTS pgcrypto;

CREATE TABLE IF NOT EXISTS profiles (
	id           TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	bio          TEXT NOT NULL DEFAULT '',
	avatar_url   TEXT NOT NULL DEFAULT '',
	is_public    BOOLEAN NOT NULL DEFAULT TRUE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_profiles_public_recent
	ON profiles (created_at DESC, id DESC) WHERE is_public;

CREATE TABLE IF NOT EXISTS posts (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	author_id  TEXT NOT NULL,
	body       TEXT NOT NULL DEFAULT '',
	category   TEXT,
	place_id   TEXT,
	visit_date DATE,
	score      DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (score >= 0 AND score <= 10),
	price_min  INTEGER,
	price_max  INTEGER,
	labels     TEXT[] NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	deleted_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_posts_recent ON posts (created_at DESC, id DESC) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_posts_author ON posts (author_id, created_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_posts_place ON posts (place_id, created_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_posts_category ON posts (category);

CREATE TABLE IF NOT EXISTS follows (
	follower_id TEXT NOT NULL,
	followee_id TEXT NOT NULL,
	status      TEXT NOT NULL CHECK (status IN ('pending', 'accepted')),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (follower_id, followee_id)
);

CREATE INDEX IF NOT EXISTS idx_follows_accepted ON follows (follower_id) WHERE status = 'accepted';

CREATE TABLE IF NOT EXISTS places (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	lat  DOUBLE PRECISION,
	lng  DOUBLE PRECISION
);

CREATE TABLE IF NOT EXISTS landmarks (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	lat  DOUBLE PRECISION NOT NULL,
	lng  DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS place_landmark_links (
	place_id        TEXT NOT NULL,
	landmark_id     TEXT NOT NULL,
	distance_meters DOUBLE PRECISION,
	rank            INTEGER NOT NULL,
	PRIMARY KEY (place_id, landmark_id)
);

CREATE INDEX IF NOT EXISTS idx_place_landmark_links_landmark ON place_landmark_links (landmark_id);
`
