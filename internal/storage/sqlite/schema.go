package sqlite

const schemaDDL = `
CREATE TABLE IF NOT EXISTS watched_wallets (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_id  INTEGER NOT NULL,
	address  TEXT    NOT NULL,
	label    TEXT    NOT NULL DEFAULT '',
	added_at INTEGER NOT NULL,
	UNIQUE(chat_id, address)
);

CREATE TABLE IF NOT EXISTS trades (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_id        INTEGER NOT NULL,
	wallet_address TEXT    NOT NULL,
	tx_hash        TEXT    NOT NULL,
	timestamp      INTEGER NOT NULL,
	side           TEXT    NOT NULL,
	outcome        TEXT    NOT NULL DEFAULT '',
	question       TEXT    NOT NULL DEFAULT '',
	slug           TEXT    NOT NULL DEFAULT '',
	token_amount   REAL    NOT NULL DEFAULT 0,
	usdc_amount    REAL    NOT NULL DEFAULT 0,
	price          REAL    NOT NULL DEFAULT 0,
	created_at     INTEGER NOT NULL,
	UNIQUE(chat_id, wallet_address, tx_hash)
);

CREATE TABLE IF NOT EXISTS broadcasts (
	wallet_address TEXT    NOT NULL,
	tx_hash        TEXT    NOT NULL,
	created_at     INTEGER NOT NULL,
	PRIMARY KEY(wallet_address, tx_hash)
);

CREATE TABLE IF NOT EXISTS poll_cursor (
	key            TEXT PRIMARY KEY,
	last_timestamp INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS position_snapshots (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_id        INTEGER NOT NULL,
	wallet_address TEXT    NOT NULL,
	asset          TEXT    NOT NULL,
	condition_id   TEXT    NOT NULL DEFAULT '',
	size           REAL    NOT NULL DEFAULT 0,
	avg_price      REAL    NOT NULL DEFAULT 0,
	current_value  REAL    NOT NULL DEFAULT 0,
	cash_pnl       REAL    NOT NULL DEFAULT 0,
	percent_pnl    REAL    NOT NULL DEFAULT 0,
	cur_price      REAL    NOT NULL DEFAULT 0,
	outcome        TEXT    NOT NULL DEFAULT '',
	title          TEXT    NOT NULL DEFAULT '',
	fetched_at     INTEGER NOT NULL,
	UNIQUE(chat_id, wallet_address, asset)
);

CREATE INDEX IF NOT EXISTS idx_watched_address ON watched_wallets(address);
CREATE INDEX IF NOT EXISTS idx_trades_chat ON trades(chat_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_trades_tx ON trades(tx_hash, wallet_address);
CREATE INDEX IF NOT EXISTS idx_snapshots_pair ON position_snapshots(chat_id, wallet_address);
`
