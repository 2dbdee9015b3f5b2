// journal/schema.go
package journal

const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	started DATETIME NOT NULL,
	ended DATETIME,
	user TEXT NOT NULL,
	server TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	client_order_id INTEGER NOT NULL,
	order_num INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	type TEXT NOT NULL,
	duration TEXT NOT NULL,
	status TEXT NOT NULL,
	completion TEXT NOT NULL,
	state TEXT NOT NULL,
	price REAL,
	trigger_price REAL,
	avg_fill_price REAL,
	qty INTEGER NOT NULL,
	exec_qty INTEGER NOT NULL,
	text TEXT NOT NULL,
	time DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS fills (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	client_order_id INTEGER NOT NULL,
	order_num INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	price REAL,
	qty INTEGER NOT NULL,
	avg_fill_price REAL,
	exec_qty INTEGER NOT NULL,
	time DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS pnl (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	time DATETIME NOT NULL,
	pnl REAL,
	realized REAL,
	unrealized REAL,
	balance REAL,
	quantity INTEGER NOT NULL,
	avg_price REAL
);

CREATE INDEX IF NOT EXISTS idx_orders_run ON orders(run_id, client_order_id);
CREATE INDEX IF NOT EXISTS idx_fills_run ON fills(run_id);
CREATE INDEX IF NOT EXISTS idx_pnl_run ON pnl(run_id, time);
`
