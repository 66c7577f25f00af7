package repository

// Dialect selects the SQL flavour used by the repositories.  Only the
// upsert syntax differs between the supported engines.
type Dialect string

const (
	MySQL  Dialect = "mysql"
	SQLite Dialect = "sqlite3"
)

func (d Dialect) valid() bool { return d == MySQL || d == SQLite }

// insertIgnore returns an INSERT that leaves an existing row untouched.
// conflict names the key column(s) for SQLite; MySQL infers them.
func (d Dialect) insertIgnore(table, cols, placeholders, conflict, noopCol string) string {
	if d == MySQL {
		return "INSERT INTO " + table + " (" + cols + ") VALUES (" + placeholders + ") ON DUPLICATE KEY UPDATE " + noopCol + " = " + noopCol
	}
	return "INSERT INTO " + table + " (" + cols + ") VALUES (" + placeholders + ") ON CONFLICT(" + conflict + ") DO NOTHING"
}
