package config

type DatabaseConfig interface {
	GetDatabaseDriver() string
	GetDatabaseURL() string
}

type Database struct {
	file *fileConfig
}

var _ DatabaseConfig = Database{}

// GetDatabaseDriver returns "sqlite" (default, local development) or "pgx" (PostgreSQL)
func (d Database) GetDatabaseDriver() string {
	return GetEnv("DATABASE_DRIVER", fileString(d.file, func(f *fileConfig) string { return f.Database.Driver }, "sqlite"))
}

func (d Database) GetDatabaseURL() string {
	return GetEnv("DATABASE_URL", fileString(d.file, func(f *fileConfig) string { return f.Database.URL }, "./data/portal.db"))
}
