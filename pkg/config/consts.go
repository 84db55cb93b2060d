package config

const (
	// EnvPrefix is passed to envconfig; individual fields carry fully
	// prefixed names so the prefix itself stays empty.
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv = "GROCERYLEDGER_APP_ENV"
	EnvPort   = "GROCERYLEDGER_APP_PORT"

	EnvDBDSN  = "GROCERYLEDGER_DB_DSN"
	EnvDBHost = "GROCERYLEDGER_DB_HOST"
	EnvDBUser = "GROCERYLEDGER_DB_USER"
	EnvDBName = "GROCERYLEDGER_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
