package config

// EnvPrefix is the envconfig prefix shared by every binary.
const EnvPrefix = "RESQLINK"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "RESQLINK_DB_DSN"
	EnvDBHost = "RESQLINK_DB_HOST"
	EnvDBUser = "RESQLINK_DB_USER"
	EnvDBName = "RESQLINK_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
