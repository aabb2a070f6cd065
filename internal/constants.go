package internal

const (
	DotEnvPath         = "./.env"
	MigrationsDir      = "migrations"
	DeployManifestPath = "./deploy.yml"
	SessionCookie      = "session"
	DBTimestampLayout  = "2006-01-02 15:04:05"
	DeployLogEvent     = "deploy-log"
	LogRetentionDays   = 90
)
