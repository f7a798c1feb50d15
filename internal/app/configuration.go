package app

import (
	"github.com/myrteametrics/myrtea-sdk/v5/helpers"
)

// ConfigPath is the toml configuration file path
var ConfigPath = "config"

// ConfigName is the toml configuration file name
var ConfigName = "rules-engine"

// EnvPrefix is the standard environment variable prefix
var EnvPrefix = "RULES"

// AllowedConfigKey list every allowed configuration key
var AllowedConfigKey = [][]helpers.ConfigKey{
	helpers.GetGeneralConfigKeys(),
	helpers.GetHTTPServerConfigKeys(),
	helpers.GetPostgresqlConfigKeys(),
	{
		{Type: helpers.StringFlag, Name: "POSTGRESQL_CONN_POOL_MAX_OPEN", DefaultValue: "6", Description: "PostgreSQL connection pool max open"},
		{Type: helpers.StringFlag, Name: "POSTGRESQL_CONN_POOL_MAX_IDLE", DefaultValue: "3", Description: "PostgreSQL connection pool max idle"},
		{Type: helpers.StringFlag, Name: "POSTGRESQL_CONN_MAX_LIFETIME", DefaultValue: "0", Description: "PostgreSQL connection max lifetime"},
		{Type: helpers.StringFlag, Name: "POSTGRESQL_MIGRATION_ON_STARTUP", DefaultValue: "true", Description: "Run migrations on startup"},
		{Type: helpers.StringFlag, Name: "POSTGRESQL_SSLMODE", DefaultValue: "disable", Description: "PostgreSQL sslmode of the rule change listener connection"},
	},
	// Rule engine
	{
		{Type: helpers.StringFlag, Name: "ENGINE_EXECUTION_TIMEOUT", DefaultValue: "5s", Description: "Maximum duration of a single rule engine execution"},
		{Type: helpers.StringFlag, Name: "ENGINE_AUDIT_ASYNC", DefaultValue: "true", Description: "Write execution records from a background worker"},
		{Type: helpers.StringFlag, Name: "ENGINE_AUDIT_QUEUE_SIZE", DefaultValue: "1024", Description: "Execution records buffered before Execute waits for the audit worker"},
		{Type: helpers.StringFlag, Name: "ENGINE_RULES_NOTIFY_CHANNEL", DefaultValue: "rules_changed", Description: "PostgreSQL NOTIFY channel used to invalidate the rule cache of every instance"},
		{Type: helpers.StringFlag, Name: "ENGINE_RULES_RESYNC_CRON", DefaultValue: "@every 5m", Description: "Cron spec of the periodic rule cache invalidation (empty to disable)"},
		{Type: helpers.StringFlag, Name: "ENGINE_CATALOG_PATH", DefaultValue: "", Description: "YAML or JSON rule pack published on startup"},
		{Type: helpers.StringFlag, Name: "ENGINE_SEED_VAT_CATALOG", DefaultValue: "true", Description: "Publish the VAT rule pack and lookup tables on startup"},
	},
	{
		{Type: helpers.StringFlag, Name: "HTTP_SERVER_API_ENABLE_VERBOSE_ERROR", DefaultValue: "false", Description: "Run the API with verbose error"},
	},
}

// InitConfiguration loads the configuration file, the environment and the flags
func InitConfiguration() {
	helpers.InitializeConfig(AllowedConfigKey, ConfigName, ConfigPath, EnvPrefix)
}
