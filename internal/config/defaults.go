package config

const (
	defaultConfigPath            = "~/.config/castkeep/config.toml"
	defaultDataDir               = "~/.local/share/castkeep"
	defaultDatabaseName          = "castkeep.db"
	defaultScratchDirName        = "enclosures"
	defaultFeedCacheDirName      = "feeds"
	defaultLogDirName            = "logs"
	defaultDownloadDir           = "~/podcasts"
	defaultNamingPattern         = "%(safecasttitle)s/%(safefilename)s"
	defaultFailDays              = 21
	defaultFailAttempts          = 15
	defaultRenameTypes           = "audio/mpeg:.mp3,audio/mp3:.mp3,x-audio/mp3:.mp3"
	defaultPostProcessTypes      = "audio/mpeg,audio/mp3,x-audio/mp3"
	defaultClassifyCommand       = `file -b -i "${EPFILENAME}"`
	defaultNetworkTimeoutSeconds = 60
	defaultStallTimeoutSeconds   = 120
	defaultUserAgent             = "castkeep/1.0"
	defaultCommandTimeoutSeconds = 300
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 30
	dataDirEnv                   = "CASTKEEP_DATA_DIR"
)

// Default returns a Config populated with repository defaults. Paths derived
// from the data directory are filled in by normalize.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
		},
		Defaults: Defaults{
			DownloadDir:              defaultDownloadDir,
			NamingPattern:            defaultNamingPattern,
			SubscriptionFailDays:     defaultFailDays,
			SubscriptionFailAttempts: defaultFailAttempts,
			EpisodeFailDays:          defaultFailDays,
			EpisodeFailAttempts:      defaultFailAttempts,
			RenameTypes:              defaultRenameTypes,
			PostProcessTypes:         defaultPostProcessTypes,
			ClassifyCommand:          defaultClassifyCommand,
		},
		Network: Network{
			TimeoutSeconds:      defaultNetworkTimeoutSeconds,
			StallTimeoutSeconds: defaultStallTimeoutSeconds,
			UserAgent:           defaultUserAgent,
		},
		Commands: Commands{
			TimeoutSeconds: defaultCommandTimeoutSeconds,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
