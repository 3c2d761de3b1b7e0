package config

const (
	defaultScratchDir          = "~/.local/share/docgate/scratch"
	defaultLogDir              = "~/.local/share/docgate/logs"
	defaultScratchSweepMinutes = 60
	defaultListen              = "127.0.0.1:8080"
	defaultShutdownTimeout     = 30
	defaultWriteTimeout        = 300
	defaultOfficePort          = 2002
	defaultOfficePoolSize      = 1
	defaultOfficeTaskTimeout   = 120
	defaultOfficeQueueTimeout  = 30
	defaultOfficeStartTimeout  = 60
	defaultLogFormat           = "auto"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
//
// FileUpload.FileSizeMax stays zero: uploads are unbounded until an operator
// sets a cap, and the server warns about that at start.
func Default() Config {
	return Config{
		Paths: Paths{
			ScratchDir:          defaultScratchDir,
			LogDir:              defaultLogDir,
			ScratchSweepMinutes: defaultScratchSweepMinutes,
		},
		Server: Server{
			Listen:          defaultListen,
			ShutdownTimeout: defaultShutdownTimeout,
			WriteTimeout:    defaultWriteTimeout,
		},
		Office: Office{
			Port:         defaultOfficePort,
			PoolSize:     defaultOfficePoolSize,
			TaskTimeout:  defaultOfficeTaskTimeout,
			QueueTimeout: defaultOfficeQueueTimeout,
			StartTimeout: defaultOfficeStartTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
