package config

const (
	defaultSerialPort        = "/dev/ttyUSB0"
	defaultBaudRate          = 3000000
	defaultSampleRate        = 7812
	defaultSlaveID           = 1
	defaultChannels          = 3
	defaultFailureThreshold  = 5
	defaultReadTimeoutMillis = 1000

	defaultOutputDir           = "~/.local/share/wavedaq/recordings"
	defaultRotateSeconds       = 5
	defaultFlushIntervalMillis = 1000
	defaultQueueDepth          = 1000
	defaultMinFreeMiB          = 256

	defaultBufferSamples      = 4096
	defaultPushIntervalMillis = 500

	defaultLogDir    = "~/.local/share/wavedaq/logs"
	defaultAPIBind   = "127.0.0.1:8080"
	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		DAQ: DAQ{
			SerialPort:        defaultSerialPort,
			BaudRate:          defaultBaudRate,
			SampleRate:        defaultSampleRate,
			SlaveID:           defaultSlaveID,
			Channels:          defaultChannels,
			FailureThreshold:  defaultFailureThreshold,
			ReadTimeoutMillis: defaultReadTimeoutMillis,
		},
		Recording: Recording{
			OutputDir:           defaultOutputDir,
			RotateSeconds:       defaultRotateSeconds,
			FlushIntervalMillis: defaultFlushIntervalMillis,
			QueueDepth:          defaultQueueDepth,
			MinFreeMiB:          defaultMinFreeMiB,
		},
		LiveView: LiveView{
			BufferSamples:      defaultBufferSamples,
			PushIntervalMillis: defaultPushIntervalMillis,
		},
		Paths: Paths{
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
