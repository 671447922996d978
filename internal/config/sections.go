package config

import "time"

// APIConfig holds backend connection settings.
type APIConfig struct {
	ServerURL     string        `json:"serverUrl" mapstructure:"serverUrl"`
	ProbeURL      string        `json:"probeUrl" mapstructure:"probeUrl"`
	OperatorToken string        `json:"operatorToken" mapstructure:"operatorToken"`
	Timeout       time.Duration `json:"timeout" mapstructure:"timeout"`
}

// GetAPIConfig returns the api section.
func GetAPIConfig() APIConfig {
	return APIConfig{
		ServerURL:     GetString("api.serverUrl"),
		ProbeURL:      GetString("api.probeUrl"),
		OperatorToken: GetString("api.operatorToken"),
		Timeout:       GetDuration("api.timeout"),
	}
}

// PollConfig holds sync engine intervals and limits.
type PollConfig struct {
	TelemetryInterval time.Duration
	EventsInterval    time.Duration
	AutoInterval      time.Duration
	TelemetryLimit    int
	EventsLimit       int
}

func GetPollConfig() PollConfig {
	return PollConfig{
		TelemetryInterval: GetDuration("poll.telemetryInterval"),
		EventsInterval:    GetDuration("poll.eventsInterval"),
		AutoInterval:      GetDuration("poll.autoInterval"),
		TelemetryLimit:    GetInt("poll.telemetryLimit"),
		EventsLimit:       GetInt("poll.eventsLimit"),
	}
}

// RecorderConfig holds flight log settings.
type RecorderConfig struct {
	Enabled       bool
	Driver        string // "sqlite" or "postgres"
	Path          string // sqlite file
	DSN           string // postgres DSN
	FlushInterval time.Duration
}

func GetRecorderConfig() RecorderConfig {
	return RecorderConfig{
		Enabled:       GetBool("recorder.enabled"),
		Driver:        GetString("recorder.driver"),
		Path:          GetString("recorder.path"),
		DSN:           GetString("recorder.dsn"),
		FlushInterval: GetDuration("recorder.flushInterval"),
	}
}

// InfluxConfig holds telemetry export settings.
type InfluxConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Protocol string
	Token    string
	Org      string
	Bucket   string
}

func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  GetBool("influx.enabled"),
		Host:     GetString("influx.host"),
		Port:     GetString("influx.port"),
		Protocol: GetString("influx.protocol"),
		Token:    GetString("influx.token"),
		Org:      GetString("influx.org"),
		Bucket:   GetString("influx.bucket"),
	}
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      GetBool("otel.enabled"),
		ServiceName:  GetString("otel.serviceName"),
		BatchTimeout: GetDuration("otel.batchTimeout"),
		Endpoint:     GetString("otel.endpoint"),
		Insecure:     GetBool("otel.insecure"),
	}
}

// MirrorConfig holds the side server settings.
type MirrorConfig struct {
	Enabled bool
	Address string
}

func GetMirrorConfig() MirrorConfig {
	return MirrorConfig{
		Enabled: GetBool("mirror.enabled"),
		Address: GetString("mirror.address"),
	}
}

// MonitorConfig holds the status file settings. An empty StatusFile
// disables the monitor.
type MonitorConfig struct {
	StatusFile string
	Interval   time.Duration
}

func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		StatusFile: GetString("monitor.statusFile"),
		Interval:   GetDuration("monitor.interval"),
	}
}
