// Package config carries the agent's runtime configuration. Values are
// populated from defaults, then environment variables, then CLI flags.
package config

import "time"

//go:generate go run github.com/ecordell/optgen -output zz_generated.options.go . Configuration

// Server configures the HTTP API surface.
type Server struct {
	HTTPPort      int    `default:"8000" yaml:"httpPort"`
	StaticsFolder string `yaml:"staticsFolder"`
	ServerMode    string `default:"dev" yaml:"serverMode"`
}

// Agent configures the inspection engine itself.
type Agent struct {
	ID              string        `yaml:"id"`
	NumWorkers      int           `default:"3" yaml:"numWorkers"`
	PhaseCapacity   int           `default:"100" yaml:"phaseCapacity"`
	MergedCapacity  int           `default:"300" yaml:"mergedCapacity"`
	ResultsCapacity int           `default:"50" yaml:"resultsCapacity"`
	SettleDelay     time.Duration `default:"500ms" yaml:"settleDelay"`
}

// Driver configures the connection to the instrument driver backend.
type Driver struct {
	URL            string        `default:"http://localhost:7070" yaml:"url"`
	StreamURL      string        `default:"ws://localhost:7070/api/v1/events/ws" yaml:"streamUrl"`
	SafetyTesterID string        `default:"safety_tester" yaml:"safetyTesterId"`
	DialAttempts   int           `default:"5" yaml:"dialAttempts"`
	DialInterval   time.Duration `default:"1s" yaml:"dialInterval"`
}

// Serial configures the optional direct RS-232 transport. When enabled the
// safety path talks to the tester over this port instead of the driver
// backend.
type Serial struct {
	Enabled  bool   `yaml:"enabled"`
	Port     string `default:"/dev/ttyUSB0" yaml:"port"`
	BaudRate int    `default:"9600" yaml:"baudRate"`
}

type Configuration struct {
	Server Server `yaml:"server"`
	Agent  Agent  `yaml:"agent"`
	Driver Driver `yaml:"driver"`
	Serial Serial `yaml:"serial"`
}
