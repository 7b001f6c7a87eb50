// Package scpi holds the instrument command vocabulary and the parser for
// raw instrument response lines.
package scpi

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/testbench/inspection-agent/internal/models"
	srvErrors "github.com/testbench/inspection-agent/pkg/errors"
)

// Common commands understood by the bench instruments. Lines are terminated
// with LF, encoded UTF-8.
const (
	CmdIdentify    = "*IDN?"
	CmdReset       = "*RST"
	CmdStatus      = "STAT?"
	CmdSystemError = "SYST:ERR?"
	CmdInitiate    = "INIT"
	CmdAbort       = "ABORT"

	CmdDielectricTest = "MANU:ACW:TEST"
	CmdInsulationTest = "MANU:IR:TEST"
	CmdGroundBondTest = "MANU:GB:TEST"

	CmdDielectricResult = "RESULT:ACW?"
	CmdInsulationResult = "RESULT:IR?"
	CmdGroundBondResult = "RESULT:GB?"
)

// unit suffix per expected test kind. The suffix is used only to strip the
// measured-value field; it is not cross-validated against the embedded unit.
var unitByKind = map[models.TestKind]string{
	models.TestKindPower:      "W",
	models.TestKindDielectric: "mA",
	models.TestKindInsulation: "MΩ",
	models.TestKindGroundBond: "Ω",
}

// Unit returns the unit suffix expected for a test kind.
func Unit(kind models.TestKind) string {
	return unitByKind[kind]
}

// TestCommand returns the command that executes a test and returns its
// result line in the same round trip.
func TestCommand(kind models.TestKind) (string, error) {
	switch kind {
	case models.TestKindDielectric:
		return CmdDielectricTest, nil
	case models.TestKindInsulation:
		return CmdInsulationTest, nil
	case models.TestKindGroundBond:
		return CmdGroundBondTest, nil
	default:
		return "", fmt.Errorf("no test command for kind %s", kind)
	}
}

const resultFieldCount = 5

// Parse converts a raw instrument response into a typed reading. The
// expected format is a fixed 5-field record:
//
//	<testKind>,<sourceLevel>,<measuredValue+unit>,<limitValue+unit>,<verdictToken>
//
// A record with fewer fields returns the zero FAIL reading together with a
// ParseError; callers surface it as a failed reading rather than aborting.
// An unparseable numeric value becomes 0 with verdict FAIL, never an error:
// the state machine must keep making progress on garbled lines.
func Parse(raw string, kind models.TestKind) (models.Reading, error) {
	reading := models.Reading{
		Unit:      unitByKind[kind],
		Timestamp: time.Now(),
		Verdict:   models.VerdictFail,
	}

	fields := strings.Split(strings.TrimSpace(raw), ",")
	if len(fields) < resultFieldCount {
		return reading, srvErrors.NewMalformedResponseError(raw)
	}

	value := strings.TrimSuffix(strings.TrimSpace(fields[2]), unitByKind[kind])
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		// garbled number: report 0/FAIL and keep going
		return reading, nil
	}
	reading.Value = v

	// case-sensitive: anything but the literal PASS is a failure. The
	// parser never emits PENDING.
	if strings.TrimSpace(fields[4]) == "PASS" {
		reading.Verdict = models.VerdictPass
	}

	return reading, nil
}

// Identity is the parsed *IDN? banner.
type Identity struct {
	Manufacturer string
	Model        string
	SerialNumber string
	Firmware     string
}

// ParseIdentity splits the Manufacturer,Model,Serial,Firmware banner.
func ParseIdentity(raw string) (Identity, error) {
	parts := strings.Split(strings.TrimSpace(raw), ",")
	if len(parts) < 4 {
		return Identity{}, srvErrors.NewMalformedResponseError(raw)
	}
	return Identity{
		Manufacturer: strings.TrimSpace(parts[0]),
		Model:        strings.TrimSpace(parts[1]),
		SerialNumber: strings.TrimSpace(parts[2]),
		Firmware:     strings.TrimSpace(parts[3]),
	}, nil
}

// IsErrorLine reports whether a response is an instrument error of the form
// ERR,<code>,"<message>".
func IsErrorLine(raw string) (code int, message string, ok bool) {
	line := strings.TrimSpace(raw)
	if !strings.HasPrefix(line, "ERR,") {
		return 0, "", false
	}
	parts := strings.SplitN(line, ",", 3)
	if len(parts) != 3 {
		return 0, "", false
	}
	c, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, "", false
	}
	return c, strings.Trim(strings.TrimSpace(parts[2]), `"`), true
}
