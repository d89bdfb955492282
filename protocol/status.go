package protocol

import (
	"strconv"
	"strings"

	"stepjog/core"
	"stepjog/motion"
)

// InfoKeyword starts the response to an info request
const InfoKeyword = "backend"

// FormatBackendInfo renders a backend description as a response line
func FormatBackendInfo(info core.StepperBackendInfo) string {
	name := info.Name
	if name == "" {
		name = "unknown"
	}
	dst := make([]byte, 0, 96)
	dst = append(dst, InfoKeyword...)
	dst = append(dst, " name="...)
	dst = append(dst, name...)
	dst = append(dst, " max_rate="...)
	dst = strconv.AppendUint(dst, uint64(info.MaxStepRate), 10)
	dst = append(dst, " min_pulse_ns="...)
	dst = strconv.AppendUint(dst, uint64(info.MinPulseNs), 10)
	dst = append(dst, " jitter_ns="...)
	dst = strconv.AppendUint(dst, uint64(info.TypicalJitter), 10)
	dst = append(dst, " cpu="...)
	dst = strconv.AppendUint(dst, uint64(info.CPUOverhead), 10)
	return string(dst)
}

// Status is the payload of a status line
type Status struct {
	Position int64   // steps
	Units    float64 // position in user units
	Running  bool
	State    motion.State
	Speed    float64 // steps/s, signed
	Tier     int
}

// NewStatus builds a Status from a telemetry snapshot
func NewStatus(s motion.Snapshot, scale motion.Scale, tier int) Status {
	return Status{
		Position: s.Position,
		Units:    scale.ToUnits(s.Position),
		Running:  s.Running,
		State:    s.State,
		Speed:    s.Speed,
		Tier:     tier,
	}
}

// AppendStatus appends the status line for s, checksum included, without
// a line terminator
func AppendStatus(dst []byte, s Status) []byte {
	start := len(dst)
	dst = append(dst, StatusKeyword...)
	dst = append(dst, " pos="...)
	dst = strconv.AppendInt(dst, s.Position, 10)
	dst = append(dst, " units="...)
	dst = strconv.AppendFloat(dst, s.Units, 'f', 5, 64)
	dst = append(dst, " running="...)
	dst = strconv.AppendBool(dst, s.Running)
	dst = append(dst, " state="...)
	dst = append(dst, s.State.String()...)
	dst = append(dst, " speed="...)
	dst = strconv.AppendFloat(dst, s.Speed, 'f', 1, 64)
	dst = append(dst, " tier="...)
	dst = strconv.AppendInt(dst, int64(s.Tier), 10)

	crc := CRC16(dst[start:])
	dst = append(dst, ChecksumMarker)
	return appendHex16(dst, crc)
}

// FormatStatus renders s as a status line
func FormatStatus(s Status) string {
	return string(AppendStatus(make([]byte, 0, 96), s))
}

// IsStatus reports whether line looks like a status line
func IsStatus(line string) bool {
	return strings.HasPrefix(line, StatusKeyword+" ")
}

// ParseStatus verifies the checksum of a status line and decodes it
func ParseStatus(line string) (Status, error) {
	line = strings.TrimRight(line, "\r\n")
	star := strings.LastIndexByte(line, ChecksumMarker)
	if star < 0 || !IsStatus(line) {
		return Status{}, ErrMalformedStatus
	}
	payload := line[:star]
	want, ok := parseHex16(line[star+1:])
	if !ok {
		return Status{}, ErrMalformedStatus
	}
	if Checksum(payload) != want {
		return Status{}, ErrChecksum
	}

	var s Status
	seen := 0
	for _, field := range strings.Fields(payload[len(StatusKeyword):]) {
		key, value, found := strings.Cut(field, "=")
		if !found {
			return Status{}, ErrMalformedStatus
		}
		var err error
		switch key {
		case "pos":
			s.Position, err = strconv.ParseInt(value, 10, 64)
		case "units":
			s.Units, err = strconv.ParseFloat(value, 64)
		case "running":
			s.Running, err = strconv.ParseBool(value)
		case "state":
			var known bool
			if s.State, known = motion.ParseState(value); !known {
				err = ErrMalformedStatus
			}
		case "speed":
			s.Speed, err = strconv.ParseFloat(value, 64)
		case "tier":
			s.Tier, err = strconv.Atoi(value)
		default:
			// Newer firmware may add fields
			continue
		}
		if err != nil {
			return Status{}, ErrMalformedStatus
		}
		seen++
	}
	if seen != 6 {
		return Status{}, ErrMalformedStatus
	}
	return s, nil
}
