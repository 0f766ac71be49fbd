package timesource

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/LeonardoBeccarini/feeder/internal/model"
)

var ErrMalformedTime = errors.New("malformed daytime line")

// Daytime line: "JJJJJ YR-MO-DA HH:MM:SS TT L H msADV UTC(NIST) OTM".
const (
	timeStart = 15
	timeEnd   = 23
)

// ToLocal extracts HH:MM:SS from raw and shifts it by a whole-hour offset,
// wrapping the hour into [0,24). The date is ignored.
func ToLocal(raw RawTime, offsetHours int) (model.LocalTime, error) {
	line := strings.TrimLeft(string(raw), " \t\r\n")
	if len(line) < timeEnd {
		return model.LocalTime{}, fmt.Errorf("%w: %q too short", ErrMalformedTime, line)
	}
	hms := line[timeStart:timeEnd]
	if hms[2] != ':' || hms[5] != ':' {
		return model.LocalTime{}, fmt.Errorf("%w: %q", ErrMalformedTime, hms)
	}
	h, herr := strconv.Atoi(hms[0:2])
	m, merr := strconv.Atoi(hms[3:5])
	s, serr := strconv.Atoi(hms[6:8])
	if herr != nil || merr != nil || serr != nil ||
		h < 0 || h > 23 || m < 0 || m > 59 || s < 0 || s > 60 {
		return model.LocalTime{}, fmt.Errorf("%w: %q", ErrMalformedTime, hms)
	}

	h = ((h+offsetHours)%24 + 24) % 24
	return model.LocalTime{Hour: h, Minute: m, Second: s}, nil
}
