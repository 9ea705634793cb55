package geodesy

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Zone identifies a UTM grid zone: a longitude zone number 1..60 plus a
// latitude band letter C..X (I and O are skipped). The band places the
// point in an 8° latitude stripe and, more importantly here, decides the
// hemisphere and with it the false-northing convention.
type Zone struct {
	Number int
	Band   byte
}

// Valid reports whether the zone is a real UTM grid zone.
func (z Zone) Valid() bool {
	if z.Number < 1 || z.Number > 60 {
		return false
	}
	if z.Band < 'C' || z.Band > 'X' || z.Band == 'I' || z.Band == 'O' {
		return false
	}
	return true
}

// North reports whether the zone lies in the northern hemisphere.
// Bands N..X are northern, C..M southern.
func (z Zone) North() bool {
	return z.Band >= 'N'
}

// String renders the zone in the usual compact form, e.g. "33U".
func (z Zone) String() string {
	if !z.Valid() {
		return fmt.Sprintf("invalid(%d%c)", z.Number, z.Band)
	}
	return strconv.Itoa(z.Number) + string(z.Band)
}

// Zones travel as their compact form on the wire.

func (z Zone) MarshalJSON() ([]byte, error) {
	if !z.Valid() {
		return nil, fmt.Errorf("%w: cannot encode zone %d%c", ErrOutOfRange, z.Number, z.Band)
	}
	return json.Marshal(z.String())
}

func (z *Zone) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("zone: %w", err)
	}
	parsed, err := ParseZone(s)
	if err != nil {
		return err
	}
	*z = parsed
	return nil
}

// ParseZone parses the compact "33U" form produced by String.
func ParseZone(s string) (Zone, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return Zone{}, fmt.Errorf("%w: zone %q", ErrOutOfRange, s)
	}
	band := s[len(s)-1]
	if band >= 'a' && band <= 'z' {
		band -= 'a' - 'A'
	}
	num, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return Zone{}, fmt.Errorf("%w: zone %q", ErrOutOfRange, s)
	}
	z := Zone{Number: num, Band: band}
	if !z.Valid() {
		return Zone{}, fmt.Errorf("%w: zone %q", ErrOutOfRange, s)
	}
	return z, nil
}

// bandLetters covers 80°S..72°N in 8° stripes; band X above it is
// handled separately because it is stretched to 12°.
const bandLetters = "CDEFGHJKLMNPQRSTUVW"

// bandFor returns the latitude band letter for a latitude in degrees,
// or 0 when the latitude lies outside the UTM domain.
func bandFor(lat float64) byte {
	switch {
	case lat >= 72 && lat <= 84:
		return 'X'
	case lat >= -80 && lat < 72:
		return bandLetters[int((lat+80)/8)]
	default:
		return 0
	}
}
