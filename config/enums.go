package config

import (
	"fmt"
	"strings"
)

// Image re-encoding before insertion.
// ENUM(none, unsupported, all)
type TranscodeMode int

const (
	TranscodeModeNone TranscodeMode = iota
	TranscodeModeUnsupported
	TranscodeModeAll
)

var transcodeModeNames = []string{"none", "unsupported", "all"}

// TranscodeModeNames returns list of possible string values.
func TranscodeModeNames() []string {
	return append([]string(nil), transcodeModeNames...)
}

func (m TranscodeMode) String() string {
	if m.IsValid() {
		return transcodeModeNames[m]
	}
	return fmt.Sprintf("TranscodeMode(%d)", int(m))
}

func (m TranscodeMode) IsValid() bool {
	return m >= TranscodeModeNone && int(m) < len(transcodeModeNames)
}

// ParseTranscodeMode attempts to convert string to TranscodeMode, case insensitive.
func ParseTranscodeMode(name string) (TranscodeMode, error) {
	for i, n := range transcodeModeNames {
		if strings.EqualFold(n, name) {
			return TranscodeMode(i), nil
		}
	}
	return TranscodeModeNone, fmt.Errorf("%s is not a valid TranscodeMode, try [%s]", name, strings.Join(transcodeModeNames, ", "))
}

func (m TranscodeMode) MarshalText() ([]byte, error) {
	if !m.IsValid() {
		return nil, fmt.Errorf("%d is not a valid TranscodeMode", int(m))
	}
	return []byte(m.String()), nil
}

func (m *TranscodeMode) UnmarshalText(text []byte) error {
	v, err := ParseTranscodeMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
