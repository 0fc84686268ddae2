package safety

import (
	"strconv"
	"strings"

	"github.com/roach88/roadrunner/internal/model"
)

// Sysinfo keys read by Fingerprint.
const (
	KeyLscpu = "lscpu"
	KeyUname = "uname"
)

// Fingerprint derives the hardware fingerprint from a sysinfo snapshot.
//
// The lscpu report is parsed as "key: value" lines with lower-cased keys.
// Architecture falls back to the raw uname string. A core count that does
// not parse as an integer is left unknown.
func Fingerprint(sysinfo map[string]string) model.HardwareFingerprint {
	fields := parseLscpu(sysinfo[KeyLscpu])

	fp := model.HardwareFingerprint{
		CPUModel:     fields["model name"],
		Architecture: fields["architecture"],
	}
	if fp.Architecture == "" {
		fp.Architecture = strings.TrimSpace(sysinfo[KeyUname])
	}
	if count := strings.Fields(fields["cpu(s)"]); len(count) > 0 {
		if n, err := strconv.Atoi(count[0]); err == nil {
			fp.Cores = &n
		}
	}
	return fp
}

func parseLscpu(output string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fields[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}
	return fields
}
