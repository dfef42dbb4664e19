package hal

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// RevisionPiZeroW is the /proc/cpuinfo revision code for the Raspberry Pi
// Zero W, the board whose interlock wiring is inverted relative to every
// other supported revision.
const RevisionPiZeroW = "9000c1"

// Revision reads the `Revision:` line from /proc/cpuinfo and returns its
// value, e.g. "9000c1". An unreadable or malformed cpuinfo yields an error
// and an empty revision, which IsPiZeroW reports as not a Pi Zero W.
func Revision(cpuinfoPath string) (string, error) {
	f, err := os.Open(cpuinfoPath)
	if err != nil {
		return "", fmt.Errorf("hal: open %s: %w", cpuinfoPath, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if strings.TrimSpace(k) != "Revision" {
			continue
		}
		return strings.TrimSpace(v), nil
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("hal: scan %s: %w", cpuinfoPath, err)
	}
	return "", fmt.Errorf("hal: no Revision line in %s", cpuinfoPath)
}

// IsPiZeroW reports whether rev identifies a Raspberry Pi Zero W.
func IsPiZeroW(rev string) bool {
	return rev == RevisionPiZeroW
}
