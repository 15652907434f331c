package ports

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseRange expands "FROM-TO" (or a single port) into the list of ports it covers.
func ParseRange(s string) ([]int, error) {
	from, to, found := strings.Cut(strings.TrimSpace(s), "-")
	if !found {
		to = from
	}

	lo, err := strconv.Atoi(strings.TrimSpace(from))
	if err != nil {
		return nil, fmt.Errorf("invalid port range %q: %w", s, err)
	}
	hi, err := strconv.Atoi(strings.TrimSpace(to))
	if err != nil {
		return nil, fmt.Errorf("invalid port range %q: %w", s, err)
	}
	if lo < 1 || hi > 65535 || lo > hi {
		return nil, fmt.Errorf("invalid port range %q", s)
	}

	ports := make([]int, 0, hi-lo+1)
	for p := lo; p <= hi; p++ {
		ports = append(ports, p)
	}

	return ports, nil
}
