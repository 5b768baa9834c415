package domainutil

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/dns/dnsmessage"
)

var ErrInvalidDomain = errors.New("invalid domain name")

const maxLabelLen = 63

// Canonicalize turns user input into the form used as a cache key:
// lower case, surrounding space trimmed, no trailing root dot.
// The name must fit a DNS wire name and every label must be 1..63 bytes.
func Canonicalize(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimSuffix(name, ".")
	if name == "" {
		return "", fmt.Errorf("%w: empty name", ErrInvalidDomain)
	}

	if _, err := dnsmessage.NewName(name + "."); err != nil {
		return "", fmt.Errorf("%w: %q: %s", ErrInvalidDomain, name, err.Error())
	}

	for _, label := range strings.Split(name, ".") {
		if label == "" {
			return "", fmt.Errorf("%w: %q has an empty label", ErrInvalidDomain, name)
		}
		if len(label) > maxLabelLen {
			return "", fmt.Errorf("%w: label %q exceeds %d bytes", ErrInvalidDomain, label, maxLabelLen)
		}
	}

	return name, nil
}
