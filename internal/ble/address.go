package ble

import (
	"fmt"
	"strings"
)

// NormalizeAddress uppercases an address and strips ':' and '-' so that
// "ee:42:00" and "EE4200" compare equal.
func NormalizeAddress(addr string) string {
	r := strings.NewReplacer(":", "", "-", "")
	return strings.ToUpper(r.Replace(strings.TrimSpace(addr)))
}

// ValidateAddress checks that addr is a usable address prefix.
func ValidateAddress(addr string) error {
	n := NormalizeAddress(addr)
	if len(n) < MinAddressLength {
		return fmt.Errorf("address %q too short: need at least %d hex digits", addr, MinAddressLength)
	}
	for _, c := range n {
		if !strings.ContainsRune("0123456789ABCDEF", c) {
			return fmt.Errorf("address %q contains non-hex character %q", addr, c)
		}
	}
	return nil
}

// Matcher decides whether an advertisement belongs to the target.
type Matcher interface {
	Match(address, name string) bool
	String() string
}

type addressPrefix string

// ByAddress matches devices whose address starts with prefix.
func ByAddress(prefix string) Matcher {
	return addressPrefix(NormalizeAddress(prefix))
}

func (p addressPrefix) Match(address, _ string) bool {
	return strings.HasPrefix(NormalizeAddress(address), string(p))
}

func (p addressPrefix) String() string {
	return "address " + string(p)
}

type localName string

// ByName matches devices advertising exactly name.
func ByName(name string) Matcher {
	return localName(name)
}

func (n localName) Match(_, name string) bool {
	return name == string(n)
}

func (n localName) String() string {
	return fmt.Sprintf("name %q", string(n))
}
