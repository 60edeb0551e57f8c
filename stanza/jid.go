package stanza

import "strings"

// SplitJID splits a full address into its bare address and resource. The
// resource is empty when the address has none.
func SplitJID(full string) (bare, resource string) {
	full = strings.TrimSpace(full)
	if i := strings.IndexByte(full, '/'); i >= 0 {
		return full[:i], full[i+1:]
	}
	return full, ""
}

// Bare returns the bare form of an address.
func Bare(full string) string {
	bare, _ := SplitJID(full)
	return bare
}

// Resource returns the resource part of an address, or "".
func Resource(full string) string {
	_, res := SplitJID(full)
	return res
}

// JoinJID builds a full address from a bare address and resource.
func JoinJID(bare, resource string) string {
	if resource == "" {
		return bare
	}
	return bare + "/" + resource
}

// Domain returns the domain part of an address.
func Domain(addr string) string {
	bare := Bare(addr)
	if i := strings.IndexByte(bare, '@'); i >= 0 {
		return bare[i+1:]
	}
	return bare
}

// Local returns the localpart of an address, or "" if it has none.
func Local(addr string) string {
	bare := Bare(addr)
	if i := strings.IndexByte(bare, '@'); i >= 0 {
		return bare[:i]
	}
	return ""
}

// EqualBare compares the bare forms of two addresses, ignoring case.
func EqualBare(a, b string) bool {
	return strings.EqualFold(Bare(a), Bare(b))
}
