package model

import "encoding/json"

// CompressionAlgorithm names one wire compression scheme.
type CompressionAlgorithm string

const (
	CompressionIdentity CompressionAlgorithm = "identity"
	CompressionZstd     CompressionAlgorithm = "zstd"
)

// ContentEncoding returns the HTTP Content-Encoding value for the
// algorithm, or "" for identity (no header).
func (a CompressionAlgorithm) ContentEncoding() string {
	if a == CompressionZstd {
		return "zstd"
	}
	return ""
}

// CompressionSet is the set of compression algorithms a server currently
// accepts. Identity is always implicitly available as the terminal
// fallback; only zstd is tracked explicitly since it's the only optional
// member of the two-algorithm set this protocol defines.
type CompressionSet struct {
	Zstd bool
}

// DefaultCompressionSet is optimistic: assume zstd works until the server
// says otherwise via an explicit check-in or a 415 response.
func DefaultCompressionSet() CompressionSet {
	return CompressionSet{Zstd: true}
}

// Without returns a copy of the set with algo removed. Removing identity
// is a no-op since it's never tracked as removable.
func (s CompressionSet) Without(algo CompressionAlgorithm) CompressionSet {
	if algo == CompressionZstd {
		return CompressionSet{Zstd: false}
	}
	return s
}

// Algorithms lists the set's members in preference order, zstd first, with
// identity always present as the last entry.
func (s CompressionSet) Algorithms() []CompressionAlgorithm {
	algos := make([]CompressionAlgorithm, 0, 2)
	if s.Zstd {
		algos = append(algos, CompressionZstd)
	}
	return append(algos, CompressionIdentity)
}

// MarshalJSON emits the set as a kebab-case algorithm name array.
func (s CompressionSet) MarshalJSON() ([]byte, error) {
	names := make([]string, 0, 2)
	if s.Zstd {
		names = append(names, string(CompressionZstd))
	}
	names = append(names, string(CompressionIdentity))
	return json.Marshal(names)
}

// UnmarshalJSON parses a server-advertised algorithm list. Unknown
// algorithm names are ignored; an empty or all-unknown list yields a set
// with no optional algorithms (identity only).
func (s *CompressionSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}

	set := CompressionSet{Zstd: false}
	for _, name := range names {
		switch CompressionAlgorithm(name) {
		case CompressionZstd:
			set.Zstd = true
		case CompressionIdentity:
			// always implicitly available
		default:
			// unknown algorithm advertised by a newer server; ignore it
		}
	}
	*s = set
	return nil
}
