package storage

// Format identifies the serialization format of a model artifact.
type Format string

const (
	// FormatNetwork is a serialized feed-forward network (weight file).
	FormatNetwork Format = "network"
	// FormatRules is a serialized rule-based scoring model.
	FormatRules Format = "rules"
)

// ArtifactStore resolves (model name, version) pairs to artifact bytes.
// Implementations must be safe for concurrent readers.
type ArtifactStore interface {
	// Resolve returns the artifact bytes and declared format for a model
	// version. Returns ErrArtifactMissing when no artifact exists.
	Resolve(name, version string) ([]byte, Format, error)

	// Exists reports whether an artifact exists for the model version.
	Exists(name, version string) bool

	// ListVersions enumerates all versions with an artifact for the model,
	// sorted ascending.
	ListVersions(name string) ([]string, error)
}
