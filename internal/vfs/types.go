package vfs

// File is one virtual project file. Exactly one content representation wins
// at materialization time: ExternalHandle beats Content, and Content itself
// may be plain text, a wrapped-binary marker, or a data URI.
type File struct {
	Path           string `json:"path"`
	Content        string `json:"content"`
	Language       string `json:"language,omitempty"`
	ExternalHandle string `json:"external_handle,omitempty"`
}

// Snapshot is an immutable copy of the store taken at a point in time.
// Files are ordered by path so derived artifacts are deterministic.
type Snapshot struct {
	Files []File
}

// Get returns the file at path, if present.
func (s Snapshot) Get(path string) (File, bool) {
	for _, f := range s.Files {
		if f.Path == path {
			return f, true
		}
	}
	return File{}, false
}

// Paths returns the snapshot's paths in sorted order.
func (s Snapshot) Paths() []string {
	paths := make([]string, len(s.Files))
	for i, f := range s.Files {
		paths[i] = f.Path
	}
	return paths
}
