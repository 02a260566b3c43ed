package page

// Loader is the loading indicator shown while the builder boots.
type Loader struct {
	label string
}

// NewLoader creates a loader.
func NewLoader(label string) *Loader {
	return &Loader{label: label}
}

// NodeName implements Node.
func (l *Loader) NodeName() string { return "loader" }

// Label returns the loader text.
func (l *Loader) Label() string { return l.label }
