// Package version holds the tool version, overridden at link time with
// -ldflags "-X github.com/dgallion1/bookpress/internal/version.Version=...".
package version

// Name is the generator name written into rendered documents.
const Name = "Bookpress"

// Version of the tool.
var Version = "0.4.0-dev"

// Generator is the value of the generator meta tag.
func Generator() string {
	return Name + " " + Version
}
