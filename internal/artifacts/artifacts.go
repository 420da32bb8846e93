// Package artifacts holds files embedded into the dbsnap binary.
package artifacts

import _ "embed"

// Global artifacts

//go:embed global/settings.yaml
var GlobalSettings []byte
