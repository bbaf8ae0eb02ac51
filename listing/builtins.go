package listing

// Built-in location schemes.
const (
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
	SchemeFile  = "file"
)

// RegisterBuiltins registers all built-in providers by default
// or only the specific ones if schemes are provided
func RegisterBuiltins(r *Registry, schemes ...string) {
	if len(schemes) == 0 {
		schemes = []string{SchemeHTTP, SchemeHTTPS, SchemeFile}
	}

	for _, scheme := range schemes {
		switch scheme {
		case SchemeHTTP, SchemeHTTPS:
			RegisterHTTP(r, scheme)
		case SchemeFile:
			RegisterFile(r)
		}
	}
}
