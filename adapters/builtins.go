package adapters

type BuiltInSourceType = string

const (
	LocalSourceType BuiltInSourceType = "local"
	HTTPSourceType  BuiltInSourceType = "http"
)

// RegisterBuiltins registers all built-in sources by default
// or only the specific ones if keys are provided
func RegisterBuiltins(r *Registry, sources ...BuiltInSourceType) {
	if len(sources) == 0 {
		sources = append(sources, LocalSourceType, HTTPSourceType)
	}

	for _, key := range sources {
		switch key {
		case LocalSourceType:
			RegisterLocal(r)
		case HTTPSourceType:
			RegisterHTTP(r)
		}
	}
}
