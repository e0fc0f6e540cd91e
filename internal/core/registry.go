package core

import (
	"fmt"
	"sync"

	"github.com/JonMunkholm/evsync/internal/source"
)

// Shape says how a sidecar's rows attach to a vehicle.
type Shape int

const (
	// ShapeGroup sidecars carry at most one row per vehicle id.
	ShapeGroup Shape = iota
	// ShapeList sidecars accumulate rows per vehicle id in row order.
	ShapeList
)

func (s Shape) String() string {
	if s == ShapeList {
		return "list"
	}
	return "group"
}

// Definition describes one sidecar source: how its headers map to fields
// and how its rows attach to a vehicle.
type Definition struct {
	Source source.ID
	Label  string
	Shape  Shape

	// Aliases override the global header table for this source only.
	// Keys are NormalizeHeader output.
	Aliases map[string]string

	// Attach sets the group or list on v. rows is never empty; for
	// ShapeGroup it holds exactly one row.
	Attach func(v *Vehicle, rows []Row)
}

var (
	registry   = make(map[source.ID]Definition)
	registryMu sync.RWMutex
)

// Register adds a sidecar definition to the registry.
// Panics if the source is already registered or is the primary source.
func Register(def Definition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if def.Source == source.Primary {
		panic("cannot register the primary source as a sidecar")
	}
	if _, exists := registry[def.Source]; exists {
		panic(fmt.Sprintf("sidecar already registered: %s", def.Source))
	}
	if def.Attach == nil {
		panic(fmt.Sprintf("sidecar %s has no Attach func", def.Source))
	}

	registry[def.Source] = def
}

// Get returns a sidecar definition by source id.
func Get(id source.ID) (Definition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[id]
	return def, ok
}

// Definitions returns registered sidecars in source order.
func Definitions() []Definition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Definition, 0, len(registry))
	for _, id := range source.Sidecars() {
		if def, ok := registry[id]; ok {
			result = append(result, def)
		}
	}
	return result
}
