//go:build darwin || linux

package native

import (
	"fmt"

	"github.com/ebitengine/purego"
)

// Open loads the library at path and queries its dimensions.
func Open(path string) (*Library, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, fmt.Errorf("loading native library %s: %w", path, err)
	}

	dimsSym, err := purego.Dlsym(handle, SymbolDimensions)
	if err != nil {
		_ = purego.Dlclose(handle)
		return nil, fmt.Errorf("native library %s: missing %s: %w", path, SymbolDimensions, err)
	}
	simSym, err := purego.Dlsym(handle, SymbolSimulate)
	if err != nil {
		_ = purego.Dlclose(handle)
		return nil, fmt.Errorf("native library %s: missing %s: %w", path, SymbolSimulate, err)
	}

	var dimensions func(nCells, nGenes *uintptr)
	purego.RegisterFunc(&dimensions, dimsSym)

	l := &Library{path: path, handle: handle, closer: purego.Dlclose}
	purego.RegisterFunc(&l.simulate, simSym)

	var nCells, nGenes uintptr
	dimensions(&nCells, &nGenes)
	if nCells == 0 || nGenes == 0 {
		_ = purego.Dlclose(handle)
		return nil, fmt.Errorf("native library %s reports n_cells=%d, n_genes=%d", path, nCells, nGenes)
	}
	l.nCells, l.nGenes = int(nCells), int(nGenes)
	return l, nil
}
