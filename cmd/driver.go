// Package cmd is the top-level "driver" package for jitlower: it contains all
// the functionality for parsing command-line arguments, loading profiles and
// units, and running the lowering over every method of a unit.
package cmd

import (
	"bufio"
	"fmt"
	"io/ioutil"
	"os"
	"sort"
	"sync"

	"jitlower/common"
	"jitlower/config"
	"jitlower/generate"
	"jitlower/mir"
	"jitlower/report"

	"github.com/llir/llvm/ir"
)

// Driver represents the state of a single run: one unit lowered into one
// output module.
type Driver struct {
	// unitPath is the path to the unit being lowered.
	unitPath string

	// prof is the lowering profile.
	prof *config.Profile

	// unit is the loaded unit.
	unit *mir.Unit

	// mod is the output module.  cache is the symbol cache shared by all the
	// workers declaring into it.
	mod   *ir.Module
	cache *generate.SymbolCache

	// m guards the fields below it.
	m *sync.Mutex

	// relocs is the union of the relocations of all lowered methods.
	relocs map[mir.Handle]string

	// lowered is the number of methods lowered successfully.
	lowered int
}

// NewDriver creates a new driver for the unit at unitPath.
func NewDriver(unitPath string, prof *config.Profile) *Driver {
	mod := ir.NewModule()
	mod.SourceFilename = unitPath
	mod.TargetTriple = prof.Triple
	mod.DataLayout = prof.DataLayout

	return &Driver{
		unitPath: unitPath,
		prof:     prof,
		mod:      mod,
		cache:    generate.NewSymbolCache(mod, prof),
		m:        &sync.Mutex{},
		relocs:   make(map[mir.Handle]string),
	}
}

// Load loads the unit.  It returns false if the unit could not be loaded.
func (d *Driver) Load() bool {
	unit, err := mir.Load(d.unitPath)
	if err != nil {
		report.ReportStdError(d.unitPath, err)
		return false
	}

	d.unit = unit
	return true
}

// Lower lowers all the methods of the unit concurrently.  Methods that fail
// are reported and left out of the module: the other methods are unaffected.
func (d *Driver) Lower() {
	workers := d.prof.Workers
	if workers < 1 {
		workers = 1
	}

	methods := make(chan *mir.Method)

	wg := &sync.WaitGroup{}
	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for m := range methods {
				d.lowerMethod(m)
			}
		}()
	}

	for _, m := range d.unit.Methods {
		methods <- m
	}

	close(methods)
	wg.Wait()

	d.sortModule()
}

// lowerMethod lowers a single method and records its relocations.
func (d *Driver) lowerMethod(m *mir.Method) {
	result, err := generate.NewGenerator(d.cache, d.unit.Symbols, m).Generate()
	if err != nil {
		report.ReportMethodFailure(m.Name, err)
		return
	}

	d.m.Lock()
	for _, r := range result.Relocs {
		d.relocs[r.Handle] = r.Symbol
	}
	d.lowered++
	d.m.Unlock()

	report.ReportMethodLowered(m.Name, len(result.Func.Blocks), len(result.Relocs))
}

// sortModule orders the module's functions and globals by name.  The workers
// declare symbols in whatever order they get to them: sorting makes the output
// independent of scheduling.
func (d *Driver) sortModule() {
	sort.SliceStable(d.mod.Funcs, func(i, j int) bool {
		return d.mod.Funcs[i].Name() < d.mod.Funcs[j].Name()
	})

	sort.SliceStable(d.mod.Globals, func(i, j int) bool {
		return d.mod.Globals[i].Name() < d.mod.Globals[j].Name()
	})
}

// Emit writes the module and the relocation list.
func (d *Driver) Emit() error {
	outputPath := d.outputPath()

	if err := ioutil.WriteFile(outputPath, []byte(d.mod.String()), 0644); err != nil {
		return fmt.Errorf("failed to write module: %w", err)
	}

	if err := d.writeRelocs(d.relocPath()); err != nil {
		return fmt.Errorf("failed to write relocations: %w", err)
	}

	return nil
}

// writeRelocs writes the relocations sorted by handle, one per line.
func (d *Driver) writeRelocs(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	handles := make([]mir.Handle, 0, len(d.relocs))
	for h := range d.relocs {
		handles = append(handles, h)
	}

	sort.Slice(handles, func(i, j int) bool {
		return handles[i] < handles[j]
	})

	w := bufio.NewWriter(f)
	for _, h := range handles {
		fmt.Fprintf(w, "%#x\t%s\n", uint64(h), d.relocs[h])
	}

	return w.Flush()
}

func (d *Driver) outputPath() string {
	if d.prof.OutputPath != "" {
		return d.prof.OutputPath
	}

	return common.DefaultOutputPath
}

func (d *Driver) relocPath() string {
	if d.prof.RelocPath != "" {
		return d.prof.RelocPath
	}

	return d.outputPath() + common.RelocFileExt
}

// Lowered returns the number of methods lowered successfully.
func (d *Driver) Lowered() int {
	d.m.Lock()
	defer d.m.Unlock()

	return d.lowered
}
