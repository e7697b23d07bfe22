// Package metrics holds the go-metrics instruments shared by the haredb
// packages. Everything registers into metrics.DefaultRegistry.
package metrics

import (
	"fmt"
	"io"
	"sort"
	"time"

	gometrics "github.com/rcrowley/go-metrics"
)

var (
	// SecretAllocated counts protected key buffers ever allocated.
	SecretAllocated = gometrics.GetOrRegisterCounter("haredb.vault.secret.allocated", nil)
	// SecretInUse counts protected key buffers not yet released.
	SecretInUse = gometrics.GetOrRegisterCounter("haredb.vault.secret.inuse", nil)

	EncryptTimer    = gometrics.GetOrRegisterTimer("haredb.codec.encrypt", nil)
	DecryptTimer    = gometrics.GetOrRegisterTimer("haredb.codec.decrypt", nil)
	DecryptFailures = gometrics.GetOrRegisterCounter("haredb.codec.decrypt.failures", nil)

	EngineGets    = gometrics.GetOrRegisterCounter("haredb.engine.gets", nil)
	EngineSets    = gometrics.GetOrRegisterCounter("haredb.engine.sets", nil)
	EngineDeletes = gometrics.GetOrRegisterCounter("haredb.engine.deletes", nil)
	EngineLoaded  = gometrics.GetOrRegisterGauge("haredb.engine.loaded", nil)

	PersistApplied = gometrics.GetOrRegisterCounter("haredb.persist.applied", nil)
	PersistFailed  = gometrics.GetOrRegisterCounter("haredb.persist.failed", nil)
	PersistDropped = gometrics.GetOrRegisterCounter("haredb.persist.dropped", nil)
	PersistPending = gometrics.GetOrRegisterGauge("haredb.persist.pending", nil)
)

// Write prints every registered haredb instrument, one per line, sorted by name.
func Write(w io.Writer) {
	lines := map[string]string{}
	gometrics.DefaultRegistry.Each(func(name string, i interface{}) {
		switch m := i.(type) {
		case gometrics.Counter:
			lines[name] = fmt.Sprintf("%d", m.Count())
		case gometrics.Gauge:
			lines[name] = fmt.Sprintf("%d", m.Value())
		case gometrics.Timer:
			lines[name] = fmt.Sprintf("count=%d mean=%s", m.Count(), time.Duration(m.Mean()))
		}
	})

	names := make([]string, 0, len(lines))
	for name := range lines {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Fprintf(w, "%-36s %s\n", name, lines[name])
	}
}
