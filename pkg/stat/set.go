// Copyright 2024 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package stat

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/VividCortex/gohistogram"
	"github.com/prometheus/client_golang/prometheus"
)

// This file provides counters and distributions (Val type) for instrumenting code,
// and a registry of such values (Set type).
//
// Simple uses of metrics:
//
//	set := stat.NewSet()
//	statFoo := set.New("metric name", "metric description")
//	statFoo.Add(1)
//
//	set.New("output size", "size of results", stat.Distribution{}, stat.Prometheus("out_size"))
//
// Sets are owned by whoever creates them; there is no process-wide set.
// Reporting code uses Collect to obtain values of all registered metrics,
// and Registry to export them to Prometheus.

type UI struct {
	Name  string
	Desc  string
	Level Level
	Value string
	V     int
}

type Set struct {
	mu        sync.Mutex
	vals      map[string]*Val
	nextOrder atomic.Uint64
	registry  *prometheus.Registry
	labels    prometheus.Labels
}

const histogramBuckets = 255

func NewSet() *Set {
	return NewLabeledSet(nil)
}

// NewLabeledSet returns a set whose Prometheus metrics carry the given constant labels.
// Registries of sets that differ in labels can be served together with prometheus.Gatherers.
func NewLabeledSet(labels prometheus.Labels) *Set {
	return &Set{
		vals:     make(map[string]*Val),
		registry: prometheus.NewRegistry(),
		labels:   labels,
	}
}

// Registry holds metrics created with the Prometheus option.
func (s *Set) Registry() *prometheus.Registry {
	return s.registry
}

func (s *Set) Collect(level Level) []UI {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []UI
	for _, v := range s.vals {
		if v.level < level {
			continue
		}
		val := v.Val()
		res = append(res, UI{
			Name:  v.name,
			Desc:  v.desc,
			Level: v.level,
			Value: v.fmt(val),
			V:     val,
		})
	}
	sortUI(res)
	return res
}

func sortUI(res []UI) {
	sort.Slice(res, func(i, j int) bool {
		if res[i].Level != res[j].Level {
			return res[i].Level > res[j].Level
		}
		return res[i].Name < res[j].Name
	})
}

// Sum collects values of the same metrics from several sets, e.g. from per-worker sets.
// Counters are summed, distributions are averaged over all samples.
func Sum(level Level, sets ...*Set) []UI {
	type total struct {
		v       *Val
		sum     int
		samples int
		mean    float64
	}
	totals := make(map[string]*total)
	for _, s := range sets {
		s.mu.Lock()
		for name, v := range s.vals {
			if v.level < level {
				continue
			}
			t := totals[name]
			if t == nil {
				t = &total{v: v}
				totals[name] = t
			}
			if v.hist {
				if n := v.Count(); n != 0 {
					t.mean = (t.mean*float64(t.samples) + float64(v.Val())*float64(n)) / float64(t.samples+n)
					t.samples += n
				}
				continue
			}
			t.sum += v.Val()
		}
		s.mu.Unlock()
	}
	var res []UI
	for _, t := range totals {
		val := t.sum
		if t.v.hist {
			val = int(t.mean)
		}
		res = append(res, UI{
			Name:  t.v.name,
			Desc:  t.v.desc,
			Level: t.v.level,
			Value: t.v.fmt(val),
			V:     val,
		})
	}
	sortUI(res)
	return res
}

// Get returns a previously created value, or nil.
func (s *Set) Get(name string) *Val {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vals[name]
}

// Additional options for Val metrics.

// Level controls if the metric should be printed to console in periodic logs,
// or only shown in detailed reports.
type Level int

const (
	All Level = iota
	Simple
	Console
)

// Prometheus exports the metric to the set's Prometheus registry under the given name.
type Prometheus string

// Distribution says to collect histogram of individual samples.
// Val then reports the mean of the samples.
type Distribution struct{}

// Additionally a custom 'func() int' can be passed to read the metric value from the function,
// and 'func(int) string' can be passed for custom formatting of the metric value.

func (s *Set) New(name, desc string, opts ...any) *Val {
	v := &Val{
		name:  name,
		desc:  desc,
		order: s.nextOrder.Add(1),
		fmt:   strconv.Itoa,
	}
	var prom Prometheus
	for _, o := range opts {
		switch opt := o.(type) {
		case Level:
			v.level = opt
		case Distribution:
			v.hist = true
		case func() int:
			v.ext = opt
		case func(int) string:
			v.fmt = opt
		case Prometheus:
			prom = opt
		default:
			panic(fmt.Sprintf("unknown stats option %#v", o))
		}
	}
	if prom != "" {
		// Prometheus Instrumentation https://prometheus.io/docs/guides/go-application.
		s.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        string(prom),
			Help:        desc,
			ConstLabels: s.labels,
		},
			func() float64 { return float64(v.Val()) },
		))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vals[name] != nil {
		panic(fmt.Sprintf("duplicate stat %q", name))
	}
	s.vals[name] = v
	return v
}

type Val struct {
	name    string
	desc    string
	level   Level
	order   uint64
	val     atomic.Uint64
	ext     func() int
	fmt     func(int) string
	hist    bool
	histMu  sync.Mutex
	histVal *gohistogram.NumericHistogram
}

func (v *Val) Add(val int) {
	if v.ext != nil {
		panic(fmt.Sprintf("stat %v is in external mode", v.name))
	}
	if v.hist {
		v.histMu.Lock()
		if v.histVal == nil {
			v.histVal = gohistogram.NewHistogram(histogramBuckets)
		}
		v.histVal.Add(float64(val))
		v.histMu.Unlock()
		return
	}
	v.val.Add(uint64(val))
}

func (v *Val) Val() int {
	if v.ext != nil {
		return v.ext()
	}
	if v.hist {
		v.histMu.Lock()
		defer v.histMu.Unlock()
		if v.histVal == nil {
			return 0
		}
		return int(v.histVal.Mean())
	}
	return int(v.val.Load())
}

// Quantile returns the q-th quantile of a distribution value.
func (v *Val) Quantile(q float64) float64 {
	if !v.hist {
		panic(fmt.Sprintf("stat %v is not a distribution", v.name))
	}
	v.histMu.Lock()
	defer v.histMu.Unlock()
	if v.histVal == nil {
		return 0
	}
	return v.histVal.Quantile(q)
}

// Count returns the number of samples of a distribution value.
func (v *Val) Count() int {
	if !v.hist {
		panic(fmt.Sprintf("stat %v is not a distribution", v.name))
	}
	v.histMu.Lock()
	defer v.histMu.Unlock()
	if v.histVal == nil {
		return 0
	}
	return int(v.histVal.Count())
}
