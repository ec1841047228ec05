// Copyright 2025 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/protomutator/mutator"
	"github.com/google/protomutator/pkg/hash"
	"github.com/google/protomutator/pkg/log"
	"github.com/google/protomutator/pkg/mutconfig"
	"github.com/google/protomutator/pkg/osutil"
	"github.com/google/protomutator/pkg/protoio"
	"github.com/google/protomutator/pkg/stat"
	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Number of attempts to produce a result that fits into max_size.
const maxSizeRetries = 10

type runner struct {
	cfg    *mutconfig.Config
	corpus []proto.Message
	stdout io.Writer
	outMu  sync.Mutex
}

type worker struct {
	*runner
	proc      int
	mut       *mutator.Mutator
	rnd       *rand.Rand
	stats     *stat.Set
	statSaved *stat.Val
	statLarge *stat.Val
	genTime   stat.Average[time.Duration]
}

// run produces cfg.Iters messages from inputs (files or directories).
func run(ctx context.Context, cfg *mutconfig.Config, inputs []string, stdout io.Writer) error {
	corpus, err := loadCorpus(cfg, inputs)
	if err != nil {
		return err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint32(time.Now().UnixNano())
	}
	log.Logf(0, "loaded %v inputs of %v, seed %v", len(corpus), cfg.Type.FullName(), seed)
	r := &runner{
		cfg:    cfg,
		corpus: corpus,
		stdout: stdout,
	}
	var workers []*worker
	var sets []*stat.Set
	var gatherers prometheus.Gatherers
	for proc := 0; proc < cfg.Procs; proc++ {
		w := r.newWorker(proc, seed+uint32(proc))
		workers = append(workers, w)
		sets = append(sets, w.stats)
		gatherers = append(gatherers, w.stats.Registry())
	}
	if cfg.HTTP != "" {
		_, stop, err := serveMetrics(cfg.HTTP, gatherers)
		if err != nil {
			return err
		}
		defer stop()
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, w := range workers {
		w := w
		g.Go(func() error {
			return w.loop(ctx)
		})
	}
	err = g.Wait()
	for _, ui := range stat.Sum(stat.Simple, sets...) {
		log.Logf(0, "%-24v: %v", ui.Name, ui.Value)
	}
	return err
}

func loadCorpus(cfg *mutconfig.Config, inputs []string) ([]proto.Message, error) {
	var files []string
	for _, input := range inputs {
		info, err := os.Stat(input)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, input)
			continue
		}
		names, err := osutil.ListDir(input)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			files = append(files, filepath.Join(input, name))
		}
	}
	var corpus []proto.Message
	for _, file := range files {
		msg, err := protoio.ReadMessage(file, cfg.Type, cfg.InFormat)
		if err != nil {
			return nil, err
		}
		corpus = append(corpus, msg)
	}
	if len(corpus) == 0 {
		corpus = append(corpus, dynamicpb.NewMessage(cfg.Type))
	}
	return corpus, nil
}

func (r *runner) newWorker(proc int, seed uint32) *worker {
	stats := stat.NewLabeledSet(prometheus.Labels{"proc": fmt.Sprint(proc)})
	w := &worker{
		runner: r,
		proc:   proc,
		mut:    mutator.New(seed, mutator.WithConfig(r.cfg.Mutator), mutator.WithStats(stats)),
		rnd:    rand.New(rand.NewSource(int64(seed))),
		stats:  stats,
		statSaved: stats.New("saved", "Number of produced messages",
			stat.Console, stat.Prometheus("protomut_saved")),
		statLarge: stats.New("too large", "Number of results discarded due to max_size",
			stat.Simple, stat.Prometheus("protomut_too_large")),
	}
	stats.New("gen time", "Average time to produce one message (us)",
		func() int { return int(w.genTime.Value() / time.Microsecond) },
		func(v int) string { return fmt.Sprintf("%vus", v) },
		stat.Prometheus("protomut_gen_time_us"))
	return w
}

func (w *worker) loop(ctx context.Context) error {
	for i := w.proc; i < w.cfg.Iters; i += w.cfg.Procs {
		if ctx.Err() != nil {
			return nil
		}
		start := time.Now()
		msg := w.generate()
		w.genTime.Save(time.Since(start))
		if msg == nil {
			continue
		}
		if err := w.save(msg); err != nil {
			return err
		}
		w.statSaved.Add(1)
	}
	return nil
}

// generate mutates a random input or crosses over two of them.
// It returns nil if all results exceeded max_size.
func (w *worker) generate() proto.Message {
	for try := 0; try < maxSizeRetries; try++ {
		var msg proto.Message
		if w.cfg.CrossOverRatio != 0 && len(w.corpus) > 1 && w.rnd.Intn(w.cfg.CrossOverRatio) == 0 {
			msg = w.mut.CrossOver(w.choose(), w.choose())
		} else {
			input := w.choose()
			msg = proto.Clone(input)
			w.mut.Mutate(msg, w.cfg.SizeHint)
			if log.V(2) {
				log.Logf(2, "mutation diff:\n%s", messageDiff(input, msg))
			}
		}
		if w.cfg.MaxSize == 0 || proto.Size(msg) <= w.cfg.MaxSize {
			return msg
		}
		w.statLarge.Add(1)
	}
	return nil
}

func (w *worker) choose() proto.Message {
	return w.corpus[w.rnd.Intn(len(w.corpus))]
}

func (w *worker) save(msg proto.Message) error {
	if w.cfg.Output == "" {
		data, err := protoio.Text.Marshal(msg)
		if err != nil {
			return err
		}
		w.outMu.Lock()
		defer w.outMu.Unlock()
		_, err = fmt.Fprintf(w.stdout, "%s\n", data)
		return err
	}
	data, err := w.cfg.OutFormat.Marshal(msg)
	if err != nil {
		return err
	}
	name := filepath.Join(w.cfg.Output, hash.FileName(data, w.cfg.OutFormat.Ext()))
	if w.cfg.Compress {
		name += ".xz"
	}
	return protoio.WriteFile(name, data)
}

// serveMetrics exports metrics of all workers on addr until the returned function is called.
// It returns the actual listening address.
func serveMetrics(addr string, gatherers prometheus.Gatherers) (string, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("failed to listen on %v: %w", addr, err)
	}
	log.Logf(0, "serving metrics on http://%v/metrics", ln.Addr())
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: handlers.CompressHandler(mux)}
	go srv.Serve(ln)
	return ln.Addr().String(), func() {
		srv.Close()
	}, nil
}
