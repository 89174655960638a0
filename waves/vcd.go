// Package waves dumps signal changes into Value Change Dump files.
package waves

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/sarchlab/socbench/signal"
	"github.com/sarchlab/socbench/sim"
)

type scope struct {
	name    string
	signals []*signal.Signal
}

// A VCDWriter is a hook that writes every value change of the signals it is
// attached to.
type VCDWriter struct {
	lock      sync.Mutex
	out       *bufio.Writer
	closer    io.Closer
	timescale Timescale
	version   string

	scopes  []scope
	ids     map[*signal.Signal]string
	started bool
	closed  bool

	lastTick uint64
	wroteAny bool
	err      error
}

// NewVCDWriter creates a writer that writes to w.
func NewVCDWriter(w io.Writer, ts Timescale) (*VCDWriter, error) {
	if err := ts.Validate(); err != nil {
		return nil, err
	}

	vw := &VCDWriter{
		out:       bufio.NewWriter(w),
		timescale: ts,
		version:   "socbench",
		ids:       make(map[*signal.Signal]string),
	}

	if c, ok := w.(io.Closer); ok {
		vw.closer = c
	}

	return vw, nil
}

// CreateVCD creates the file at path and returns a writer to it.
func CreateVCD(path string, ts Timescale) (*VCDWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "creating wave file")
	}

	w, err := NewVCDWriter(f, ts)
	if err != nil {
		f.Close()
		return nil, err
	}

	return w, nil
}

// AddScope declares a module scope holding the signals. The writer hooks
// itself to each signal. Scopes must be added before Start.
func (w *VCDWriter) AddScope(name string, signals []*signal.Signal) {
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.started {
		panic("cannot add a scope after the dump started")
	}

	sc := scope{name: name}
	for _, s := range signals {
		if _, found := w.ids[s]; found {
			continue
		}

		w.ids[s] = identifier(len(w.ids))
		sc.signals = append(sc.signals, s)
		s.AcceptHook(w)
	}

	w.scopes = append(w.scopes, sc)
}

// identifier turns an index into a short printable VCD identifier.
func identifier(i int) string {
	const first, n = '!', '~' - '!' + 1

	id := []byte{byte(first + i%n)}
	for i /= n; i > 0; i /= n {
		i--
		id = append(id, byte(first+i%n))
	}

	return string(id)
}

// Start writes the header and the initial value of every signal at time t.
func (w *VCDWriter) Start(t sim.VTime) error {
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.started {
		return errors.New("dump already started")
	}

	w.started = true

	w.printf("$version\n\t%s\n$end\n", w.version)
	w.printf("$timescale %s $end\n", w.timescale)

	for _, sc := range w.scopes {
		w.printf("$scope module %s $end\n", sc.name)

		for _, s := range sc.signals {
			w.printf("$var wire %d %s %s $end\n", s.Width(), w.ids[s], s.Name())
		}

		w.printf("$upscope $end\n")
	}

	w.printf("$enddefinitions $end\n")

	if err := w.timestamp(t); err != nil {
		return err
	}

	w.printf("$dumpvars\n")

	for _, sc := range w.scopes {
		for _, s := range sc.signals {
			w.writeValue(s, s.Value())
		}
	}

	w.printf("$end\n")

	return w.err
}

// Func writes a value change.
func (w *VCDWriter) Func(ctx sim.HookCtx) {
	if ctx.Pos != signal.HookPosValueChange {
		return
	}

	change, ok := ctx.Item.(signal.Change)
	if !ok {
		return
	}

	w.lock.Lock()
	defer w.lock.Unlock()

	if !w.started || w.closed || w.err != nil {
		return
	}

	if err := w.timestamp(change.Time); err != nil {
		return
	}

	w.writeValue(change.Signal, change.New)
}

func (w *VCDWriter) timestamp(t sim.VTime) error {
	tick, err := w.timescale.Ticks(t)
	if err != nil {
		w.fail(err)
		return err
	}

	if w.wroteAny && tick == w.lastTick {
		return nil
	}

	w.printf("#%d\n", tick)
	w.lastTick = tick
	w.wroteAny = true

	return nil
}

func (w *VCDWriter) writeValue(s *signal.Signal, v signal.Value) {
	id := w.ids[s]

	if v.Width() == 1 {
		w.printf("%c%s\n", v.Bit(0).Rune(), id)
		return
	}

	w.printf("b%s %s\n", v, id)
}

func (w *VCDWriter) printf(format string, args ...any) {
	if w.err != nil {
		return
	}

	if _, err := fmt.Fprintf(w.out, format, args...); err != nil {
		w.fail(err)
	}
}

func (w *VCDWriter) fail(err error) {
	if w.err == nil {
		w.err = errors.Wrap(err, "writing wave file")
	}
}

// Err returns the first error met while dumping.
func (w *VCDWriter) Err() error {
	w.lock.Lock()
	defer w.lock.Unlock()

	return w.err
}

// Flush writes the buffered output.
func (w *VCDWriter) Flush() error {
	w.lock.Lock()
	defer w.lock.Unlock()

	if err := w.out.Flush(); err != nil {
		w.fail(err)
	}

	return w.err
}

// Close flushes the output and closes the underlying file, if any. The
// signals stay hooked but their changes are no longer written.
func (w *VCDWriter) Close() error {
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.closed {
		return w.err
	}

	w.closed = true

	if err := w.out.Flush(); err != nil {
		w.fail(err)
	}

	if w.closer != nil {
		if err := w.closer.Close(); err != nil {
			w.fail(err)
		}
	}

	return w.err
}
