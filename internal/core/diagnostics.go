package core

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
)

// Reporter prints registry counters on demand.
type Reporter struct {
	registry *Registry
	out      io.Writer
}

// NewReporter builds a reporter writing to out.
func NewReporter(registry *Registry, out io.Writer) *Reporter {
	return &Reporter{registry: registry, out: out}
}

// Report writes one consistent snapshot of every counter.
func (r *Reporter) Report() error {
	snap := r.registry.Stats()

	w := bufio.NewWriter(r.out)
	fmt.Fprintln(w, "@CLIENTS@")
	for _, s := range snap.Sessions {
		fmt.Fprintf(w, "%s:SAY:%d:KICK:%d:LIST:%d\n", s.Name, s.Counts.Say, s.Counts.Kick, s.Counts.List)
	}
	fmt.Fprintln(w, "@SERVER@")
	c := snap.Server
	fmt.Fprintf(w, "server:AUTH:%d:NAME:%d:SAY:%d:KICK:%d:LIST:%d:LEAVE:%d\n",
		c.Auth, c.Name, c.Say, c.Kick, c.List, c.Leave)
	return w.Flush()
}

// Watch reports once per received signal until ctx is done.
func (r *Reporter) Watch(ctx context.Context, signals <-chan os.Signal) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-signals:
			if !ok {
				return nil
			}
			if err := r.Report(); err != nil {
				return fmt.Errorf("write diagnostics: %w", err)
			}
		}
	}
}
