// Package session defines the RPC surface the FSM and reconciliation job use
// to talk to a single converter, plus an in-memory fake used throughout the
// test suite. Grounded on the Session interface named in spec.md §6; the
// fake mirrors the hand-rolled in-process fakes the teacher uses for its
// vm.Pool tests rather than a generated mock.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/ghabrous/fgc-pm/internal/pmerrors"
)

// Session is the RPC surface to a single converter: simple property
// get/set plus an explicit teardown. Implementations must be safe for use
// by one goroutine at a time; the pool never shares a Session across jobs.
type Session interface {
	Get(ctx context.Context, prop string) (string, error)
	Set(ctx context.Context, prop, value string) error
	Disconnect() error
}

// Fake is an in-memory Session used by tests. It lets a test script a
// sequence of FSM.STATE values to return from successive Get calls against
// REGFGC3.PROG.FSM.STATE, the way the real board advances only after the
// FSM's own polling interval elapses.
type Fake struct {
	mu sync.Mutex

	// Props holds arbitrary property values; Get/Set default to this map
	// when no scripted behavior matches prop.
	Props map[string]string

	// StateSequence, when non-empty, is the sequence of values GET
	// REGFGC3.PROG.FSM.STATE returns on successive calls. The final value
	// repeats once exhausted, so a state is reachable even after the
	// transition that produces it has already been observed.
	StateSequence []string
	stateCalls    int

	// FailGet/FailSet, if set, make the next matching Get/Set calls return
	// this error once instead of succeeding.
	FailGet map[string]error
	FailSet map[string]error

	Disconnected bool

	// Sets records every Set call, in order, for assertions.
	Sets []SetCall

	// SlotInfoAfterReset, if non-empty, is what the next Get of
	// REGFGC3.SLOT_INFO returns once the caller has written "" to it —
	// the fake's model of the real board's "write empty to force a
	// refresh, then re-read" convention used to detect a boot-mode switch.
	SlotInfoAfterReset string
}

// SetCall records one Set(prop, value) invocation.
type SetCall struct {
	Prop  string
	Value string
}

// NewFake returns a ready-to-use Fake with an empty property table.
func NewFake() *Fake {
	return &Fake{Props: make(map[string]string)}
}

func (f *Fake) Get(_ context.Context, prop string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.FailGet[prop]; ok {
		delete(f.FailGet, prop)
		return "", err
	}

	if prop == "REGFGC3.PROG.FSM.STATE" && len(f.StateSequence) > 0 {
		idx := f.stateCalls
		if idx >= len(f.StateSequence) {
			idx = len(f.StateSequence) - 1
		}
		f.stateCalls++
		return f.StateSequence[idx], nil
	}

	v, ok := f.Props[prop]
	if !ok {
		return "", pmerrors.NotFound("property %s", prop)
	}
	return v, nil
}

func (f *Fake) Set(_ context.Context, prop, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.FailSet[prop]; ok {
		delete(f.FailSet, prop)
		return err
	}

	if prop == "REGFGC3.SLOT_INFO" && value == "" && f.SlotInfoAfterReset != "" {
		f.Props[prop] = f.SlotInfoAfterReset
	} else {
		f.Props[prop] = value
	}
	f.Sets = append(f.Sets, SetCall{Prop: prop, Value: value})
	return nil
}

func (f *Fake) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Disconnected = true
	return nil
}

// SetCallsFor returns the values set for prop, in call order — a shorthand
// for tests that only care about one property's history.
func (f *Fake) SetCallsFor(prop string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.Sets {
		if c.Prop == prop {
			out = append(out, c.Value)
		}
	}
	return out
}

func (f *Fake) String() string {
	return fmt.Sprintf("session.Fake{props=%d, sets=%d}", len(f.Props), len(f.Sets))
}
