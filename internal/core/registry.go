package core

import (
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

// Registry is the server's table of named sessions plus its command counters.
// Every read and write happens under one lock; the session slice never leaves
// this type.
type Registry struct {
	mu         sync.Mutex
	sessions   []*Session
	counts     ServerCounts
	transcript io.Writer
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithTranscript echoes entries, messages and departures to w in broadcast order.
func WithTranscript(w io.Writer) RegistryOption {
	return func(r *Registry) {
		r.transcript = w
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register names s and appends it. The uniqueness check and the insert share
// one critical section.
func (r *Registry) Register(s *Session, name string) error {
	if name == "" {
		return ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.registerLocked(s, name)
}

// Join registers s under name, queues ack to it and announces the entry to
// every session, itself included. Nothing broadcast by another session can
// reach s before ack.
func (r *Registry) Join(s *Session, name, ack string) error {
	if name == "" {
		return ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.registerLocked(s, name); err != nil {
		return err
	}
	s.Send(ack)
	r.broadcastLocked(proto.Enter(name))
	r.echoLocked(EnteredNotice(name))
	return nil
}

// Remove deletes the named session. It returns true only for the call that
// actually removed it, so concurrent leave and kick paths announce once.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.removeLocked(name) != nil
}

// Find returns the named session.
func (r *Registry) Find(name string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(name)
	if i < 0 {
		return nil, false
	}
	return r.sessions[i], true
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sessions)
}

// Names returns all names sorted case-insensitively.
func (r *Registry) Names() []string {
	r.mu.Lock()
	names := r.namesLocked()
	r.mu.Unlock()

	sortNames(names)
	return names
}

// Broadcast queues line on every registered session. A peer that cannot take
// the line loses it; nobody else is affected.
func (r *Registry) Broadcast(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.broadcastLocked(line)
}

// Announce broadcasts a notice and records it in the transcript.
func (r *Registry) Announce(line, transcript string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.broadcastLocked(line)
	r.echoLocked(transcript)
}

// Say counts a SAY from s and broadcasts it. It fails with ErrNotRegistered
// once s has been removed, so a kicked session cannot speak again.
func (r *Registry) Say(s *Session, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.actLocked(s, CommandSay) {
		return ErrNotRegistered
	}
	r.broadcastLocked(proto.Msg(s.name, text))
	r.echoLocked(fmt.Sprintf("%s: %s", s.name, text))
	return nil
}

// List counts a LIST from s and queues the sorted names to it.
func (r *Registry) List(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.actLocked(s, CommandList) {
		return ErrNotRegistered
	}
	names := r.namesLocked()
	sortNames(names)
	s.Send(proto.List(names))
	return nil
}

// Record counts cmd for s if s is still registered.
func (r *Registry) Record(s *Session, cmd Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.actLocked(s, cmd) {
		return ErrNotRegistered
	}
	return nil
}

// Leave removes name and, when this call removed it, announces the departure.
func (r *Registry) Leave(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.removeLocked(name) == nil {
		return false
	}
	r.broadcastLocked(proto.Leave(name))
	r.echoLocked(LeftNotice(name))
	return true
}

// Kick counts a KICK from s and removes the named session: it is told so,
// closed, and its departure is announced to everyone left. Unknown names are
// a counted no-op and report false.
func (r *Registry) Kick(s *Session, name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.actLocked(s, CommandKick) {
		return false, ErrNotRegistered
	}
	return r.kickLocked(name), nil
}

// Count records cmd against the server totals and, when s is named, its own
// counters.
func (r *Registry) Count(s *Session, cmd Command) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.counts.bump(cmd)
	if s != nil {
		s.counts.bump(cmd)
	}
}

// Stats copies every counter under the lock.
func (r *Registry) Stats() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		Sessions: make([]SessionStats, 0, len(r.sessions)),
		Server:   r.counts,
	}
	for _, s := range r.sessions {
		snap.Sessions = append(snap.Sessions, SessionStats{Name: s.name, Counts: s.counts})
	}
	return snap
}

// CountsOf returns the counters of s.
func (r *Registry) CountsOf(s *Session) SessionCounts {
	r.mu.Lock()
	defer r.mu.Unlock()

	return s.counts
}

func (r *Registry) registerLocked(s *Session, name string) error {
	if s.name != "" {
		return ErrAlreadyNamed
	}
	if r.indexLocked(name) >= 0 {
		return ErrNameTaken
	}
	s.name = name
	r.sessions = append(r.sessions, s)
	return nil
}

func (r *Registry) indexLocked(name string) int {
	for i, s := range r.sessions {
		if s.name == name {
			return i
		}
	}
	return -1
}

// actLocked counts cmd for s when s is the session registered under its name.
func (r *Registry) actLocked(s *Session, cmd Command) bool {
	if s == nil || s.name == "" {
		return false
	}
	i := r.indexLocked(s.name)
	if i < 0 || r.sessions[i] != s {
		return false
	}
	r.counts.bump(cmd)
	s.counts.bump(cmd)
	return true
}

func (r *Registry) kickLocked(name string) bool {
	target := r.removeLocked(name)
	if target == nil {
		return false
	}
	target.Final(proto.Kick())

	r.broadcastLocked(proto.Leave(name))
	r.echoLocked(LeftNotice(name))
	return true
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.sessions))
	for _, s := range r.sessions {
		names = append(names, s.name)
	}
	return names
}

func (r *Registry) removeLocked(name string) *Session {
	i := r.indexLocked(name)
	if i < 0 {
		return nil
	}
	s := r.sessions[i]
	r.sessions = slices.Delete(r.sessions, i, i+1)
	return s
}

func (r *Registry) broadcastLocked(line string) {
	for _, s := range r.sessions {
		s.Send(line)
	}
}

func (r *Registry) echoLocked(text string) {
	if r.transcript == nil || text == "" {
		return
	}
	_, _ = fmt.Fprintln(r.transcript, text)
}

func sortNames(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		a, b := strings.ToLower(names[i]), strings.ToLower(names[j])
		if a != b {
			return a < b
		}
		return names[i] < names[j]
	})
}

// EnteredNotice is the human-readable form of an ENTER line.
func EnteredNotice(name string) string {
	return fmt.Sprintf("(%s has entered the chat)", name)
}

// LeftNotice is the human-readable form of a LEAVE line.
func LeftNotice(name string) string {
	return fmt.Sprintf("(%s has left the chat)", name)
}
