package client

import (
	"strconv"
	"sync"
)

// progressActive is the handshake progress at which chat input is allowed:
// one OK for the credential, one for the name.
const progressActive = 2

// Identity is the handshake state shared by the server and terminal loops.
type Identity struct {
	mu   sync.Mutex
	cond *sync.Cond

	name       string
	credential string
	counter    int
	progress   int
	sentAuth   bool
	leaving    bool
	closed     bool
}

// NewIdentity creates the identity for a requested name and credential.
func NewIdentity(name, credential string) *Identity {
	id := &Identity{name: name, credential: credential}
	id.cond = sync.NewCond(&id.mu)
	return id
}

// Credential returns the shared secret loaded at start-up.
func (id *Identity) Credential() string {
	return id.credential
}

// Progress returns the number of acknowledgments received, 0 to 2.
func (id *Identity) Progress() int {
	id.mu.Lock()
	defer id.mu.Unlock()
	return id.progress
}

// Active reports whether the handshake has completed.
func (id *Identity) Active() bool {
	return id.Progress() >= progressActive
}

// Ack records an OK from the server and wakes WaitActive once the
// handshake completes. Progress never exceeds two.
func (id *Identity) Ack() int {
	id.mu.Lock()
	defer id.mu.Unlock()

	if id.progress < progressActive {
		id.progress++
		if id.progress == progressActive {
			id.cond.Broadcast()
		}
	}
	return id.progress
}

// CredentialSent marks the credential as on the wire; until the next OK an
// end of stream means the server refused it.
func (id *Identity) CredentialSent() {
	id.mu.Lock()
	id.sentAuth = true
	id.mu.Unlock()
}

// AwaitingVerdict reports whether the credential was sent and not yet accepted.
func (id *Identity) AwaitingVerdict() bool {
	id.mu.Lock()
	defer id.mu.Unlock()
	return id.sentAuth && id.progress == 0
}

// NameTaken bumps the disambiguation counter.
func (id *Identity) NameTaken() {
	id.mu.Lock()
	id.counter++
	id.mu.Unlock()
}

// DisplayName is the name to propose next: the requested name followed by
// the counter once a proposal has been rejected.
func (id *Identity) DisplayName() string {
	id.mu.Lock()
	defer id.mu.Unlock()

	if id.counter > 0 {
		return id.name + strconv.Itoa(id.counter)
	}
	return id.name
}

// Leave records that a LEAVE is about to be sent; from then on the server
// closing the connection is the expected end of the session.
func (id *Identity) Leave() {
	id.mu.Lock()
	id.leaving = true
	id.mu.Unlock()
}

// Leaving reports whether Leave was called.
func (id *Identity) Leaving() bool {
	id.mu.Lock()
	defer id.mu.Unlock()
	return id.leaving
}

// WaitActive blocks until the handshake completes or the identity is closed.
// It reports whether the handshake completed.
func (id *Identity) WaitActive() bool {
	id.mu.Lock()
	defer id.mu.Unlock()

	for id.progress < progressActive && !id.closed {
		id.cond.Wait()
	}
	return id.progress >= progressActive
}

// Close releases every WaitActive caller.
func (id *Identity) Close() {
	id.mu.Lock()
	id.closed = true
	id.cond.Broadcast()
	id.mu.Unlock()
}
