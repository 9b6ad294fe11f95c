package scheduler

import "github.com/gear-tech/gear-sub008/common"

// Interval is an inclusive [Start, Finish] block range (spec.md §3
// "Waitlist"/"Dispatch stash": "Interval").
type Interval struct {
	Start, Finish uint64
}

type mailboxKey struct {
	Owner   common.ActorId
	Message common.MessageId
}

// MailboxEntry is one stored message plus its holding interval
// (spec.md §3 "Mailbox").
type MailboxEntry struct {
	Message  StoredMessage
	Interval Interval
}

// StoredMessage is the user-facing message content held in the mailbox,
// detached from its ContextStore (a mailboxed message cannot be resumed,
// only replied to or claimed).
type StoredMessage struct {
	Id          common.MessageId
	Source      common.ActorId
	Destination common.ActorId
	Payload     []byte
	Value       uint64
}

// Mailbox is the (owner, message) → (StoredMessage, Interval) map
// (spec.md §3 "Mailbox").
type Mailbox struct {
	entries map[mailboxKey]MailboxEntry
}

// NewMailbox returns an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{entries: make(map[mailboxKey]MailboxEntry)}
}

// Insert adds msg to owner's mailbox for the given interval.
func (m *Mailbox) Insert(owner common.ActorId, msg StoredMessage, iv Interval) {
	m.entries[mailboxKey{owner, msg.Id}] = MailboxEntry{Message: msg, Interval: iv}
}

// Remove deletes the (owner, message) entry, returning it if present.
func (m *Mailbox) Remove(owner common.ActorId, id common.MessageId) (MailboxEntry, bool) {
	k := mailboxKey{owner, id}
	e, ok := m.entries[k]
	if ok {
		delete(m.entries, k)
	}
	return e, ok
}

// Get looks up without removing.
func (m *Mailbox) Get(owner common.ActorId, id common.MessageId) (MailboxEntry, bool) {
	e, ok := m.entries[mailboxKey{owner, id}]
	return e, ok
}

// Len returns the number of mailboxed messages.
func (m *Mailbox) Len() int { return len(m.entries) }
