package clientstate

import (
	"floodguard-be/pkg/details"
	"floodguard-be/pkg/protocol"
	"floodguard-be/pkg/session"
)

// Action is one input to Reduce.
type Action interface {
	isAction()
}

// EventReceived carries a decoded server event.
type EventReceived struct {
	Event protocol.Event
}

// DecodeFailed is a malformed frame. It never changes what is rendered.
type DecodeFailed struct {
	Err error
}

// TurnSubmitted records an utterance the transport accepted.
type TurnSubmitted struct {
	Utterance string
}

// ProjectSelected is the direct-interaction path: a marker was activated.
type ProjectSelected struct {
	Project protocol.Project
}

// NewsLoaded answers the FetchNews effect with the same Seq.
type NewsLoaded struct {
	Seq   int
	Items []protocol.Article
	Err   error
}

// WatchdogFired is the local turn timeout for turn Turn.
type WatchdogFired struct {
	Turn int
}

// Notice shows a local warning in the chat log.
type Notice struct {
	Text string
}

type ConnectionChanged struct {
	State session.State
}

func (EventReceived) isAction()     {}
func (DecodeFailed) isAction()      {}
func (TurnSubmitted) isAction()     {}
func (ProjectSelected) isAction()   {}
func (NewsLoaded) isAction()        {}
func (WatchdogFired) isAction()     {}
func (Notice) isAction()            {}
func (ConnectionChanged) isAction() {}

// Effect is work Reduce asks the Machine to perform.
type Effect interface {
	isEffect()
}

// StartWatchdog arms the timeout for Turn, replacing any earlier one.
type StartWatchdog struct {
	Turn int
}

type StopWatchdog struct{}

// FetchNews runs an out-of-band news lookup; the answer comes back as
// NewsLoaded{Seq}.
type FetchNews struct {
	Seq      int
	Criteria details.NewsCriteria
}

// EndTurn releases the transport's in-flight slot after a local timeout.
type EndTurn struct{}

func (StartWatchdog) isEffect() {}
func (StopWatchdog) isEffect()  {}
func (FetchNews) isEffect()     {}
func (EndTurn) isEffect()       {}
