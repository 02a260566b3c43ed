package session

import (
	"github.com/GriffinCanCode/builderbridge/internal/domain/dispatch"
	"github.com/GriffinCanCode/builderbridge/internal/domain/protocol"
)

// Observer is notified about session events.
type Observer interface {
	dispatch.Observer
	MessageReceived(kind protocol.Kind)
	MalformedMessage()
	HandshakeCompleted()
	SessionReady()
	SaveRequested()
	SaveCompleted()
}

type nopObserver struct{}

func (nopObserver) RequestReceived(protocol.Kind)       {}
func (nopObserver) ResponseSent(protocol.Kind, string) {}
func (nopObserver) MessageReceived(protocol.Kind)       {}
func (nopObserver) MalformedMessage()                   {}
func (nopObserver) HandshakeCompleted()                 {}
func (nopObserver) SessionReady()                       {}
func (nopObserver) SaveRequested()                      {}
func (nopObserver) SaveCompleted()                      {}
