package conversation

import (
	"github.com/google/uuid"
	"github.com/nomance-app/nomance/internal/domain"
	"github.com/nomance-app/nomance/internal/realtime"
)

// event is everything the view loop reacts to.
type event interface {
	isViewEvent()
}

type bootstrapped struct {
	match      *domain.MatchDetail
	matchErr   error
	history    []domain.Message
	historyErr error
}

type keystroke struct {
	text string
}

type submit struct {
	text      string
	fromInput bool
}

type writeDone struct {
	tempID uuid.UUID
	msg    *domain.Message
	err    error
}

// channelEvent and channelFailed carry the generation of the channel they
// came from; events of a replaced channel are ignored.
type channelEvent struct {
	gen uint64
	ev  realtime.Event
}

type channelFailed struct {
	gen uint64
	err error
}

type resubscribe struct{}

type invoke struct {
	fn func()
}

func (bootstrapped) isViewEvent()  {}
func (keystroke) isViewEvent()     {}
func (submit) isViewEvent()        {}
func (writeDone) isViewEvent()     {}
func (channelEvent) isViewEvent()  {}
func (channelFailed) isViewEvent() {}
func (resubscribe) isViewEvent()   {}
func (invoke) isViewEvent()        {}
