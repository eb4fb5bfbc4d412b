package handler

import (
	"bytes"

	"github.com/momentics/asynchttp/state"
)

// ResponseState is the per-connection decode buffer state maintained while
// processing one response cycle. A fresh ResponseState is created for every
// response cycle, including each hop of a redirect chain — the aggregate
// buffer is never reused across redirects (§9 second resolved open
// question).
type ResponseState struct {
	Head                        *state.ResponseHead
	Aggregate                   *bytes.Buffer
	AggregateEnabled            bool
	ReceivedBytes                int64
	FullResponseSent             bool
	WebsocketHandshakeSucceeded  bool
}

// NewResponseState creates decode state for one response cycle.
func NewResponseState(aggregate bool) *ResponseState {
	rs := &ResponseState{AggregateEnabled: aggregate}
	if aggregate {
		rs.Aggregate = &bytes.Buffer{}
	}
	return rs
}

// AppendChunk records a content chunk, advancing the running byte count and,
// if aggregation is enabled, appending it to the aggregate buffer.
func (rs *ResponseState) AppendChunk(data []byte) {
	rs.ReceivedBytes += int64(len(data))
	if rs.AggregateEnabled {
		rs.Aggregate.Write(data)
	}
}
