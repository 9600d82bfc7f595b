package session

import (
	"encoding/json"

	"connect4_events/internal/domain"
	"connect4_events/internal/game"
	"connect4_events/internal/transport"
)

// stamp orders states under sequenced merging: seq first, the publishing
// seat breaks ties.
type stamp struct {
	seq    uint64
	origin game.Player
}

func (s stamp) less(o stamp) bool {
	if s.seq != o.seq {
		return s.seq < o.seq
	}
	return s.origin < o.origin
}

func (s stamp) next(origin game.Player) stamp {
	return stamp{seq: s.seq + 1, origin: origin}
}

// onStateEvent runs on the transport's dispatch goroutine. Decoding happens
// here; the merge happens on the loop.
func (c *Coordinator) onStateEvent(raw json.RawMessage) {
	remote, err := game.DecodeStateEvent(raw)
	if err != nil {
		eventsRejected.WithLabelValues(kindState).Inc()
		c.log.Warn("rejected state event", "error", err)
		return
	}
	c.post(func() { c.mergeRemote(remote) })
}

func (c *Coordinator) mergeRemote(remote game.RemoteState) {
	if c.Status() == Closed {
		return
	}
	if c.sequenced {
		in := stamp{seq: remote.Seq, origin: remote.Origin}
		if !c.version.less(in) {
			eventsStale.Inc()
			c.log.Debug("ignoring stale state event", "seq", remote.Seq, "origin", remote.Origin.String())
			return
		}
		c.version = in
	}
	c.state = c.reducer.Reduce(c.state, game.MergeRemoteState{Patch: remote.Patch})
	c.publishView()
}

func (c *Coordinator) onChatEvent(raw json.RawMessage) {
	msg, err := domain.DecodeChatMessage(raw)
	if err != nil {
		eventsRejected.WithLabelValues(kindChat).Inc()
		c.log.Warn("rejected chat event", "error", err)
		return
	}
	// the sender already appended its own message
	if msg.Player == c.name {
		return
	}
	c.post(func() {
		if c.Status() == Closed {
			return
		}
		c.chat = append(c.chat, msg)
		c.publishView()
	})
}

func (c *Coordinator) onTransportError(channel string) transport.ErrorHandler {
	return func(err error) {
		c.log.Warn("transport error", "channel", channel, "error", err)
	}
}
