package server

import (
	"sync"

	"github.com/google/uuid"

	"github.com/wfunc/gamecenter/feed"
	"github.com/wfunc/gamecenter/logger"
	"github.com/wfunc/gamecenter/network"
	"github.com/wfunc/gamecenter/seat"
	"github.com/wfunc/gamecenter/session"
)

const streamBuffer = 16

type outbound struct {
	msgID uint16
	body  interface{}
}

// seatStream pushes seat snapshots of one center to a websocket client. It is a
// center.Watcher; pushes never block the feed and are dropped when the client lags.
type seatStream struct {
	id       string
	session  *session.Session
	conn     network.Connection
	centerID string // only touched by the read loop
	out      chan outbound
	done     chan struct{}
	once     sync.Once
}

func newSeatStream(sess *session.Session, conn network.Connection) *seatStream {
	return &seatStream{
		id:      "stream-" + uuid.NewString(),
		session: sess,
		conn:    conn,
		out:     make(chan outbound, streamBuffer),
		done:    make(chan struct{}),
	}
}

func (st *seatStream) ApplySnapshot(inv *seat.Inventory) {
	if inv == nil {
		return
	}
	st.push(network.MsgTypeSeatSnapshot, feed.SnapshotPayload{
		CenterID: inv.CenterID(),
		Seats:    inv.Seats(),
	})
}

func (st *seatStream) push(msgID uint16, body interface{}) {
	select {
	case <-st.done:
	case st.out <- outbound{msgID: msgID, body: body}:
	default:
		logger.Log.Warnw("seat stream lagging, dropping message", "session", st.session.ID, "msg", msgID)
	}
}

func (st *seatStream) writeLoop() {
	for {
		select {
		case m := <-st.out:
			if err := st.conn.SendJSON(m.msgID, m.body); err != nil {
				st.conn.Close()
				return
			}
		case <-st.done:
			return
		}
	}
}

func (st *seatStream) close() {
	st.once.Do(func() {
		close(st.done)
		st.conn.Close()
	})
}
