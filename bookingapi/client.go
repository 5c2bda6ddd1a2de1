package bookingapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"sync"
	"time"

	"github.com/wfunc/gamecenter/booking"
	"github.com/wfunc/gamecenter/logger"
)

var ErrEmptyConfirmation = errors.New("booking service confirmed without a booking id")

// Client implements booking.API. It dials lazily and redials after the connection breaks;
// a failed call is never retried.
type Client struct {
	address string
	timeout time.Duration
	dial    func(ctx context.Context) (net.Conn, error)

	mutex sync.Mutex
	rpc   *rpc.Client
}

func NewClient(address string, timeout time.Duration) *Client {
	c := &Client{address: address, timeout: timeout}
	c.dial = func(ctx context.Context) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "tcp", c.address)
	}
	return c
}

// newClientWithConn wraps an established connection, used by tests.
func newClientWithConn(conn net.Conn, timeout time.Duration) *Client {
	return &Client{
		address: conn.RemoteAddr().String(),
		timeout: timeout,
		dial: func(context.Context) (net.Conn, error) {
			return nil, errors.New("redial not supported")
		},
		rpc: rpc.NewClient(conn),
	}
}

func (c *Client) conn(ctx context.Context) (*rpc.Client, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.rpc != nil {
		return c.rpc, nil
	}
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial booking service %s: %w", c.address, err)
	}
	c.rpc = rpc.NewClient(conn)
	return c.rpc, nil
}

func (c *Client) drop(broken *rpc.Client) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.rpc == broken {
		c.rpc.Close()
		c.rpc = nil
	}
}

// Submit sends req once and maps the reply.
func (c *Client) Submit(ctx context.Context, req booking.Request) (booking.Confirmation, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	client, err := c.conn(ctx)
	if err != nil {
		return booking.Confirmation{}, err
	}

	args := &SubmitArgs{Request: req}
	reply := &SubmitReply{}
	call := client.Go(ServiceName+".Submit", args, reply, make(chan *rpc.Call, 1))

	select {
	case <-ctx.Done():
		logger.Log.Warnw("booking submission abandoned", "request", req.RequestID, "error", ctx.Err())
		return booking.Confirmation{}, ctx.Err()
	case <-call.Done:
	}

	if call.Error != nil {
		// 服务端返回的错误不影响连接, 其他错误说明连接已断
		var serverErr rpc.ServerError
		if !errors.As(call.Error, &serverErr) {
			c.drop(client)
		}
		return booking.Confirmation{}, fmt.Errorf("booking service: %w", call.Error)
	}

	conf, err := reply.result(req)
	if err != nil {
		return conf, err
	}
	if conf.BookingID == "" {
		return booking.Confirmation{}, ErrEmptyConfirmation
	}
	return conf, nil
}

func (c *Client) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.rpc == nil {
		return nil
	}
	err := c.rpc.Close()
	c.rpc = nil
	return err
}
