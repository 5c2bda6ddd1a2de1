package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"github.com/wfunc/gamecenter/feed"
	"github.com/wfunc/gamecenter/network"
	"github.com/wfunc/gamecenter/seat"
)

// apiClient talks to one server for one session.
type apiClient struct {
	host      string
	http      *http.Client
	sessionID string
	conn      network.Connection
}

func newAPIClient(host string) *apiClient {
	return &apiClient{
		host: host,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *apiClient) url(path string) string {
	u := url.URL{Scheme: "http", Host: c.host, Path: path}
	return u.String()
}

func (c *apiClient) do(method, path string, body, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequest(method, c.url(path), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Code  string `json:"code"`
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, apiErr.Error)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *apiClient) Login(token string) error {
	var resp struct {
		SessionID string `json:"session_id"`
	}
	if err := c.do(http.MethodPost, "/api/v1/sessions", map[string]string{"token": token}, &resp); err != nil {
		return err
	}
	c.sessionID = resp.SessionID
	return nil
}

func (c *apiClient) Logout() {
	if c.sessionID != "" {
		_ = c.do(http.MethodDelete, "/api/v1/sessions/"+c.sessionID, nil, nil)
	}
}

func (c *apiClient) Begin(centerID string) error {
	return c.do(http.MethodPost, "/api/v1/sessions/"+c.sessionID+"/centers/"+centerID, nil, nil)
}

func (c *apiClient) Select(seatID string) error {
	return c.do(http.MethodPost, "/api/v1/sessions/"+c.sessionID+"/seats/"+seatID, nil, nil)
}

func (c *apiClient) Deselect(seatID string) error {
	return c.do(http.MethodDelete, "/api/v1/sessions/"+c.sessionID+"/seats/"+seatID, nil, nil)
}

func (c *apiClient) DialStream() error {
	u := url.URL{Scheme: "ws", Host: c.host, Path: "/api/v1/sessions/" + c.sessionID + "/stream"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial seat stream: %w", err)
	}
	c.conn = network.NewWSConnection(conn)
	return nil
}

func (c *apiClient) CloseStream() {
	if c.conn != nil {
		c.conn.Close()
	}
}

func (c *apiClient) RequestSeats(centerID string) error {
	if c.conn == nil {
		return errors.New("seat stream not connected")
	}
	return c.conn.SendJSON(network.MsgTypeSeatRequest, network.SeatRequest{CenterID: centerID})
}

// ReadLoop forwards stream packets to the program until the connection drops.
func (c *apiClient) ReadLoop(send func(tea.Msg)) {
	for {
		packet, err := c.conn.ReadPacket()
		if err != nil {
			send(disconnectedMsg{err: err})
			return
		}
		switch packet.MsgID {
		case network.MsgTypeSeatSnapshot:
			var payload feed.SnapshotPayload
			if err := packet.Unmarshal(&payload); err != nil {
				send(errMsg{err: err})
				continue
			}
			send(seatsMsg{inv: seat.NewInventory(payload.CenterID, payload.Seats)})
		case network.MsgTypeSeatError:
			var payload network.ErrorPayload
			_ = packet.Unmarshal(&payload)
			send(errMsg{err: fmt.Errorf("%s: %s", payload.Code, payload.Message)})
		}
	}
}
