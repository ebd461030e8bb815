package client

import (
	"context"
	"fmt"
	"net"
	"sync"

	"ginrummy/agent"
	"ginrummy/card"
	"ginrummy/communication"

	"github.com/gorilla/websocket"
)

// RemotePlayer is a Player whose callbacks are answered by a server in
// another process.
type RemotePlayer struct {
	conn communication.Conn
	mu   sync.Mutex // one command in flight
}

var _ agent.Player = (*RemotePlayer)(nil)

func New(conn communication.Conn) *RemotePlayer {
	return &RemotePlayer{conn: conn}
}

// Dial connects to a line protocol server over TCP.
func Dial(ctx context.Context, addr string) (*RemotePlayer, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return New(communication.NewStreamConn(c)), nil
}

// DialWebSocket connects to a websocket endpoint such as ws://host:port/ws.
func DialWebSocket(ctx context.Context, url string) (*RemotePlayer, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return New(communication.NewWebSocketConn(ws)), nil
}

func (p *RemotePlayer) Close() error { return p.conn.Close() }

func (p *RemotePlayer) call(r communication.Request) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.conn.WriteLine(communication.EncodeRequest(r)); err != nil {
		return "", fmt.Errorf("%s: %w", r.Command, err)
	}
	line, err := p.conn.ReadLine()
	if err != nil {
		return "", fmt.Errorf("%s: %w", r.Command, err)
	}
	return line, nil
}

func (p *RemotePlayer) report(r communication.Request) error {
	line, err := p.call(r)
	if err != nil {
		return err
	}
	if err := communication.DecodeOK(line); err != nil {
		return fmt.Errorf("%s: %w", r.Command, err)
	}
	return nil
}

func (p *RemotePlayer) StartGame(seat, starter int, hand []card.Card) error {
	return p.report(communication.Request{Command: communication.CmdStartGame, Seat: seat, Starter: starter, Cards: hand})
}

func (p *RemotePlayer) WillDrawFaceUpCard(c card.Card) (bool, error) {
	line, err := p.call(communication.Request{Command: communication.CmdWillDrawFaceUpCard, Card: c})
	if err != nil {
		return false, err
	}
	return communication.DecodeBool(line)
}

func (p *RemotePlayer) ReportDraw(seat int, c card.Card) error {
	return p.report(communication.Request{Command: communication.CmdReportDraw, Seat: seat, Card: c})
}

func (p *RemotePlayer) GetDiscard() (card.Card, error) {
	line, err := p.call(communication.Request{Command: communication.CmdGetDiscard})
	if err != nil {
		return card.None, err
	}
	return communication.DecodeCard(line)
}

func (p *RemotePlayer) ReportDiscard(seat int, c card.Card) error {
	return p.report(communication.Request{Command: communication.CmdReportDiscard, Seat: seat, Card: c})
}

func (p *RemotePlayer) GetFinalMelds() ([][]card.Card, error) {
	line, err := p.call(communication.Request{Command: communication.CmdGetFinalMelds})
	if err != nil {
		return nil, err
	}
	return communication.DecodeMelds(line)
}

func (p *RemotePlayer) ReportFinalMelds(seat int, melds [][]card.Card) error {
	return p.report(communication.Request{Command: communication.CmdReportFinalMelds, Seat: seat, Melds: melds})
}

func (p *RemotePlayer) ReportScores(scores [2]int) error {
	return p.report(communication.Request{Command: communication.CmdReportScores, Scores: scores})
}

func (p *RemotePlayer) ReportLayoff(seat int, c card.Card, meld []card.Card) error {
	return p.report(communication.Request{Command: communication.CmdReportLayoff, Seat: seat, Card: c, Cards: meld})
}

func (p *RemotePlayer) ReportFinalHand(seat int, hand []card.Card) error {
	return p.report(communication.Request{Command: communication.CmdReportFinalHand, Seat: seat, Cards: hand})
}
