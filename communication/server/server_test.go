package server

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ginrummy/agent"
	"ginrummy/card"
	"ginrummy/communication"
	"ginrummy/communication/client"
	"ginrummy/engine"

	"github.com/stretchr/testify/require"
)

func newServer() *Server {
	return NewServer(func(int64) agent.Player { return agent.New(agent.WithSeed(11)) })
}

// pipe serves one end of an in-memory connection and returns the other.
func pipe(t *testing.T, s *Server) (communication.Conn, <-chan error) {
	t.Helper()
	serverEnd, clientEnd := net.Pipe()
	done := make(chan error, 1)
	go func() { done <- s.ServeConn(context.Background(), communication.NewStreamConn(serverEnd)) }()
	return communication.NewStreamConn(clientEnd), done
}

func TestServeConn(t *testing.T) {
	t.Run("answers callbacks", func(t *testing.T) {
		conn, done := pipe(t, newServer())
		p := client.New(conn)

		require.NoError(t, p.StartGame(0, 1, card.MustParseList("AC AH 6S 6D TC")))
		take, err := p.WillDrawFaceUpCard(card.MustParse("AS"))
		require.NoError(t, err)
		require.True(t, take)

		require.NoError(t, p.Close())
		require.NoError(t, <-done)
	})

	t.Run("violations are returned as errors", func(t *testing.T) {
		conn, done := pipe(t, newServer())
		p := client.New(conn)

		_, err := p.GetDiscard()
		var remote *communication.RemoteError
		require.ErrorAs(t, err, &remote)
		require.Contains(t, remote.Message, "protocol violation")

		require.NoError(t, p.Close())
		require.NoError(t, <-done)
	})

	t.Run("every connection gets its own player", func(t *testing.T) {
		ids := make(chan int64, 2)
		s := NewServer(func(conn int64) agent.Player {
			ids <- conn
			return agent.New(agent.WithSeed(uint64(conn)))
		})
		for i := 0; i < 2; i++ {
			conn, done := pipe(t, s)
			require.NoError(t, conn.WriteLine("reportScores 0 0"))
			line, err := conn.ReadLine()
			require.NoError(t, err)
			require.Equal(t, "ok", line)
			require.NoError(t, conn.Close())
			require.NoError(t, <-done)
		}
		require.Equal(t, int64(1), <-ids)
		require.Equal(t, int64(2), <-ids)
	})

	t.Run("malformed lines keep the connection", func(t *testing.T) {
		conn, done := pipe(t, newServer())

		require.NoError(t, conn.WriteLine("shuffle the deck"))
		line, err := conn.ReadLine()
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(line, "error "), line)

		require.NoError(t, conn.WriteLine(""))
		require.NoError(t, conn.WriteLine("reportScores 1 2"))
		line, err = conn.ReadLine()
		require.NoError(t, err)
		require.Equal(t, "ok", line, "Blank lines are skipped")

		require.NoError(t, conn.Close())
		require.NoError(t, <-done)
	})

	t.Run("cancelled context closes the connection", func(t *testing.T) {
		serverEnd, clientEnd := net.Pipe()
		defer clientEnd.Close()
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- newServer().ServeConn(ctx, communication.NewStreamConn(serverEnd)) }()

		cancel()
		require.ErrorIs(t, <-done, context.Canceled)
	})
}

func TestRemoteMatch(t *testing.T) {
	conn, done := pipe(t, newServer())
	remote := client.New(conn)

	local := agent.New(agent.WithSeed(12))
	winner, gm, err := engine.NewLocalEngine([2]agent.Player{local, remote}, engine.WithSeed(13)).Run(context.Background())
	require.NoError(t, err)
	require.False(t, gm.Forfeit, "The remote agent plays legally")
	require.Contains(t, []int{0, 1}, winner)
	require.Equal(t, gm.Scores, local.Scores())

	require.NoError(t, remote.Close())
	require.NoError(t, <-done)
}

func TestServe(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- newServer().Serve(ctx, l) }()

	p, err := client.Dial(ctx, l.Addr().String())
	require.NoError(t, err)
	require.NoError(t, p.StartGame(1, 1, card.MustParseList("AC 4H 7S TD KC")))
	take, err := p.WillDrawFaceUpCard(card.MustParse("8H"))
	require.NoError(t, err)
	require.False(t, take)

	cancel()
	require.NoError(t, <-served)
	require.NoError(t, p.Close())
}

func TestWebSocket(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(newServer().HandleWebSocket))
	defer ts.Close()

	p, err := client.DialWebSocket(context.Background(), "ws"+strings.TrimPrefix(ts.URL, "http"))
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.StartGame(0, 0, card.MustParseList("AC 2C 3C 4H 5H 6H 7S 8S 9S KD")))
	require.NoError(t, p.ReportDraw(0, card.MustParse("TD")))
	discard, err := p.GetDiscard()
	require.NoError(t, err)
	require.NoError(t, p.ReportDiscard(0, discard))

	melds, err := p.GetFinalMelds()
	require.NoError(t, err)
	require.Len(t, melds, 3, "Knocks with ten deadwood")
}
