package tcptransport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"idwallet/internal/audit"
	authservice "idwallet/internal/auth/service"
	authstore "idwallet/internal/auth/store"
	"idwallet/internal/dispatch"
	jwttoken "idwallet/internal/jwt_token"
	"idwallet/internal/protocol/command"
	"idwallet/internal/wallet/crypto"
	walletservice "idwallet/internal/wallet/service"
	walletstore "idwallet/internal/wallet/store"
)

const testTerminator = "###"

// ServerSuite drives the stream transport over real loopback connections
// with real in-memory services behind the dispatcher.
type ServerSuite struct {
	suite.Suite

	addr      string
	cancel    context.CancelFunc
	serveDone chan error
}

func (s *ServerSuite) SetupTest() {
	logger := slog.New(slog.DiscardHandler)

	inbox := make(chan audit.Event, 64)
	publisher := audit.NewPublisher(inbox, logger)
	worker := audit.NewWorker(audit.NewInMemoryStore(), inbox, logger)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() { _ = worker.Run(ctx) }()

	users := authstore.NewInMemoryUserStore()
	auth := authservice.New(
		users,
		authstore.NewInMemorySessionStore(),
		jwttoken.NewJWTService("stream-test-signing-key", "idwallet"),
		publisher,
		nil,
		logger,
		24*time.Hour,
		10*time.Minute,
	)
	s.Require().NoError(auth.Register(ctx, authservice.RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "correct-horse",
	}))

	sealer, err := crypto.NewSealer(bytes.Repeat([]byte{0x42}, 32))
	s.Require().NoError(err)
	wallet := walletservice.New(users, walletstore.NewInMemoryRecordStore(), sealer, publisher, logger)

	dispatcher := dispatch.New(auth, wallet, publisher, nil, logger, "stream")
	server := NewServer(Config{
		Terminator:     testTerminator,
		MaxFrameBuffer: 4096,
		ReadTimeout:    2 * time.Second,
	}, dispatcher, nil, logger)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)
	s.addr = ln.Addr().String()
	s.serveDone = make(chan error, 1)
	go func() { s.serveDone <- server.Serve(ctx, ln) }()
}

func (s *ServerSuite) TearDownTest() {
	s.cancel()
}

func (s *ServerSuite) dial() (net.Conn, *bufio.Reader) {
	conn, err := net.Dial("tcp", s.addr)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = conn.Close() })
	return conn, bufio.NewReader(conn)
}

func (s *ServerSuite) send(conn net.Conn, v any) {
	payload, err := json.Marshal(v)
	s.Require().NoError(err)
	_, err = conn.Write(append(payload, []byte(testTerminator)...))
	s.Require().NoError(err)
}

// readResponse reads one terminator-delimited envelope.
func (s *ServerSuite) readResponse(r *bufio.Reader) command.Response {
	var raw []byte
	for !bytes.HasSuffix(raw, []byte(testTerminator)) {
		b, err := r.ReadByte()
		s.Require().NoError(err)
		raw = append(raw, b)
	}
	raw = bytes.TrimSuffix(raw, []byte(testTerminator))

	var resp command.Response
	s.Require().NoError(json.Unmarshal(raw, &resp))
	return resp
}

func (s *ServerSuite) login(conn net.Conn, r *bufio.Reader) {
	s.send(conn, map[string]any{
		"message_type": "login",
		"content":      map[string]string{"username": "alice", "password": "correct-horse"},
	})
	resp := s.readResponse(r)
	s.Require().True(resp.Success, "login failed: %s", resp.Data)
}

func (s *ServerSuite) TestLoginThenRoundTrip() {
	conn, r := s.dial()
	s.login(conn, r)

	card := json.RawMessage(`{"name":"A","number":"DL-123"}`)
	s.send(conn, map[string]any{
		"message_type": "InsertIdentityCard",
		"content":      card,
	})
	resp := s.readResponse(r)
	s.True(resp.Success)
	s.Equal("InsertIdentityCard", resp.MessageType)

	s.send(conn, map[string]any{"message_type": "GetIdentityCard"})
	resp = s.readResponse(r)
	s.True(resp.Success)
	s.JSONEq(string(card), string(resp.Data))
}

func (s *ServerSuite) TestGatedCommandBeforeLogin() {
	conn, r := s.dial()

	s.send(conn, map[string]any{"message_type": "GetIdentityCard"})
	resp := s.readResponse(r)

	s.False(resp.Success)
	s.Equal("GetIdentityCard", resp.MessageType)
	var data map[string]string
	s.Require().NoError(json.Unmarshal(resp.Data, &data))
	s.Equal("authentication_required", data["error"])
}

func (s *ServerSuite) TestSessionIsPerConnection() {
	first, firstReader := s.dial()
	s.login(first, firstReader)

	second, secondReader := s.dial()
	s.send(second, map[string]any{"message_type": "WalletStatus"})
	resp := s.readResponse(secondReader)

	s.False(resp.Success, "a login on one connection must not authenticate another")
}

func (s *ServerSuite) TestCommandSplitAcrossWrites() {
	conn, r := s.dial()

	payload, err := json.Marshal(map[string]any{"message_type": "health_check"})
	s.Require().NoError(err)
	payload = append(payload, []byte(testTerminator)...)

	for _, b := range payload {
		_, err := conn.Write([]byte{b})
		s.Require().NoError(err)
	}

	resp := s.readResponse(r)
	s.True(resp.Success)
	s.Equal("health_check", resp.MessageType)
}

func (s *ServerSuite) TestPipelinedCommandsAnsweredInOrder() {
	conn, r := s.dial()
	s.login(conn, r)

	var batch []byte
	for _, t := range []string{"WalletStatus", "health_check", "GetIdentityCard"} {
		payload, err := json.Marshal(map[string]any{"message_type": t})
		s.Require().NoError(err)
		batch = append(batch, payload...)
		batch = append(batch, []byte(testTerminator)...)
	}
	_, err := conn.Write(batch)
	s.Require().NoError(err)

	s.Equal("WalletStatus", s.readResponse(r).MessageType)
	s.Equal("health_check", s.readResponse(r).MessageType)
	s.Equal("GetIdentityCard", s.readResponse(r).MessageType)
}

func (s *ServerSuite) TestEmptyFramesSkipped() {
	conn, r := s.dial()

	_, err := conn.Write([]byte(testTerminator + testTerminator))
	s.Require().NoError(err)

	s.send(conn, map[string]any{"message_type": "health_check"})
	resp := s.readResponse(r)
	s.True(resp.Success)
	s.Equal("health_check", resp.MessageType)
}

func (s *ServerSuite) TestUnknownTypeEchoedConnectionSurvives() {
	conn, r := s.dial()

	s.send(conn, map[string]any{"message_type": "DropTables"})
	resp := s.readResponse(r)
	s.False(resp.Success)
	s.Equal("DropTables", resp.MessageType)

	s.send(conn, map[string]any{"message_type": "health_check"})
	s.True(s.readResponse(r).Success)
}

func (s *ServerSuite) TestMalformedFrameRejected() {
	conn, r := s.dial()

	_, err := conn.Write([]byte("this is not json" + testTerminator))
	s.Require().NoError(err)

	resp := s.readResponse(r)
	s.False(resp.Success)
	var data map[string]string
	s.Require().NoError(json.Unmarshal(resp.Data, &data))
	s.Equal("bad_request", data["error"])
}

func (s *ServerSuite) TestOverflowDropsConnection() {
	conn, r := s.dial()

	junk := bytes.Repeat([]byte("x"), 8192)
	_, err := conn.Write(junk)
	s.Require().NoError(err)

	resp := s.readResponse(r)
	s.False(resp.Success)
	s.Equal("frame_overflow", resp.MessageType)
	var data map[string]string
	s.Require().NoError(json.Unmarshal(resp.Data, &data))
	s.Equal("frame_overflow", data["error"])

	// The server closes its side after the final envelope.
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = r.ReadByte()
	s.Error(err)
}

func (s *ServerSuite) TestShutdownWithActiveClient() {
	conn, r := s.dial()

	payload, err := json.Marshal(map[string]any{"message_type": "health_check"})
	s.Require().NoError(err)
	payload = append(payload, []byte(testTerminator)...)

	stopSend := make(chan struct{})
	defer close(stopSend)
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stopSend:
				return
			case <-ticker.C:
				if _, err := conn.Write(payload); err != nil {
					return
				}
			}
		}
	}()

	// One response proves the connection is live and chatty.
	s.Require().True(s.readResponse(r).Success)

	s.cancel()
	select {
	case err := <-s.serveDone:
		s.NoError(err)
	case <-time.After(2 * time.Second):
		s.Fail("server did not stop while a client kept sending commands")
	}
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}
