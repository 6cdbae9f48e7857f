package transport

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meshpair/meshpair-go/pkg/ident"
	"github.com/meshpair/meshpair-go/pkg/log"
)

// DefaultPort is the UDP port nodes listen on.
const DefaultPort = 5683

// DefaultRequestTimeout bounds the wait for a response.
const DefaultRequestTimeout = 5 * time.Second

// UDP transport errors.
var (
	ErrNotRunning     = errors.New("transport not running")
	ErrAlreadyRunning = errors.New("transport already running")
	ErrTimeout        = errors.New("request timed out")
	ErrClosed         = errors.New("transport closed")
	ErrTokenBusy      = errors.New("token already awaiting a response")
)

// UDPConfig configures the UDP transport.
type UDPConfig struct {
	// Conn is an already bound socket. If nil, Start listens on ListenAddr.
	Conn net.PacketConn

	// ListenAddr is the local address (default ":5683").
	ListenAddr string

	// Port is the remote port used for outbound datagrams (default 5683).
	// Replies to inbound datagrams go to the sender's source port.
	Port int

	// LocalName is this node's device name, sent in every envelope.
	LocalName string

	// Handler receives inbound messages other than responses.
	Handler Handler

	// RequestTimeout bounds how long SendRequest and SendObserve wait for a
	// response (default 5s).
	RequestTimeout time.Duration

	// Logger for operational logging. Nil disables.
	Logger *slog.Logger

	// Events receives protocol events. Nil disables.
	Events *log.Emitter
}

type pendingRequest struct {
	handler ResponseHandler
	timer   *time.Timer
}

// UDP implements Transport over a datagram socket.
type UDP struct {
	config UDPConfig

	conn    net.PacketConn
	running atomic.Bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc

	mu      sync.Mutex
	pending map[ident.Token]*pendingRequest
}

// NewUDP creates a UDP transport. Call Start before sending.
func NewUDP(config UDPConfig) *UDP {
	if config.ListenAddr == "" {
		config.ListenAddr = fmt.Sprintf(":%d", DefaultPort)
	}
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultRequestTimeout
	}
	return &UDP{
		config:  config,
		pending: make(map[ident.Token]*pendingRequest),
	}
}

// SetHandler sets the inbound handler. It must be called before Start.
func (u *UDP) SetHandler(h Handler) {
	u.config.Handler = h
}

// Start binds the socket (if needed) and starts the read loop.
func (u *UDP) Start(ctx context.Context) error {
	if u.running.Load() {
		return ErrAlreadyRunning
	}

	conn := u.config.Conn
	if conn == nil {
		var err error
		conn, err = net.ListenPacket("udp", u.config.ListenAddr)
		if err != nil {
			return fmt.Errorf("failed to listen: %w", err)
		}
	}
	u.conn = conn

	ctx, u.cancel = context.WithCancel(ctx)
	u.running.Store(true)

	u.wg.Add(1)
	go u.readLoop()

	go func() {
		<-ctx.Done()
		u.Stop()
	}()

	u.info("transport started", "addr", conn.LocalAddr().String())
	return nil
}

// Stop closes the socket and fails outstanding requests with ErrClosed.
func (u *UDP) Stop() error {
	if !u.running.CompareAndSwap(true, false) {
		return nil
	}
	u.cancel()
	err := u.conn.Close()
	u.wg.Wait()

	u.mu.Lock()
	pending := u.pending
	u.pending = make(map[ident.Token]*pendingRequest)
	u.mu.Unlock()

	for _, p := range pending {
		p.timer.Stop()
		p.handler(nil, ErrClosed)
	}
	return err
}

// LocalAddr returns the bound address, or nil before Start.
func (u *UDP) LocalAddr() net.Addr {
	if u.conn == nil {
		return nil
	}
	return u.conn.LocalAddr()
}

// SendNotification sends a notification packet (token || payload) to addr.
func (u *UDP) SendNotification(addr ident.Address, packet []byte) error {
	token, payload, err := DecodeNotification(packet)
	if err != nil {
		return err
	}
	return u.send(u.peer(addr), &Message{
		Kind:    KindNotification,
		Token:   token[:],
		Payload: payload,
	})
}

// SendRequest sends a request for path to addr and registers handler for
// the response.
func (u *UDP) SendRequest(addr ident.Address, path string, payload []byte, handler ResponseHandler) error {
	if handler == nil {
		return errors.New("nil response handler")
	}
	if !u.running.Load() {
		return ErrNotRunning
	}

	u.mu.Lock()
	token := u.newTokenLocked()
	u.registerLocked(token, handler)
	u.mu.Unlock()

	return u.sendPending(addr, token, &Message{
		Kind:    KindRequest,
		Token:   token[:],
		Path:    path,
		Payload: payload,
	})
}

// SendObserve asks addr to push changes of path under token. A non-nil
// handler receives the response correlated by token.
func (u *UDP) SendObserve(addr ident.Address, path string, token ident.Token, handler ResponseHandler) error {
	msg := &Message{
		Kind:  KindObserve,
		Token: token[:],
		Path:  path,
	}
	if handler == nil {
		return u.send(u.peer(addr), msg)
	}
	if !u.running.Load() {
		return ErrNotRunning
	}

	u.mu.Lock()
	if _, busy := u.pending[token]; busy {
		u.mu.Unlock()
		return ErrTokenBusy
	}
	u.registerLocked(token, handler)
	u.mu.Unlock()

	return u.sendPending(addr, token, msg)
}

// registerLocked records handler as waiting for the response to token and
// arms its timeout.
func (u *UDP) registerLocked(token ident.Token, handler ResponseHandler) {
	p := &pendingRequest{handler: handler}
	p.timer = time.AfterFunc(u.config.RequestTimeout, func() {
		if u.takePending(token) != nil {
			handler(nil, ErrTimeout)
		}
	})
	u.pending[token] = p
}

// sendPending sends msg and drops the pending entry if the send fails.
func (u *UDP) sendPending(addr ident.Address, token ident.Token, msg *Message) error {
	if err := u.send(u.peer(addr), msg); err != nil {
		if p := u.takePending(token); p != nil {
			p.timer.Stop()
		}
		return err
	}
	return nil
}

// SendCancel ends the Observe relationship identified by token.
func (u *UDP) SendCancel(addr ident.Address, token ident.Token) error {
	return u.send(u.peer(addr), &Message{
		Kind:  KindCancel,
		Token: token[:],
	})
}

func (u *UDP) peer(addr ident.Address) net.Addr {
	return &net.UDPAddr{IP: addr.IP(), Port: u.config.Port}
}

func (u *UDP) send(to net.Addr, msg *Message) error {
	if !u.running.Load() {
		return ErrNotRunning
	}
	msg.Device = u.config.LocalName

	data, err := EncodeMessage(msg)
	if err != nil {
		return err
	}
	if _, err := u.conn.WriteTo(data, to); err != nil {
		u.config.Events.Error(log.LayerTransport, err, "send "+msg.Kind.String())
		return fmt.Errorf("send %s to %s: %w", msg.Kind, to, err)
	}
	u.config.Events.Message(log.DirectionOut, "", hostOf(to), messageEvent(msg))
	return nil
}

func (u *UDP) readLoop() {
	defer u.wg.Done()

	buf := make([]byte, MaxDatagramSize+1)
	for {
		n, from, err := u.conn.ReadFrom(buf)
		if err != nil {
			if !u.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			u.warn("read failed", "error", err)
			continue
		}

		msg, err := DecodeMessage(buf[:n])
		if err != nil {
			u.debug("dropping datagram", "from", from.String(), "error", err)
			u.config.Events.Error(log.LayerTransport, err, "decode from "+from.String())
			continue
		}
		u.config.Events.Message(log.DirectionIn, msg.Device, hostOf(from), messageEvent(msg))
		u.dispatch(from, msg)
	}
}

func (u *UDP) dispatch(from net.Addr, msg *Message) {
	if msg.Kind == KindResponse {
		p := u.takePending(msg.ObserveToken())
		if p == nil {
			u.debug("unsolicited response", "token", msg.ObserveToken().String())
			return
		}
		p.timer.Stop()
		p.handler(msg, nil)
		return
	}

	if u.config.Handler == nil {
		return
	}
	udpAddr, ok := from.(*net.UDPAddr)
	if !ok {
		return
	}
	src, err := ident.AddressFromIP(udpAddr.IP)
	if err != nil {
		u.debug("unusable source address", "from", from.String())
		return
	}

	reply := u.config.Handler.HandleMessage(src, msg)
	if reply == nil {
		return
	}
	if len(reply.Token) == 0 {
		reply.Token = msg.Token
	}
	if err := u.send(from, reply); err != nil {
		u.warn("reply failed", "to", from.String(), "error", err)
	}
}

func (u *UDP) takePending(token ident.Token) *pendingRequest {
	u.mu.Lock()
	defer u.mu.Unlock()
	p := u.pending[token]
	delete(u.pending, token)
	return p
}

// newTokenLocked draws a non-zero token not already awaiting a response.
func (u *UDP) newTokenLocked() ident.Token {
	for {
		t := ident.RandomToken()
		if _, busy := u.pending[t]; !busy {
			return t
		}
	}
}

func messageEvent(msg *Message) log.MessageEvent {
	ev := log.MessageEvent{
		Kind:        msg.Kind.String(),
		Token:       hex.EncodeToString(msg.Token),
		Path:        msg.Path,
		PayloadSize: len(msg.Payload),
	}
	if msg.Kind == KindResponse {
		ev.Status = msg.Status.String()
	}
	return ev
}

func hostOf(addr net.Addr) string {
	if u, ok := addr.(*net.UDPAddr); ok {
		return u.IP.String()
	}
	return addr.String()
}

func (u *UDP) info(msg string, args ...any) {
	if u.config.Logger != nil {
		u.config.Logger.Info(msg, args...)
	}
}

func (u *UDP) debug(msg string, args ...any) {
	if u.config.Logger != nil {
		u.config.Logger.Debug(msg, args...)
	}
}

func (u *UDP) warn(msg string, args ...any) {
	if u.config.Logger != nil {
		u.config.Logger.Warn(msg, args...)
	}
}

var _ Transport = (*UDP)(nil)
