package paper

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paper-cache/go-paper/wire"
)

// fakeServer is an in-process paper-cache server speaking the real wire
// format over real TCP, enough of it to exercise every client operation and
// to inject transport failures.
type fakeServer struct {
	t  *testing.T
	ln net.Listener

	mu      sync.Mutex
	entries map[string]fakeEntry
	maxSize uint64
	policy  wire.Policy
	gets    uint64
	sets    uint64
	dels    uint64
	started time.Time

	// authToken, when non-empty, must be presented before any other
	// operation succeeds. Guarded by mu.
	authToken string

	// handshakeErr, when set, is sent as the greeting frame. Guarded by mu.
	handshakeErr *wire.ProtocolError

	// delay is applied before writing each response.
	delay atomic.Int64 // time.Duration

	// dropNextResponse makes the server write half of the next response
	// frame and close the connection.
	dropNextResponse atomic.Bool

	// bytesIn counts request bytes received after the greeting.
	bytesIn atomic.Int64

	wg sync.WaitGroup
}

type fakeEntry struct {
	value   []byte
	expires time.Time // zero means no expiry
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	s := &fakeServer{
		t:       t,
		ln:      ln,
		entries: make(map[string]fakeEntry),
		maxSize: 1 << 20,
		policy:  wire.LRU,
		started: time.Now(),
	}

	s.wg.Add(1)
	go s.acceptLoop()

	t.Cleanup(s.close)

	return s
}

func (s *fakeServer) close() {
	_ = s.ln.Close()
	s.wg.Wait()
}

// addr returns the server's paper:// address.
func (s *fakeServer) addr() string {
	return Scheme + "://" + s.ln.Addr().String()
}

// requireAuth makes every connection present token before other operations.
func (s *fakeServer) requireAuth(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authToken = token
}

// failHandshake makes the server greet new connections with err and hang up.
func (s *fakeServer) failHandshake(err *wire.ProtocolError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handshakeErr = err
}

func (s *fakeServer) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serve(conn)
		}()
	}
}

func (s *fakeServer) serve(conn net.Conn) {
	defer conn.Close()

	s.mu.Lock()
	handshakeErr := s.handshakeErr
	authed := s.authToken == ""
	s.mu.Unlock()

	greeting := wire.Ack()
	if handshakeErr != nil {
		greeting = wire.Fail(handshakeErr)
	}
	frame, err := wire.AppendResponse(nil, greeting, wire.ShapeAck)
	if err != nil {
		s.t.Errorf("encode greeting: %v", err)
		return
	}
	if _, err := conn.Write(frame); err != nil {
		return
	}
	if handshakeErr != nil {
		return
	}

	var buf []byte
	chunk := make([]byte, 4096)
	for {
		cmd, n, err := wire.DecodeCommand(buf)
		if errors.Is(err, wire.ErrNeedMoreData) {
			rn, rerr := conn.Read(chunk)
			if rn > 0 {
				s.bytesIn.Add(int64(rn))
				buf = append(buf, chunk[:rn]...)
				continue
			}
			if rerr != nil {
				return
			}
			continue
		}
		if err != nil {
			s.t.Errorf("decode command: %v", err)
			return
		}
		buf = buf[n:]

		resp := s.handle(cmd, &authed)

		if d := time.Duration(s.delay.Load()); d > 0 {
			time.Sleep(d)
		}

		frame, err := wire.AppendResponse(nil, resp, cmd.Shape())
		if err != nil {
			s.t.Errorf("encode response: %v", err)
			return
		}

		if s.dropNextResponse.CompareAndSwap(true, false) {
			_, _ = conn.Write(frame[:len(frame)/2])
			return
		}

		if _, err := conn.Write(frame); err != nil {
			return
		}
	}
}

func (s *fakeServer) handle(cmd *wire.Command, authed *bool) *wire.Response {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cmd.Op == wire.OpAuth {
		if cmd.Token != s.authToken {
			return wire.Fail(wire.ErrUnauthorized)
		}
		*authed = true
		return wire.Ack()
	}

	if !*authed {
		return wire.Fail(wire.ErrUnauthorized)
	}

	switch cmd.Op {
	case wire.OpPing:
		return &wire.Response{OK: true, Value: []byte("pong")}

	case wire.OpVersion:
		return &wire.Response{OK: true, Value: []byte("0.3.0")}

	case wire.OpGet:
		s.gets++
		entry, ok := s.lookup(cmd.Key)
		if !ok {
			return wire.Fail(wire.ErrKeyNotFound)
		}
		return &wire.Response{OK: true, Value: entry.value}

	case wire.OpPeek:
		entry, ok := s.lookup(cmd.Key)
		if !ok {
			return wire.Fail(wire.ErrKeyNotFound)
		}
		return &wire.Response{OK: true, Value: entry.value}

	case wire.OpSet:
		if len(cmd.Value) == 0 {
			return wire.Fail(wire.ErrZeroValueSize)
		}
		if uint64(len(cmd.Value)) > s.maxSize {
			return wire.Fail(wire.ErrExceedingValueSize)
		}
		s.sets++
		entry := fakeEntry{value: cmd.Value}
		if cmd.TTL > 0 {
			entry.expires = time.Now().Add(time.Duration(cmd.TTL) * time.Second)
		}
		s.entries[cmd.Key] = entry
		return wire.Ack()

	case wire.OpDel:
		if _, ok := s.lookup(cmd.Key); !ok {
			return wire.Fail(wire.ErrKeyNotFound)
		}
		s.dels++
		delete(s.entries, cmd.Key)
		return wire.Ack()

	case wire.OpHas:
		_, ok := s.lookup(cmd.Key)
		return &wire.Response{OK: true, Has: ok}

	case wire.OpGetTTL:
		entry, ok := s.lookup(cmd.Key)
		if !ok {
			return wire.Fail(wire.ErrKeyNotFound)
		}
		if entry.expires.IsZero() {
			return &wire.Response{OK: true, TTL: 0}
		}
		remaining := time.Until(entry.expires)
		secs := uint32((remaining + time.Second - 1) / time.Second)
		return &wire.Response{OK: true, TTL: secs}

	case wire.OpSetTTL:
		entry, ok := s.lookup(cmd.Key)
		if !ok {
			return wire.Fail(wire.ErrKeyNotFound)
		}
		if cmd.TTL == 0 {
			entry.expires = time.Time{}
		} else {
			entry.expires = time.Now().Add(time.Duration(cmd.TTL) * time.Second)
		}
		s.entries[cmd.Key] = entry
		return wire.Ack()

	case wire.OpSizeOf:
		entry, ok := s.lookup(cmd.Key)
		if !ok {
			return wire.Fail(wire.ErrKeyNotFound)
		}
		return &wire.Response{OK: true, Size: uint32(len(entry.value))}

	case wire.OpResize:
		if cmd.Size == 0 {
			return wire.Fail(wire.ErrZeroCacheSize)
		}
		s.maxSize = cmd.Size
		return wire.Ack()

	case wire.OpPolicy:
		s.policy = cmd.Policy
		return wire.Ack()

	case wire.OpClear:
		s.entries = make(map[string]fakeEntry)
		return wire.Ack()

	case wire.OpWipe:
		s.entries = make(map[string]fakeEntry)
		s.gets, s.sets, s.dels = 0, 0, 0
		return wire.Ack()

	case wire.OpStatus:
		var used uint64
		for _, e := range s.entries {
			used += uint64(len(e.value))
		}
		return &wire.Response{OK: true, Status: &wire.Status{
			PID:        4242,
			MaxSize:    s.maxSize,
			UsedSize:   used,
			NumObjects: uint64(len(s.entries)),
			RSS:        1 << 22,
			HWM:        1 << 23,
			TotalGets:  s.gets,
			TotalSets:  s.sets,
			TotalDels:  s.dels,
			MissRatio:  0.25,
			Policies:   []wire.Policy{wire.LRU, wire.LFU, wire.Sieve},
			Policy:     s.policy,
			Uptime:     uint64(time.Since(s.started) / time.Second),
		}}

	default:
		return wire.Fail(wire.ErrServerInternal)
	}
}

// lookup must be called with s.mu held.
func (s *fakeServer) lookup(key string) (fakeEntry, bool) {
	entry, ok := s.entries[key]
	if !ok {
		return fakeEntry{}, false
	}
	if !entry.expires.IsZero() && time.Now().After(entry.expires) {
		delete(s.entries, key)
		return fakeEntry{}, false
	}
	return entry, true
}
