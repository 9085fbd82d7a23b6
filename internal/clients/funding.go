package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Transfer is one observed incoming funding transfer.
type Transfer struct {
	From      string  `json:"from"`
	To        string  `json:"to"`
	AmountSOL float64 `json:"amountSol"`
	TxRef     string  `json:"txRef"`
	Timestamp int64   `json:"timestamp"` // unix seconds
}

// Time returns the transfer timestamp.
func (t Transfer) Time() time.Time {
	return time.Unix(t.Timestamp, 0).UTC()
}

// FundingTracer resolves the funding provenance of wallets.
type FundingTracer interface {
	IncomingTransfers(ctx context.Context, wallet string, since time.Time) ([]Transfer, error)
}

// HTTPFundingTracer implements FundingTracer over JSON-RPC.
type HTTPFundingTracer struct {
	rpc *RPCClient
}

var _ FundingTracer = (*HTTPFundingTracer)(nil)

// NewHTTPFundingTracer creates a funding tracer client.
func NewHTTPFundingTracer(endpoint string, opts ...RPCOption) *HTTPFundingTracer {
	return &HTTPFundingTracer{rpc: NewRPCClient(endpoint, opts...)}
}

// IncomingTransfers returns transfers into wallet after since, oldest
// first.
func (t *HTTPFundingTracer) IncomingTransfers(ctx context.Context, wallet string, since time.Time) ([]Transfer, error) {
	params := []interface{}{
		map[string]interface{}{
			"wallet": wallet,
			"since":  since.Unix(),
		},
	}
	var result []Transfer
	if err := t.rpc.Call(ctx, "getIncomingTransfers", params, &result); err != nil {
		return nil, fmt.Errorf("incoming transfers %s: %w", wallet, err)
	}
	return result, nil
}

// TransferStream delivers live funding transfers over a websocket,
// reconnecting with backoff until closed.
type TransferStream struct {
	endpoint string
	log      *slog.Logger

	out    chan Transfer
	done   chan struct{}
	closed atomic.Bool
}

// NewTransferStream connects to the tracer's websocket feed and starts
// the read loop. Transfers arrive on C until Close.
func NewTransferStream(ctx context.Context, endpoint string, log *slog.Logger) *TransferStream {
	if log == nil {
		log = slog.Default()
	}
	s := &TransferStream{
		endpoint: endpoint,
		log:      log,
		out:      make(chan Transfer, 256),
		done:     make(chan struct{}),
	}
	go s.run(ctx)
	return s
}

// C returns the transfer channel. It is closed when the stream stops.
func (s *TransferStream) C() <-chan Transfer {
	return s.out
}

// Close stops the stream.
func (s *TransferStream) Close() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.done)
	}
}

func (s *TransferStream) run(ctx context.Context) {
	defer close(s.out)

	delay := time.Second
	const maxDelay = 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		default:
		}

		if err := s.readOnce(ctx); err != nil {
			s.log.Warn("transfer stream disconnected", "error", err, "retry_in", delay)
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
			}
			continue
		}
		delay = time.Second
	}
}

func (s *TransferStream) readOnce(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	sub := map[string]interface{}{"method": "subscribeTransfers"}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	// Close the socket when the stream is shut down so ReadMessage
	// unblocks.
	go func() {
		select {
		case <-ctx.Done():
		case <-s.done:
		}
		conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		var tr Transfer
		if err := json.Unmarshal(msg, &tr); err != nil {
			s.log.Warn("malformed transfer message", "error", err)
			continue
		}
		select {
		case s.out <- tr:
		case <-ctx.Done():
			return nil
		case <-s.done:
			return nil
		}
	}
}
