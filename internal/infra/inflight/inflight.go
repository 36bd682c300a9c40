// Package inflight provides short-lived per-key markers that reject a second
// payment for the same payer while the first is still running.
package inflight

import "bot-access/internal/payments"

// ErrInFlight is returned by Acquire when the key is already held.
var ErrInFlight = payments.ErrInFlight

var (
	_ payments.Locker = (*RedisLocker)(nil)
	_ payments.Locker = (*LocalLocker)(nil)
)
