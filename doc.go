// Package ringchannel implements a framed, lock-free ring buffer for a single
// producer and a single consumer, laid over memory the caller supplies. The
// memory may be an ordinary byte slice or a shared mapping (see package shm),
// in which case the producer and consumer can live in different processes.
//
// Each packet is a 4 byte header (id, payload size) followed by up to 65535
// payload bytes. Push and Pop never block: a full ring rejects the push with
// ErrFull, and an empty ring makes Pop report ok == false. Poller, Waiter and
// Spool build waiting and retrying on top of that.
package ringchannel
