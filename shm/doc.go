// Package shm maps named shared-memory segments that hold a ring channel, so
// that a producer and a consumer in different processes can attach to the
// same ring. On Linux segments live in /dev/shm.
package shm
