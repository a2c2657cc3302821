/*
Package session runs conversation turns against persisted state.

It serializes turns of the same conversation across goroutines (and, with a
DistributedLocker, across replicas), loads or creates the conversation,
resolves a cached engine for its flow and saves the resulting state.
*/
package session
