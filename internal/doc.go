// Package internal holds small crypto helpers shared by the root package
// and the session store: session id generation, CSRF secrets, and
// fingerprint hashing. Nothing here performs I/O.
package internal
