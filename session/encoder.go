package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// CurrentSchemaVersion is the record wire format written by Encode.
const CurrentSchemaVersion = 1

var errInvalidSchemaVersion = errors.New("invalid session schema version")

// Encode serializes a Record into the fixed binary layout stored in Redis:
// version byte, length-prefixed strings, raw fingerprint digest, big-endian
// timestamps. The layout is explicit so Decode can fail closed on any
// truncated or foreign blob instead of trusting arbitrary shape.
func Encode(r *Record) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(CurrentSchemaVersion)

	if len(r.IdentityID) > 255 {
		return nil, errors.New("identity id too long")
	}
	buf.WriteByte(byte(len(r.IdentityID)))
	buf.WriteString(r.IdentityID)

	if len(r.Domain) > 255 {
		return nil, errors.New("domain too long")
	}
	buf.WriteByte(byte(len(r.Domain)))
	buf.WriteString(r.Domain)

	if len(r.ClientIP) > 255 {
		return nil, errors.New("client ip too long")
	}
	buf.WriteByte(byte(len(r.ClientIP)))
	buf.WriteString(r.ClientIP)

	buf.Write(r.FingerprintHash[:])

	if err := binary.Write(&buf, binary.BigEndian, r.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, r.LastActivityAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, r.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses an encoded Record. Any structural mismatch is an error;
// callers treat a decode failure the same as a missing session.
func Decode(data []byte) (*Record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != CurrentSchemaVersion {
		return nil, errInvalidSchemaVersion
	}

	r := &Record{SchemaVersion: version}

	identity, err := readLenPrefixed(reader)
	if err != nil {
		return nil, err
	}
	r.IdentityID = identity

	domain, err := readLenPrefixed(reader)
	if err != nil {
		return nil, err
	}
	r.Domain = domain

	clientIP, err := readLenPrefixed(reader)
	if err != nil {
		return nil, err
	}
	r.ClientIP = clientIP

	if _, err := io.ReadFull(reader, r.FingerprintHash[:]); err != nil {
		return nil, err
	}

	if err := binary.Read(reader, binary.BigEndian, &r.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &r.LastActivityAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &r.ExpiresAt); err != nil {
		return nil, err
	}

	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes in session blob")
	}

	return r, nil
}

func readLenPrefixed(reader *bytes.Reader) (string, error) {
	n, err := reader.ReadByte()
	if err != nil {
		return "", err
	}
	field := make([]byte, n)
	if _, err := io.ReadFull(reader, field); err != nil {
		return "", err
	}
	return string(field), nil
}
