// Copyright (c) 2025 Binadox (https://binadox.com)
// This software is licensed under the zlib license. See LICENSE file for details.

// Package nativehost speaks the browser native messaging protocol: each
// message is UTF-8 JSON preceded by its length as a 32-bit little-endian
// integer.
package nativehost

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const (
	// MaxOutgoing is the browser's limit for host-to-browser messages
	MaxOutgoing = 1024 * 1024

	// MaxIncoming bounds what we accept from the browser. The protocol
	// allows up to 4 GiB; tab and page events are tiny.
	MaxIncoming = 8 * 1024 * 1024
)

var (
	// ErrMessageTooLarge is returned for frames over the size limits
	ErrMessageTooLarge = errors.New("native message too large")

	// ErrMalformedMessage is returned for frames that are not valid JSON
	ErrMalformedMessage = errors.New("malformed native message")
)

// ReadMessage reads one framed message. Returns io.EOF when the browser
// closed the port between messages.
func ReadMessage(r io.Reader) ([]byte, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("truncated length prefix: %w", err)
		}
		return nil, err
	}
	if length > MaxIncoming {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, length)
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("truncated message body: %w", err)
	}
	return buf, nil
}

// WriteMessage frames and writes v as JSON
func WriteMessage(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if len(data) > MaxOutgoing {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(data))
	}

	frame := make([]byte, 4+len(data))
	binary.LittleEndian.PutUint32(frame, uint32(len(data)))
	copy(frame[4:], data)

	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}
