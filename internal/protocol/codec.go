package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf8"
)

// A frame is a 4-byte big-endian length followed by that many bytes of
// ciphertext. The ciphertext decrypts to the UTF-8 JSON encoding of
// exactly one command.

const frameHeaderLen = 4

// MaxFramePayload is the largest encrypted payload a frame can carry.
const MaxFramePayload = math.MaxUint32

// Codec frames, encrypts and encodes commands over a byte stream. It
// holds no mutable state; concurrent calls on disjoint streams are
// safe. Callers serialize access to a single stream direction.
type Codec struct {
	cipher Cipher
}

// NewCodec returns a codec using the given cipher, or the identity
// cipher when nil.
func NewCodec(c Cipher) Codec {
	if c == nil {
		c = IdentityCipher()
	}
	return Codec{cipher: c}
}

// WriteFrame encrypts payload and writes one full frame.
func (c Codec) WriteFrame(w io.Writer, payload []byte) error {
	sealed, err := c.cipher.Encrypt(payload)
	if err != nil {
		return fmt.Errorf("encrypt frame: %w", err)
	}
	if uint64(len(sealed)) > MaxFramePayload {
		return fmt.Errorf("%w: frame of %d bytes exceeds protocol limit", ErrInvalidInput, len(sealed))
	}
	var hdr [frameHeaderLen]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(sealed)))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := w.Write(sealed); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads one frame and returns the decrypted payload. A read
// of zero bytes at the frame boundary is an orderly end of stream and
// returns io.EOF; a short read inside the frame returns
// io.ErrUnexpectedEOF.
func (c Codec) ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [frameHeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		// io.ReadFull already yields io.EOF for a clean boundary and
		// io.ErrUnexpectedEOF for a torn header.
		return nil, err
	}
	payload := make([]byte, binary.BigEndian.Uint32(hdr[:]))
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	plain, err := c.cipher.Decrypt(payload)
	if err != nil {
		return nil, err
	}
	return plain, nil
}

// WriteClient sends one client→server command.
func (c Codec) WriteClient(w io.Writer, cmd ClientCommand) error {
	return c.writeCommand(w, cmd)
}

// WriteServer sends one server→client command.
func (c Codec) WriteServer(w io.Writer, cmd ServerCommand) error {
	return c.writeCommand(w, cmd)
}

func (c Codec) writeCommand(w io.Writer, cmd any) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}
	return c.WriteFrame(w, data)
}

// ReadClient receives one client→server command.
func (c Codec) ReadClient(r io.Reader) (ClientCommand, error) {
	var cmd ClientCommand
	err := c.readCommand(r, &cmd)
	return cmd, err
}

// ReadServer receives one server→client command.
func (c Codec) ReadServer(r io.Reader) (ServerCommand, error) {
	var cmd ServerCommand
	err := c.readCommand(r, &cmd)
	return cmd, err
}

func (c Codec) readCommand(r io.Reader, cmd any) error {
	payload, err := c.ReadFrame(r)
	if err != nil {
		return err
	}
	if !utf8.Valid(payload) {
		return fmt.Errorf("%w: frame payload is not valid UTF-8", ErrInvalidData)
	}
	if err := json.Unmarshal(payload, cmd); err != nil {
		if errors.Is(err, ErrInvalidData) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return nil
}
