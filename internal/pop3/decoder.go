package pop3

import (
	"io"
)

// decoder is a streaming character-level state machine that un-stuffs
// dot-stuffed POP3 multi-line data, normalises CRLF to LF, and detects the
// terminating CRLF.CRLF octet (§4.B). It is the only place in the core
// that understands the wire-level byte-stuffing rule; the command engine
// and session orchestrator deal exclusively in decoded bytes.
//
// The state numbering matches spec §4.B exactly so the transition table is
// auditable line-by-line against the table in the design document.
type decoderState int

const (
	stateData      decoderState = iota // 0: plain data
	stateCR                            // 1: saw \r, waiting for \n
	stateLineStart                     // 2: just emitted \n after \r\n
	stateDot                           // 3: saw '.' right after \r\n
	stateDotCR                         // 4: saw '.' then \r after \r\n — maybe terminator
	stateBareLF                        // 5: just emitted \n after a lone \n
	stateBareDot                       // 6: saw '.' right after a lone \n
)

const stagingSize = 1024

// decoder holds the state machine and its output staging buffer. A new
// decoder must be created per message; it is not reusable once Decode
// returns.
type decoder struct {
	state   decoderState
	staging [stagingSize]byte
	n       int
}

// reader is the minimal surface the decoder needs from the transport: a
// chunked, non-blocking-aware byte reader.
type reader interface {
	RecvBlock(buf []byte) (int, error)
}

// Decode reads fixed-size chunks from src until the CRLF.CRLF terminator is
// observed, writing the decoded message bytes (dot-unstuffed, CRLF
// normalised to LF, terminator stripped) to dst. It returns the number of
// decoded bytes written, or an error if the stream ended, the transport
// failed, or dst could not absorb a flush.
//
// Decode tolerates the terminator arriving split across arbitrarily many
// chunk boundaries: each byte advances the state machine independently of
// how many bytes a single RecvBlock call returned.
func (d *decoder) Decode(src reader, dst io.Writer) (int64, error) {
	var total int64
	chunk := make([]byte, 4096)

	for {
		n, err := src.RecvBlock(chunk)
		if n == 0 && err == nil {
			// poll timeout with nothing to read yet; try again
			continue
		}
		if n > 0 {
			done, werr := d.feed(chunk[:n], dst, &total)
			if werr != nil {
				return total, werr
			}
			if done {
				if d.n > 0 {
					if werr := d.flush(dst, &total); werr != nil {
						return total, werr
					}
				}
				return total, nil
			}
		}
		if err != nil {
			return 0, err
		}
	}
}

// feed runs the state machine over buf, returning true once the
// terminator has been fully consumed.
func (d *decoder) feed(buf []byte, dst io.Writer, total *int64) (bool, error) {
	for i := 0; i < len(buf); i++ {
		b := buf[i]

	reprocess:
		switch d.state {
		case stateDotCR:
			// state 4: saw "\r\n.\r" — only a following '\n' completes the
			// terminator; anything else means the dot was real data and the
			// '\r' we swallowed belongs to the next token, so we replay it.
			if b == '\n' {
				return true, nil
			}
			if err := d.emit('.', dst, total); err != nil {
				return false, err
			}
			d.state = stateCR
			goto reprocess

		case stateDot, stateBareDot:
			// states 3/6: saw '.' right after a line start.
			if d.state == stateDot && b == '\r' {
				d.state = stateDotCR
				continue
			}
			if b == '.' {
				// RFC 1939 byte-stuffing: ".." on the wire means a single
				// literal '.' of message data.
				if err := d.emit('.', dst, total); err != nil {
					return false, err
				}
				d.state = stateData
				continue
			}
			if err := d.emit('.', dst, total); err != nil {
				return false, err
			}
			d.state = stateData
			goto reprocess

		case stateLineStart, stateBareLF:
			// states 2/5: just emitted a line terminator.
			if b == '.' {
				if d.state == stateLineStart {
					d.state = stateDot
				} else {
					d.state = stateBareDot
				}
				continue
			}
			d.state = stateData
			goto reprocess

		case stateCR:
			// state 1: saw a lone '\r'.
			if b == '\n' {
				if err := d.emit('\n', dst, total); err != nil {
					return false, err
				}
				d.state = stateLineStart
				continue
			}
			if err := d.emit('\r', dst, total); err != nil {
				return false, err
			}
			d.state = stateData
			goto reprocess

		default: // stateData
			if b == '\r' {
				d.state = stateCR
				continue
			}
			if b == '\n' {
				if err := d.emit('\n', dst, total); err != nil {
					return false, err
				}
				d.state = stateBareLF
				continue
			}
			if err := d.emit(b, dst, total); err != nil {
				return false, err
			}
		}
	}
	return false, nil
}

func (d *decoder) emit(b byte, dst io.Writer, total *int64) error {
	if d.n == len(d.staging) {
		if err := d.flush(dst, total); err != nil {
			return err
		}
	}
	d.staging[d.n] = b
	d.n++
	return nil
}

func (d *decoder) flush(dst io.Writer, total *int64) error {
	if d.n == 0 {
		return nil
	}
	n, err := dst.Write(d.staging[:d.n])
	*total += int64(n)
	d.n = 0
	if err != nil {
		return err
	}
	return nil
}
