package fsbinding

import (
	"io"
	"os"
	"strconv"
	"strings"
)

// readLine reads up to and excluding the next '\n' from f, consuming
// one byte at a time so seek() offsets stay exact (no read-ahead
// buffering, unlike internal/ioreader's stream reader).
func readLine(f *os.File) (string, bool, error) {
	var buf strings.Builder
	read := false
	b := make([]byte, 1)
	for {
		n, err := f.Read(b)
		if n == 1 {
			read = true
			if b[0] == '\n' {
				return buf.String(), true, nil
			}
			buf.WriteByte(b[0])
		}
		if err == io.EOF {
			if !read {
				return "", false, nil
			}
			return buf.String(), true, nil
		}
		if err != nil {
			return "", false, err
		}
	}
}

// readNumber reads a whitespace-delimited numeric token.
func readNumber(f *os.File) (float64, bool, error) {
	var buf strings.Builder
	read := false
	b := make([]byte, 1)
	for {
		n, err := f.Read(b)
		if n == 1 {
			c := b[0]
			if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
				if read {
					_, _ = f.Seek(-1, io.SeekCurrent)
					break
				}
				continue
			}
			read = true
			buf.WriteByte(c)
			continue
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, false, err
		}
	}
	if !read {
		return 0, false, nil
	}
	f64, err := strconv.ParseFloat(buf.String(), 64)
	if err != nil {
		return 0, false, nil
	}
	return f64, true, nil
}

func parseByteCount(selector string) (int, error) {
	return strconv.Atoi(selector)
}
