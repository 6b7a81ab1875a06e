// csmr-push is the sender side of the CSMR protocol for manual
// end-to-end runs: it dials a receiver, streams video frames at a
// configured rate, and finishes with an end-of-stream frame.
//
// Payloads are synthetic by default; --file slices a raw elementary
// stream (for example H.264 Annex B) into frame-sized payloads instead.
//
// Usage:
//
//	csmr-push --addr 127.0.0.1:50123 --frames 300 --fps 30 --size 4096
//	csmr-push --addr 127.0.0.1:50123 --file stream.h264
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/zsiec/csmr/csmr"
)

const logInterval = 5 * time.Second

func main() {
	addrFlag := flag.String("addr", "", "receiver address (host:port)")
	framesFlag := flag.Int("frames", 300, "number of synthetic video frames to send")
	fpsFlag := flag.Int("fps", 30, "frame rate for pacing and timestamps")
	sizeFlag := flag.Int("size", 4096, "payload bytes per frame")
	fileFlag := flag.String("file", "", "raw elementary stream to slice into payloads")
	noEOSFlag := flag.Bool("no-eos", false, "close the connection without an end-of-stream frame")
	flag.Parse()

	addr := *addrFlag
	if addr == "" && flag.NArg() > 0 {
		addr = flag.Arg(0)
	}
	if addr == "" {
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  csmr-push --addr host:port [--frames N] [--fps N] [--size N]\n")
		fmt.Fprintf(os.Stderr, "  csmr-push --addr host:port --file stream.h264 [--size N]\n")
		os.Exit(1)
	}
	if *fpsFlag <= 0 {
		fmt.Fprintf(os.Stderr, "fps must be positive\n")
		os.Exit(1)
	}

	var payloads [][]byte
	if *fileFlag != "" {
		data, err := os.ReadFile(*fileFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read file: %v\n", err)
			os.Exit(1)
		}
		payloads = slicePayloads(data, *sizeFlag)
		fmt.Printf("File: %s (%d bytes, %d frames of up to %d bytes)\n",
			*fileFlag, len(data), len(payloads), *sizeFlag)
	} else {
		payloads = make([][]byte, *framesFlag)
		for i := range payloads {
			payloads[i] = syntheticPayload(i, *sizeFlag)
		}
		fmt.Printf("Synthetic stream: %d frames of %d bytes\n", *framesFlag, *sizeFlag)
	}

	if err := push(addr, payloads, *fpsFlag, !*noEOSFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Push failed: %v\n", err)
		os.Exit(1)
	}
}

// push streams the payloads to addr at fps, pacing against the global
// clock so timing stays continuous regardless of per-frame jitter.
func push(addr string, payloads [][]byte, fps int, eos bool) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}
	defer conn.Close()
	fmt.Printf("Connected to %s, streaming at %d fps\n", addr, fps)

	step := frameStep(fps)
	interval := time.Duration(step)
	start := time.Now()
	lastLog := start
	var sentBytes int64

	for i, payload := range payloads {
		f := csmr.Frame{
			Type:      csmr.TypeVideo,
			Timestamp: int64(i) * step,
			Payload:   payload,
		}
		if err := csmr.WriteFrame(conn, f); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		sentBytes += int64(csmr.HeaderSize + len(payload))

		// Pace against the send start, not the previous frame, so a slow
		// write is absorbed instead of compounding.
		next := time.Duration(i+1) * interval
		if elapsed := time.Since(start); next > elapsed {
			time.Sleep(next - elapsed)
		}

		if time.Since(lastLog) >= logInterval {
			elapsed := time.Since(start).Seconds()
			fmt.Printf("frame=%d/%d rate=%.0f B/s elapsed=%.1fs\n",
				i+1, len(payloads), float64(sentBytes)/elapsed, elapsed)
			lastLog = time.Now()
		}
	}

	if eos {
		f := csmr.Frame{
			Type:      csmr.TypeEndOfStream,
			Timestamp: int64(len(payloads)) * step,
		}
		if err := csmr.WriteFrame(conn, f); err != nil {
			return fmt.Errorf("end of stream: %w", err)
		}
	}

	fmt.Printf("Done: %d frames, %.1f MB in %s\n",
		len(payloads), float64(sentBytes)/(1024*1024), time.Since(start).Truncate(time.Millisecond))
	return nil
}

// frameStep returns the nanoseconds between frame timestamps at fps.
func frameStep(fps int) int64 {
	return int64(time.Second) / int64(fps)
}

// syntheticPayload builds a deterministic payload for frame i, with the
// frame index in the first four bytes so a receiver can check ordering.
func syntheticPayload(i, size int) []byte {
	if size <= 0 {
		return nil
	}
	p := make([]byte, size)
	if size >= 4 {
		binary.BigEndian.PutUint32(p[0:4], uint32(i))
	}
	for j := 4; j < size; j++ {
		p[j] = byte(i + j)
	}
	return p
}

// slicePayloads splits data into chunks of at most size bytes.
func slicePayloads(data []byte, size int) [][]byte {
	if size <= 0 || len(data) == 0 {
		return nil
	}
	chunks := make([][]byte, 0, (len(data)+size-1)/size)
	for off := 0; off < len(data); off += size {
		end := off + size
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[off:end])
	}
	return chunks
}
