// Command ringcat moves lines between stdio and a shared-memory ring channel.
//
//	ringcat -name demo -create produce < input
//	ringcat -name demo consume > output
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"

	ringchannel "code.cloudfoundry.org/go-ringchannel"
	"code.cloudfoundry.org/go-ringchannel/shm"
)

// Room for a full payload plus a trailing "\r\n".
const maxLineSize = ringchannel.MaxPayloadSize + 2

type config struct {
	name     string
	dir      string
	verb     string
	create   bool
	remove   bool
	capacity int
	id       uint16
	interval time.Duration
	limit    int
	verbose  bool
}

var errUsage = errors.New("usage error")

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	cfg, err := parseArgs(fs, os.Args[1:])
	if err != nil {
		fmt.Fprintln(fs.Output(), err)
		fs.Usage()
		os.Exit(2)
	}

	level := zerolog.InfoLevel
	if cfg.verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	os.Exit(run(cfg, log, os.Stdin, os.Stdout))
}

// parseArgs validates everything, the verb included, before any segment is
// touched.
func parseArgs(fs *flag.FlagSet, args []string) (config, error) {
	var (
		cfg config
		id  uint
	)
	fs.StringVar(&cfg.name, "name", "", "segment name")
	fs.StringVar(&cfg.dir, "dir", "", "segment directory (default /dev/shm or the temp dir)")
	fs.BoolVar(&cfg.create, "create", false, "create the segment instead of opening it")
	fs.BoolVar(&cfg.remove, "remove", false, "remove the segment on exit")
	fs.IntVar(&cfg.capacity, "capacity", 64*1024, "ring capacity in bytes, with -create")
	fs.UintVar(&id, "id", 1, "packet id for produced lines")
	fs.DurationVar(&cfg.interval, "interval", time.Millisecond, "polling and retry interval")
	fs.IntVar(&cfg.limit, "spool", 1024, "lines held back while the ring is full")
	fs.BoolVar(&cfg.verbose, "v", false, "debug logging")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: %s [flags] produce|consume\n", fs.Name())
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	switch {
	case fs.NArg() != 1:
		return config{}, fmt.Errorf("%w: expected one verb, got %d arguments", errUsage, fs.NArg())
	case fs.Arg(0) != "produce" && fs.Arg(0) != "consume":
		return config{}, fmt.Errorf("%w: unknown verb %q", errUsage, fs.Arg(0))
	case cfg.name == "":
		return config{}, fmt.Errorf("%w: -name is required", errUsage)
	case id > 0xffff:
		return config{}, fmt.Errorf("%w: -id %d does not fit in 16 bits", errUsage, id)
	case cfg.limit <= 0:
		return config{}, fmt.Errorf("%w: -spool must be positive", errUsage)
	}
	cfg.verb = fs.Arg(0)
	cfg.id = uint16(id)
	return cfg, nil
}

// run attaches the segment, runs the verb and releases the segment, returning
// the process exit code.
func run(cfg config, log zerolog.Logger, stdin io.Reader, stdout io.Writer) int {
	opts := []shm.Option{shm.WithLogger(log)}
	if cfg.dir != "" {
		opts = append(opts, shm.WithDir(cfg.dir))
	}

	var (
		seg *shm.Segment
		err error
	)
	if cfg.create {
		seg, err = shm.Create(cfg.name, cfg.capacity, opts...)
	} else {
		seg, err = shm.Open(cfg.name, opts...)
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to attach segment")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch cfg.verb {
	case "produce":
		err = produce(ctx, seg.Channel(), stdin, cfg.id, cfg.interval, cfg.limit, log)
	case "consume":
		err = consume(ctx, seg.Channel(), stdout, cfg.interval, log)
	}

	code := 0
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg(cfg.verb + " failed")
		code = 1
	}

	release := seg.Close
	if cfg.remove {
		release = seg.Remove
	}
	if err := release(); err != nil {
		log.Error().Err(err).Msg("failed to release segment")
		code = 1
	}
	return code
}

// produce pushes every line of r as a packet. While the ring and the spool
// are both full it waits for the consumer, checking ctx between attempts.
func produce(ctx context.Context, ch *ringchannel.Channel, r io.Reader, id uint16, interval time.Duration, limit int, log zerolog.Logger) error {
	if !ch.Valid() {
		return ringchannel.ErrInvalidChannel
	}
	spool := ringchannel.NewSpool(ch,
		ringchannel.WithSpoolLimit(limit),
		ringchannel.WithSpoolReporter(ringchannel.NewLogReporter(log)),
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)
	var sent int
	for scanner.Scan() {
		for {
			err := spool.Push(id, scanner.Bytes())
			if err == nil {
				break
			}
			if !errors.Is(err, ringchannel.ErrFull) {
				return err
			}
			if err := wait(ctx, interval); err != nil {
				return err
			}
		}
		sent++
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	for spool.Len() > 0 {
		if err := spool.Flush(); err != nil && !errors.Is(err, ringchannel.ErrFull) {
			return err
		}
		if spool.Len() == 0 {
			break
		}
		if err := wait(ctx, interval); err != nil {
			return err
		}
	}
	log.Debug().Int("packets", sent).Msg("produced")
	return nil
}

// consume writes every packet's payload to w as a line until ctx is done or
// a read or write fails.
func consume(ctx context.Context, ch *ringchannel.Channel, w io.Writer, interval time.Duration, log zerolog.Logger) error {
	if !ch.Valid() {
		return ringchannel.ErrInvalidChannel
	}
	p := ringchannel.NewPoller(ch,
		ringchannel.WithPollingInterval(interval),
		ringchannel.WithPollerContext(ctx),
		ringchannel.WithPollerReporter(ringchannel.NewLogReporter(log)),
	)

	bw := bufio.NewWriter(w)
	defer bw.Flush()

	var hdr ringchannel.PacketHeader
	buf := make([]byte, ringchannel.MaxPayloadSize)
	for {
		n, err := p.Next(&hdr, buf)
		if err != nil {
			return err
		}
		log.Debug().Uint16("id", hdr.ID).Int("size", n).Msg("packet")
		if _, err := bw.Write(buf[:n]); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
		if ch.Empty() {
			if err := bw.Flush(); err != nil {
				return err
			}
		}
	}
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
