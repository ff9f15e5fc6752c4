package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/avast/retry-go"
	"github.com/urfave/cli/v3"

	"github.com/luxfi/relay/pkg/config"
	"github.com/luxfi/relay/pkg/logger"
	"github.com/luxfi/relay/pkg/transport"
)

// runClient dials the relay, forwards stdin lines, and prints everything
// the server sends back (the LOGIN banner, acks, and relayed messages).
func runClient(ctx context.Context, c *cli.Command) error {
	logger.Init("development", c.Bool("debug"))

	addr, err := config.ParseAddress(c.String("addr"))
	if err != nil {
		return err
	}

	var stream transport.Stream
	err = retry.Do(
		func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var derr error
			stream, derr = transport.Dial(ctx, addr)
			return derr
		},
		retry.Attempts(uint(c.Int("retries"))),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("dial failed, retrying", "attempt", n+1, "err", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", addr, err)
	}
	defer stream.Close()

	go func() {
		<-ctx.Done()
		stream.Close()
	}()

	r, w := stream.Split()

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if _, err := fmt.Fprintf(w, "%s\n", scanner.Text()); err != nil {
				return
			}
		}
	}()

	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			fmt.Print(line)
		}
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}
