package relay_test

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/relay/pkg/broadcast"
	"github.com/luxfi/relay/pkg/config"
	"github.com/luxfi/relay/pkg/relay"
)

func startServer(t *testing.T) string {
	t.Helper()
	bus := broadcast.NewMemory(10)
	srv := relay.NewServer(config.Address{Network: config.NetworkTCP, Host: "127.0.0.1", Port: 0}, bus)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() {
		_ = srv.Stop()
		_ = bus.Close()
	})
	return srv.Addr().String()
}

type testClient struct {
	conn net.Conn
	r    *bufio.Reader
}

// dialRelay connects and consumes the login banner, returning the client
// and its assigned identity label.
func dialRelay(t *testing.T, addr string) (*testClient, string) {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	c := &testClient{conn: conn, r: bufio.NewReader(conn)}
	banner := c.readLine(t)
	require.True(t, strings.HasPrefix(banner, "LOGIN: "), "unexpected banner %q", banner)
	return c, strings.TrimSuffix(strings.TrimPrefix(banner, "LOGIN: "), "\n")
}

func (c *testClient) send(t *testing.T, line string) {
	t.Helper()
	_, err := fmt.Fprintf(c.conn, "%s\n", line)
	require.NoError(t, err)
}

func (c *testClient) readLine(t *testing.T) string {
	t.Helper()
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	line, err := c.r.ReadString('\n')
	require.NoError(t, err)
	return line
}

// expectSilence asserts that no line arrives within the window.
func (c *testClient) expectSilence(t *testing.T, window time.Duration) {
	t.Helper()
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(window)))
	line, err := c.r.ReadString('\n')
	require.Error(t, err, "expected no delivery, got %q", line)
	var ne net.Error
	require.ErrorAs(t, err, &ne)
	require.True(t, ne.Timeout())
}

func TestLoginBanner(t *testing.T) {
	addr := startServer(t)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	banner, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "LOGIN: 1\n", banner)
}

func TestRelayExcludesSender(t *testing.T) {
	addr := startServer(t)

	a, labelA := dialRelay(t, addr)
	b, _ := dialRelay(t, addr)
	c, _ := dialRelay(t, addr)

	a.send(t, "hello")

	want := fmt.Sprintf("MESSAGE:%s HELLO\n", labelA)
	assert.Equal(t, want, b.readLine(t))
	assert.Equal(t, want, c.readLine(t))

	// The sender sees exactly the acknowledgment, never its own message.
	assert.Equal(t, "ACK:MESSAGE\n", a.readLine(t))
	a.expectSilence(t, 150*time.Millisecond)
}

func TestSingleClientStillAcked(t *testing.T) {
	addr := startServer(t)

	a, _ := dialRelay(t, addr)
	a.send(t, "anyone there?")

	assert.Equal(t, "ACK:MESSAGE\n", a.readLine(t))
	a.expectSilence(t, 150*time.Millisecond)
}

func TestBlankLineIsRelayed(t *testing.T) {
	addr := startServer(t)

	a, labelA := dialRelay(t, addr)
	b, _ := dialRelay(t, addr)

	a.send(t, "")
	assert.Equal(t, fmt.Sprintf("MESSAGE:%s \n", labelA), b.readLine(t))
	assert.Equal(t, "ACK:MESSAGE\n", a.readLine(t))
}

func TestDisconnectIsIsolated(t *testing.T) {
	addr := startServer(t)

	a, _ := dialRelay(t, addr)
	b, labelB := dialRelay(t, addr)
	c, _ := dialRelay(t, addr)

	require.NoError(t, a.conn.Close())
	// Give the server a moment to tear the session down.
	time.Sleep(50 * time.Millisecond)

	// The surviving connections keep relaying.
	b.send(t, "still here")
	assert.Equal(t, fmt.Sprintf("MESSAGE:%s STILL HERE\n", labelB), c.readLine(t))
	assert.Equal(t, "ACK:MESSAGE\n", b.readLine(t))

	// And the accept loop keeps accepting.
	d, labelD := dialRelay(t, addr)
	assert.NotEmpty(t, labelD)
	_ = d
}

func TestDistinctIdentities(t *testing.T) {
	addr := startServer(t)

	_, labelA := dialRelay(t, addr)
	_, labelB := dialRelay(t, addr)
	_, labelC := dialRelay(t, addr)

	assert.NotEqual(t, labelA, labelB)
	assert.NotEqual(t, labelB, labelC)
	assert.NotEqual(t, labelA, labelC)
}

func TestConcurrentSendersPreserveOwnOrder(t *testing.T) {
	addr := startServer(t)

	a, labelA := dialRelay(t, addr)
	b, _ := dialRelay(t, addr)

	for i := 0; i < 5; i++ {
		a.send(t, fmt.Sprintf("line %d", i))
		assert.Equal(t, "ACK:MESSAGE\n", a.readLine(t))
	}
	for i := 0; i < 5; i++ {
		assert.Equal(t, fmt.Sprintf("MESSAGE:%s LINE %d\n", labelA, i), b.readLine(t))
	}
}

func TestServerStopClosesClients(t *testing.T) {
	bus := broadcast.NewMemory(10)
	srv := relay.NewServer(config.Address{Network: config.NetworkTCP, Host: "127.0.0.1", Port: 0}, bus)
	require.NoError(t, srv.Start(context.Background()))
	defer bus.Close()

	addr := srv.Addr().String()
	a, _ := dialRelay(t, addr)

	require.NoError(t, srv.Stop())

	require.NoError(t, a.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err := a.r.ReadString('\n')
	assert.Error(t, err)
}
