package port

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIsPortAvailable_FreePort verifies that IsPortAvailable returns true
// for a port that no process is currently using.
func TestIsPortAvailable_FreePort(t *testing.T) {
	scanner := NewScanner()

	// Use FindAvailablePort to get a port we know is free, rather than
	// hardcoding a port number that might be in use on some CI machines.
	freePort, err := scanner.FindAvailablePort(50000, 50100, "tcp")
	require.NoError(t, err, "should find at least one free port in 50000-50100")

	assert.True(t, scanner.IsPortAvailable(freePort, "tcp"), "port %d should be available", freePort)
}

// TestIsPortAvailable_UsedPort verifies that IsPortAvailable returns false
// when a port is already bound by another listener.
func TestIsPortAvailable_UsedPort(t *testing.T) {
	// ":0" lets the OS pick a free port, avoiding flakiness from
	// hardcoded port numbers.
	listener, err := net.Listen("tcp", ":0")
	require.NoError(t, err, "failed to start test listener")
	defer func() { _ = listener.Close() }()

	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	require.True(t, ok)
	port := tcpAddr.Port

	scanner := NewScanner()
	assert.False(t, scanner.IsPortAvailable(port, "tcp"), "port %d should be in use", port)
}

// TestIsPortAvailable_UDP verifies UDP port scanning works correctly.
func TestIsPortAvailable_UDP(t *testing.T) {
	conn, err := net.ListenPacket("udp", ":0")
	require.NoError(t, err, "failed to start test UDP listener")
	defer func() { _ = conn.Close() }()

	udpAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	require.True(t, ok)
	port := udpAddr.Port

	scanner := NewScanner()
	assert.False(t, scanner.IsPortAvailable(port, "udp"), "UDP port %d should be in use", port)
}

// TestIsPortAvailable_UnknownProtocol verifies that an unrecognized protocol
// string causes IsPortAvailable to return false (fail-safe behavior).
func TestIsPortAvailable_UnknownProtocol(t *testing.T) {
	scanner := NewScanner()
	assert.False(t, scanner.IsPortAvailable(50000, "sctp"))
}

// TestFindAvailablePort verifies that FindAvailablePort finds a free port
// within the requested range.
func TestFindAvailablePort(t *testing.T) {
	scanner := NewScanner()

	port, err := scanner.FindAvailablePort(50000, 50100, "tcp")
	require.NoError(t, err, "should find an available port in range 50000-50100")

	assert.GreaterOrEqual(t, port, 50000)
	assert.LessOrEqual(t, port, 50100)
	assert.True(t, scanner.IsPortAvailable(port, "tcp"))
}

// TestFindAvailablePort_NoneAvailable verifies the error path when every
// port in the range is occupied. We bind a single OS-assigned port and
// search a one-port range covering exactly it.
func TestFindAvailablePort_NoneAvailable(t *testing.T) {
	listener, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer func() { _ = listener.Close() }()

	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	require.True(t, ok)
	port := tcpAddr.Port

	scanner := NewScanner()
	_, err = scanner.FindAvailablePort(port, port, "tcp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no available tcp port")
}

// TestGetUsedPorts verifies that a bound port shows up in the used list.
func TestGetUsedPorts(t *testing.T) {
	listener, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer func() { _ = listener.Close() }()

	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	require.True(t, ok)
	port := tcpAddr.Port

	scanner := NewScanner()
	used := scanner.GetUsedPorts(port, port)
	assert.Equal(t, []int{port}, used)
}
