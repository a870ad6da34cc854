// Package netio provides thin net.Conn-shaped convenience wrappers over
// accept/connect/send/recv/close, built entirely out of the public lazy
// surface. TCP/UDP socket convenience and address resolution are an
// out-of-scope external collaborator: the core (worker, lazy, ring) must
// never import this package, only the reverse. Grounded on
// ehrlich-b-go-ublk's Ring/Batch interface split — transport policy gets its
// own small package instead of growing the core runtime's surface.
package netio

import (
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

// resolveTCP4 parses "host:port" into a unix.SockaddrInet4, sidestepping
// net.ResolveTCPAddr's DNS machinery since every caller here only ever deals
// in literal IPv4 addresses.
func resolveTCP4(addr string) (*unix.SockaddrInet4, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, &net.AddrError{Err: "invalid port", Addr: portStr}
	}

	ip := net.IPv4zero
	if host != "" {
		ip = net.ParseIP(host)
		if ip == nil {
			return nil, &net.AddrError{Err: "invalid IPv4 address", Addr: host}
		}
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, &net.AddrError{Err: "not an IPv4 address", Addr: host}
	}

	sa := &unix.SockaddrInet4{Port: port}
	copy(sa.Addr[:], ip4)
	return sa, nil
}

// htons converts a host-byte-order 16-bit value into network byte order,
// the layout sockaddr_in's sin_port field requires on the wire.
func htons(v uint16) uint16 {
	return (v << 8) | (v >> 8)
}

// rawSockaddrInet4 packs sa into the raw sockaddr_in bytes io_uring's
// IORING_OP_CONNECT expects a plain kernel-ABI pointer to, since unix.Bind
// and friends accept the higher-level unix.Sockaddr interface but the
// uring SQE fields need a bare pointer and length.
func rawSockaddrInet4(sa *unix.SockaddrInet4) unix.RawSockaddrInet4 {
	var raw unix.RawSockaddrInet4
	raw.Family = unix.AF_INET
	raw.Port = htons(uint16(sa.Port))
	raw.Addr = sa.Addr
	return raw
}
