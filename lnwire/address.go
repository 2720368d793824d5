package lnwire

import (
	"bytes"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// addressType specifies the network protocol and version that should be used
// when connecting to a node at a particular address.
type addressType uint8

const (
	// ipv4Addr denotes an IPv4 address.
	ipv4Addr addressType = 1

	// ipv6Addr denotes an IPv6 address.
	ipv6Addr addressType = 2

	// v2OnionAddr denotes a version 2 Tor onion service address.
	v2OnionAddr addressType = 3

	// v3OnionAddr denotes a version 3 Tor (prop224) onion service address.
	v3OnionAddr addressType = 4

	// dnsHostnameAddr denotes a DNS hostname.
	dnsHostnameAddr addressType = 5
)

const (
	onionSuffix = ".onion"

	v2OnionLen = 10
	v3OnionLen = 35
)

// ErrAddressDecode is returned when the address list of a node announcement
// can't be decoded.
var ErrAddressDecode = errors.New("unable to decode address list")

// onionEncoding is the base32 alphabet used by onion service names.
var onionEncoding = base32.NewEncoding(
	"abcdefghijklmnopqrstuvwxyz234567",
).WithPadding(base32.NoPadding)

// RawAddrs is the undecoded address descriptor list of a node announcement.
type RawAddrs []byte

// NetAddr is a single advertised network address.
type NetAddr struct {
	// Host is an IP literal, a DNS hostname, or an onion service name.
	Host string

	// Port is the TCP port the node listens on.
	Port uint16
}

// String returns the host:port form of the address.
func (a NetAddr) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(int(a.Port)))
}

// DecodeAddresses parses the address descriptor list and returns the first
// address in it. An empty list yields None. Parsing stops at the first
// descriptor of an unknown type, as its length can't be known; an unknown
// type in first position is an error.
func DecodeAddresses(raw RawAddrs) (fn.Option[NetAddr], error) {
	r := bytes.NewReader(raw)

	var first fn.Option[NetAddr]
	for r.Len() > 0 {
		addr, known, err := decodeAddress(r)
		if err != nil {
			return fn.None[NetAddr](), fmt.Errorf("%w: %v",
				ErrAddressDecode, err)
		}
		if !known {
			break
		}

		if first.IsNone() {
			first = fn.Some(addr)
		}
	}

	if first.IsNone() && len(raw) > 0 {
		return first, fmt.Errorf("%w: no known address descriptor",
			ErrAddressDecode)
	}

	return first, nil
}

// decodeAddress reads a single address descriptor. The boolean return is false
// if the descriptor type is unknown.
func decodeAddress(r *bytes.Reader) (NetAddr, bool, error) {
	typ, err := r.ReadByte()
	if err != nil {
		return NetAddr{}, false, err
	}

	var host string
	switch addressType(typ) {
	case ipv4Addr:
		var ip [net.IPv4len]byte
		if _, err := io.ReadFull(r, ip[:]); err != nil {
			return NetAddr{}, false, err
		}
		host = net.IP(ip[:]).String()

	case ipv6Addr:
		var ip [net.IPv6len]byte
		if _, err := io.ReadFull(r, ip[:]); err != nil {
			return NetAddr{}, false, err
		}
		host = net.IP(ip[:]).String()

	case v2OnionAddr:
		var onion [v2OnionLen]byte
		if _, err := io.ReadFull(r, onion[:]); err != nil {
			return NetAddr{}, false, err
		}
		host = onionEncoding.EncodeToString(onion[:]) + onionSuffix

	case v3OnionAddr:
		var onion [v3OnionLen]byte
		if _, err := io.ReadFull(r, onion[:]); err != nil {
			return NetAddr{}, false, err
		}
		host = onionEncoding.EncodeToString(onion[:]) + onionSuffix

	case dnsHostnameAddr:
		l, err := r.ReadByte()
		if err != nil {
			return NetAddr{}, false, err
		}
		if l == 0 {
			return NetAddr{}, false, errors.New("empty hostname")
		}
		name := make([]byte, l)
		if _, err := io.ReadFull(r, name); err != nil {
			return NetAddr{}, false, err
		}
		host = string(name)

	default:
		return NetAddr{}, false, nil
	}

	var port [2]byte
	if _, err := io.ReadFull(r, port[:]); err != nil {
		return NetAddr{}, false, err
	}

	return NetAddr{
		Host: host,
		Port: binary.BigEndian.Uint16(port[:]),
	}, true, nil
}

// EncodeAddress produces the descriptor list for a single address.
func EncodeAddress(addr NetAddr) (RawAddrs, error) {
	var b bytes.Buffer

	ip := net.ParseIP(addr.Host)
	switch {
	case ip != nil && ip.To4() != nil:
		b.WriteByte(byte(ipv4Addr))
		b.Write(ip.To4())

	case ip != nil:
		b.WriteByte(byte(ipv6Addr))
		b.Write(ip.To16())

	case strings.HasSuffix(addr.Host, onionSuffix):
		name := strings.TrimSuffix(addr.Host, onionSuffix)
		onion, err := onionEncoding.DecodeString(name)
		if err != nil {
			return nil, fmt.Errorf("invalid onion address %v: %w",
				addr.Host, err)
		}

		switch len(onion) {
		case v2OnionLen:
			b.WriteByte(byte(v2OnionAddr))
		case v3OnionLen:
			b.WriteByte(byte(v3OnionAddr))
		default:
			return nil, fmt.Errorf("invalid onion address length "+
				"%d", len(onion))
		}
		b.Write(onion)

	default:
		if len(addr.Host) == 0 || len(addr.Host) > 255 {
			return nil, fmt.Errorf("invalid hostname length %d",
				len(addr.Host))
		}
		b.WriteByte(byte(dnsHostnameAddr))
		b.WriteByte(byte(len(addr.Host)))
		b.WriteString(addr.Host)
	}

	var port [2]byte
	binary.BigEndian.PutUint16(port[:], addr.Port)
	b.Write(port[:])

	return b.Bytes(), nil
}

// ParseNetAddr parses a host:port string into a NetAddr.
func ParseNetAddr(s string) (NetAddr, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return NetAddr{}, err
	}

	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return NetAddr{}, fmt.Errorf("invalid port %q: %w", portStr,
			err)
	}

	return NetAddr{Host: host, Port: uint16(port)}, nil
}
