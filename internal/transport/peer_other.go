//go:build !linux

package transport

import "net"

func peerCredentials(net.Conn) (Peer, error) {
	return Peer{}, errNoCredentials
}
